/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package github

import (
	"time"

	"github.com/rs/zerolog"
)

const viewerIssuesQuery = `
query ViewerIssues($cursor: String, $labels: [String!]) {
  rateLimit { cost limit remaining resetAt }
  viewer {
    issues(first: 100, after: $cursor, states: [OPEN], labels: $labels) {
      pageInfo { hasNextPage endCursor }
      nodes {
        title
        body
        url
        state
        assignees(first: 1) { totalCount }
        milestone { dueOn }
      }
    }
  }
}`

const viewerPullRequestsQuery = `
query ViewerPullRequests($cursor: String, $labels: [String!]) {
  rateLimit { cost limit remaining resetAt }
  viewer {
    pullRequests(first: 100, after: $cursor, states: [OPEN], labels: $labels) {
      pageInfo { hasNextPage endCursor }
      nodes {
        title
        body
        url
        state
        assignees(first: 1) { totalCount }
        milestone { dueOn }
      }
    }
  }
}`

const repositoryIssuesQuery = `
query RepositoryIssues($owner: String!, $name: String!, $cursor: String, $labels: [String!]) {
  rateLimit { cost limit remaining resetAt }
  repository(owner: $owner, name: $name) {
    issues(first: 100, after: $cursor, states: [OPEN], labels: $labels) {
      pageInfo { hasNextPage endCursor }
      nodes {
        title
        body
        url
        state
        assignees(first: 1) { totalCount }
        milestone { dueOn }
      }
    }
  }
}`

const repositoryPullRequestsQuery = `
query RepositoryPullRequests($owner: String!, $name: String!, $cursor: String, $labels: [String!]) {
  rateLimit { cost limit remaining resetAt }
  repository(owner: $owner, name: $name) {
    pullRequests(first: 100, after: $cursor, states: [OPEN], labels: $labels) {
      pageInfo { hasNextPage endCursor }
      nodes {
        title
        body
        url
        state
        assignees(first: 1) { totalCount }
        milestone { dueOn }
      }
    }
  }
}`

type rateLimitInfo struct {
	Cost      int       `json:"cost"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// inspect logs the rate limit telemetry; severity scales with how close the
// limit is.
func (r rateLimitInfo) inspect(log zerolog.Logger, name string) {
	switch {
	case r.Remaining == 0:
		log.Error().Str("query", name).Int("limit", r.Limit).Time("reset_at", r.ResetAt).
			Msg("rate limit has been hit")
	case r.Remaining <= 100:
		log.Warn().Str("query", name).Int("remaining", r.Remaining).Int("limit", r.Limit).Time("reset_at", r.ResetAt).
			Msg("rate limit is nearing")
	case r.Remaining <= 1000:
		log.Info().Str("query", name).Int("remaining", r.Remaining).Int("limit", r.Limit).Time("reset_at", r.ResetAt).
			Msg("rate limit is approaching")
	default:
		log.Debug().Str("query", name).Int("remaining", r.Remaining).Int("limit", r.Limit).Time("reset_at", r.ResetAt).
			Msg("rate limit is OK")
	}
	log.Trace().Str("query", name).Int("cost", r.Cost).Int("limit", r.Limit).Msg("rate limit cost")
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type itemNode struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url"`
	State     string `json:"state"`
	Assignees struct {
		TotalCount int `json:"totalCount"`
	} `json:"assignees"`
	Milestone *struct {
		DueOn *time.Time `json:"dueOn"`
	} `json:"milestone"`
}

type itemConnection struct {
	PageInfo pageInfo   `json:"pageInfo"`
	Nodes    []itemNode `json:"nodes"`
}

type viewerIssuesData struct {
	RateLimit rateLimitInfo `json:"rateLimit"`
	Viewer    struct {
		Issues itemConnection `json:"issues"`
	} `json:"viewer"`
}

type viewerPullRequestsData struct {
	RateLimit rateLimitInfo `json:"rateLimit"`
	Viewer    struct {
		PullRequests itemConnection `json:"pullRequests"`
	} `json:"viewer"`
}

type repositoryIssuesData struct {
	RateLimit  rateLimitInfo `json:"rateLimit"`
	Repository *struct {
		Issues itemConnection `json:"issues"`
	} `json:"repository"`
}

type repositoryPullRequestsData struct {
	RateLimit  rateLimitInfo `json:"rateLimit"`
	Repository *struct {
		PullRequests itemConnection `json:"pullRequests"`
	} `json:"repository"`
}
