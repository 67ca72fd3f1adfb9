/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package gitlab queries a GitLab instance over its REST API.
package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathstuf/devtodo/internal/account"
	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/todo"
)

const serviceName = "gitlab"

const dueDateFormat = "2006-01-02"

// Query fetches issues and merge requests from a GitLab instance. Unlike
// the GitHub backend, the client is built eagerly; a construction error is
// stored and surfaced lazily on fetch. The REST transport carries no
// retry/backoff policy: it fails fast and the run moves on.
type Query struct {
	log     zerolog.Logger
	client  *client
	initErr error
	logOnce sync.Once
}

func NewQuery(host, token string, log zerolog.Logger) *Query {
	if host == "" {
		host = "gitlab.com"
	}
	c, err := newClient(host, token)
	return &Query{log: log, client: c, initErr: err}
}

func (q *Query) FetchItems(ctx context.Context, target config.QueryTarget, filters []config.Filter, existing account.ItemLookup) ([]*todo.Item, error) {
	if q.initErr != nil {
		q.logOnce.Do(func() {
			q.log.Error().Err(q.initErr).Msg("failed to connect to gitlab instance")
		})
		return nil, &account.ServiceError{Service: serviceName}
	}

	labels := make([]string, 0, len(filters))
	for _, filter := range filters {
		labels = append(labels, filter.Label)
	}
	labelList := strings.Join(labels, ",")

	var remotes []account.RemoteItem
	var err error
	if target.SelfUser {
		remotes, err = q.queryUser(ctx, labelList)
	} else {
		remotes, err = q.queryProjects(ctx, target.Projects, labelList)
	}
	if err != nil {
		return nil, err
	}

	return account.Merge(remotes, existing)
}

// queryUser runs the four viewer-scoped queries: issues and merge requests,
// each assigned-to-me and created-by-me.
func (q *Query) queryUser(ctx context.Context, labels string) ([]account.RemoteItem, error) {
	var remotes []account.RemoteItem

	for _, scope := range []string{"assigned_to_me", "created_by_me"} {
		params := baseParams(labels)
		params.Set("scope", scope)

		issues, err := getPaged[issue](ctx, q.client, "/issues", params)
		if err != nil {
			return nil, q.queryErr(err, "failed to query %s issues", scope)
		}
		for _, iss := range issues {
			remotes = append(remotes, issueRemote(iss, q.log))
		}

		mrs, err := getPaged[mergeRequest](ctx, q.client, "/merge_requests", params)
		if err != nil {
			return nil, q.queryErr(err, "failed to query %s merge requests", scope)
		}
		for _, mr := range mrs {
			remotes = append(remotes, mergeRequestRemote(mr, q.log))
		}
	}

	return remotes, nil
}

func (q *Query) queryProjects(ctx context.Context, projects []string, labels string) ([]account.RemoteItem, error) {
	var remotes []account.RemoteItem

	for _, project := range projects {
		params := baseParams(labels)
		base := "/projects/" + url.PathEscape(project)

		issues, err := getPaged[issue](ctx, q.client, base+"/issues", params)
		if err != nil {
			return nil, q.queryErr(err, "failed to query project %s issues", project)
		}
		for _, iss := range issues {
			remotes = append(remotes, issueRemote(iss, q.log))
		}

		mrs, err := getPaged[mergeRequest](ctx, q.client, base+"/merge_requests", params)
		if err != nil {
			return nil, q.queryErr(err, "failed to query project %s merge requests", project)
		}
		for _, mr := range mrs {
			remotes = append(remotes, mergeRequestRemote(mr, q.log))
		}
	}

	return remotes, nil
}

func (q *Query) queryErr(err error, format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	q.log.Error().Err(err).Msg(message)
	return &account.QueryError{Service: serviceName, Message: fmt.Sprintf("%s: %v", message, err)}
}

func baseParams(labels string) url.Values {
	params := url.Values{}
	params.Set("state", "opened")
	if labels != "" {
		params.Set("labels", labels)
	}
	return params
}

type user struct{}

type milestone struct {
	DueDate *string `json:"due_date"`
}

type issue struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	State       string     `json:"state"`
	WebURL      string     `json:"web_url"`
	Assignees   []user     `json:"assignees"`
	DueDate     *string    `json:"due_date"`
	Milestone   *milestone `json:"milestone"`
}

type mergeRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	State       string     `json:"state"`
	WebURL      string     `json:"web_url"`
	Assignees   []user     `json:"assignees"`
	Milestone   *milestone `json:"milestone"`
}

func issueRemote(iss issue, log zerolog.Logger) account.RemoteItem {
	var status todo.Status
	switch iss.State {
	case "closed":
		status = todo.StatusCompleted
	case "opened":
		if len(iss.Assignees) == 0 {
			status = todo.StatusNeedsAction
		} else {
			status = todo.StatusInProcess
		}
	default:
		log.Warn().Str("state", iss.State).Str("url", iss.WebURL).Msg("unknown gitlab issue state")
		status = todo.StatusNeedsAction
	}

	due := parseDueDate(iss.DueDate)
	if due == nil && iss.Milestone != nil {
		due = parseDueDate(iss.Milestone.DueDate)
	}

	return account.RemoteItem{
		Due:         due,
		Summary:     iss.Title,
		Description: deref(iss.Description),
		Kind:        todo.KindIssue,
		Status:      status,
		URL:         iss.WebURL,
	}
}

func mergeRequestRemote(mr mergeRequest, log zerolog.Logger) account.RemoteItem {
	var status todo.Status
	switch mr.State {
	case "closed":
		status = todo.StatusCancelled
	case "merged":
		status = todo.StatusCompleted
	case "opened":
		if len(mr.Assignees) == 0 {
			status = todo.StatusNeedsAction
		} else {
			status = todo.StatusInProcess
		}
	default:
		log.Warn().Str("state", mr.State).Str("url", mr.WebURL).Msg("unknown gitlab merge request state")
		status = todo.StatusNeedsAction
	}

	var due *todo.Due
	if mr.Milestone != nil {
		due = parseDueDate(mr.Milestone.DueDate)
	}

	return account.RemoteItem{
		Due:         due,
		Summary:     mr.Title,
		Description: deref(mr.Description),
		Kind:        todo.KindPullRequest,
		Status:      status,
		URL:         mr.WebURL,
	}
}

func parseDueDate(s *string) *todo.Due {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dueDateFormat, *s)
	if err != nil {
		return nil
	}
	due := todo.DueDate(t)
	return &due
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
