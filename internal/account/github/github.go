/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mathstuf/devtodo/internal/account"
	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/todo"
)

const serviceName = "github"

// Query fetches issues and pull requests from a GitHub instance. The client
// handle is constructed lazily on first use; a construction failure is
// cached, logged once, and re-surfaced on every later call.
type Query struct {
	host  string
	token string
	log   zerolog.Logger

	initOnce sync.Once
	client   *client
	initErr  error
}

func NewQuery(host, token string, log zerolog.Logger) *Query {
	if host == "" {
		host = "api.github.com"
	}
	return &Query{host: host, token: token, log: log}
}

func (q *Query) connect() (*client, error) {
	q.initOnce.Do(func() {
		q.client, q.initErr = newClient(q.host, q.token, q.log)
		if q.initErr != nil {
			q.log.Error().Err(q.initErr).Msg("failed to connect to github instance")
		}
	})
	if q.initErr != nil {
		return nil, &account.ServiceError{Service: serviceName}
	}
	return q.client, nil
}

func (q *Query) FetchItems(ctx context.Context, target config.QueryTarget, filters []config.Filter, existing account.ItemLookup) ([]*todo.Item, error) {
	c, err := q.connect()
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(filters))
	for _, filter := range filters {
		labels = append(labels, filter.Label)
	}

	var remotes []account.RemoteItem
	add := func(nodes []itemNode, convert func(itemNode, zerolog.Logger) account.RemoteItem) {
		for _, node := range nodes {
			remotes = append(remotes, convert(node, q.log))
		}
	}

	if target.SelfUser {
		issues, err := q.runPaged(ctx, "ViewerIssues", q.viewerIssues(c, labels))
		if err != nil {
			return nil, queryErr(err)
		}
		add(issues, issueRemote)

		prs, err := q.runPaged(ctx, "ViewerPullRequests", q.viewerPullRequests(c, labels))
		if err != nil {
			return nil, queryErr(err)
		}
		add(prs, pullRequestRemote)
	} else {
		for _, project := range target.Projects {
			owner, name, err := splitProject(project)
			if err != nil {
				return nil, queryErr(err)
			}

			issues, err := q.runPaged(ctx, "RepositoryIssues", q.repositoryIssues(c, owner, name, labels))
			if err != nil {
				return nil, queryErr(err)
			}
			add(issues, issueRemote)

			prs, err := q.runPaged(ctx, "RepositoryPullRequests", q.repositoryPullRequests(c, owner, name, labels))
			if err != nil {
				return nil, queryErr(err)
			}
			add(prs, pullRequestRemote)
		}
	}

	return account.Merge(remotes, existing)
}

func queryErr(err error) error {
	return &account.QueryError{Service: serviceName, Message: err.Error()}
}

func splitProject(project string) (string, string, error) {
	owner, name, ok := strings.Cut(project, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid project %q; expected owner/name", project)
	}
	return owner, name, nil
}

type queryPage func(ctx context.Context, cursor *string) (itemConnection, rateLimitInfo, error)

// runPaged drains a cursor-paginated query. A response claiming another
// page without supplying a cursor ends the loop immediately rather than
// spinning forever.
func (q *Query) runPaged(ctx context.Context, name string, page queryPage) ([]itemNode, error) {
	var nodes []itemNode
	var cursor *string
	for {
		conn, rate, err := page(ctx, cursor)
		if err != nil {
			return nil, err
		}
		rate.inspect(q.log, name)
		nodes = append(nodes, conn.Nodes...)

		if !conn.PageInfo.HasNextPage {
			break
		}
		if conn.PageInfo.EndCursor == nil {
			q.log.Warn().Str("query", name).Msg("another page reported without a cursor; stopping pagination")
			break
		}
		cursor = conn.PageInfo.EndCursor
	}
	return nodes, nil
}

func queryVars(cursor *string, labels []string, extra map[string]any) map[string]any {
	vars := map[string]any{}
	if cursor != nil {
		vars["cursor"] = *cursor
	}
	if len(labels) > 0 {
		vars["labels"] = labels
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

var errNoRepository = errors.New("github: no such repository")

func (q *Query) viewerIssues(c *client, labels []string) queryPage {
	return func(ctx context.Context, cursor *string) (itemConnection, rateLimitInfo, error) {
		var data viewerIssuesData
		if err := c.send(ctx, "ViewerIssues", viewerIssuesQuery, queryVars(cursor, labels, nil), &data); err != nil {
			return itemConnection{}, rateLimitInfo{}, err
		}
		return data.Viewer.Issues, data.RateLimit, nil
	}
}

func (q *Query) viewerPullRequests(c *client, labels []string) queryPage {
	return func(ctx context.Context, cursor *string) (itemConnection, rateLimitInfo, error) {
		var data viewerPullRequestsData
		if err := c.send(ctx, "ViewerPullRequests", viewerPullRequestsQuery, queryVars(cursor, labels, nil), &data); err != nil {
			return itemConnection{}, rateLimitInfo{}, err
		}
		return data.Viewer.PullRequests, data.RateLimit, nil
	}
}

func (q *Query) repositoryIssues(c *client, owner, name string, labels []string) queryPage {
	extra := map[string]any{"owner": owner, "name": name}
	return func(ctx context.Context, cursor *string) (itemConnection, rateLimitInfo, error) {
		var data repositoryIssuesData
		if err := c.send(ctx, "RepositoryIssues", repositoryIssuesQuery, queryVars(cursor, labels, extra), &data); err != nil {
			return itemConnection{}, rateLimitInfo{}, err
		}
		if data.Repository == nil {
			return itemConnection{}, rateLimitInfo{}, fmt.Errorf("%w: %s/%s", errNoRepository, owner, name)
		}
		return data.Repository.Issues, data.RateLimit, nil
	}
}

func (q *Query) repositoryPullRequests(c *client, owner, name string, labels []string) queryPage {
	extra := map[string]any{"owner": owner, "name": name}
	return func(ctx context.Context, cursor *string) (itemConnection, rateLimitInfo, error) {
		var data repositoryPullRequestsData
		if err := c.send(ctx, "RepositoryPullRequests", repositoryPullRequestsQuery, queryVars(cursor, labels, extra), &data); err != nil {
			return itemConnection{}, rateLimitInfo{}, err
		}
		if data.Repository == nil {
			return itemConnection{}, rateLimitInfo{}, fmt.Errorf("%w: %s/%s", errNoRepository, owner, name)
		}
		return data.Repository.PullRequests, data.RateLimit, nil
	}
}

func issueRemote(node itemNode, log zerolog.Logger) account.RemoteItem {
	var status todo.Status
	switch node.State {
	case "CLOSED":
		status = todo.StatusCompleted
	case "OPEN":
		if node.Assignees.TotalCount == 0 {
			status = todo.StatusNeedsAction
		} else {
			status = todo.StatusInProcess
		}
	default:
		log.Warn().Str("state", node.State).Str("url", node.URL).Msg("unknown github issue state")
		status = todo.StatusNeedsAction
	}

	return account.RemoteItem{
		Due:         milestoneDue(node),
		Summary:     node.Title,
		Description: node.Body,
		Kind:        todo.KindIssue,
		Status:      status,
		URL:         node.URL,
	}
}

func pullRequestRemote(node itemNode, log zerolog.Logger) account.RemoteItem {
	var status todo.Status
	switch node.State {
	case "MERGED":
		status = todo.StatusCompleted
	case "CLOSED":
		status = todo.StatusCancelled
	case "OPEN":
		if node.Assignees.TotalCount == 0 {
			status = todo.StatusNeedsAction
		} else {
			status = todo.StatusInProcess
		}
	default:
		log.Warn().Str("state", node.State).Str("url", node.URL).Msg("unknown github pull request state")
		status = todo.StatusNeedsAction
	}

	return account.RemoteItem{
		Due:         milestoneDue(node),
		Summary:     node.Title,
		Description: node.Body,
		Kind:        todo.KindPullRequest,
		Status:      status,
		URL:         node.URL,
	}
}

func milestoneDue(node itemNode) *todo.Due {
	if node.Milestone == nil || node.Milestone.DueOn == nil {
		return nil
	}
	due := todo.DueDateTime(*node.Milestone.DueOn)
	return &due
}
