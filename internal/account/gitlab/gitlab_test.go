/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mathstuf/devtodo/internal/account"
	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/todo"
)

func testQuery(srv *httptest.Server) *Query {
	return &Query{
		log: zerolog.Nop(),
		client: &client{
			http:    srv.Client(),
			baseURL: srv.URL + "/api/v4",
			token:   "token",
		},
	}
}

func TestNewQueryRequiresToken(t *testing.T) {
	q := NewQuery("gitlab.com", "", zerolog.Nop())
	for i := 0; i < 2; i++ {
		_, err := q.FetchItems(context.Background(), config.QueryTarget{SelfUser: true}, nil, account.ItemLookup{})
		var svcErr *account.ServiceError
		if !errors.As(err, &svcErr) {
			t.Fatalf("call %d: err = %v, want a service error", i, err)
		}
		if svcErr.Service != "gitlab" {
			t.Fatalf("service = %q", svcErr.Service)
		}
	}
}

func TestFetchItemsSelfUserFansOut(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != "opened" {
			http.Error(w, "wrong state", http.StatusBadRequest)
			return
		}
		requests = append(requests, r.URL.Path+"?scope="+q.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v4/issues" && q.Get("scope") == "assigned_to_me":
			fmt.Fprint(w, `[{"title": "Assigned issue", "description": "body", "state": "opened",
				"web_url": "https://gitlab.example.com/p/-/issues/1",
				"assignees": [{}], "due_date": "2025-08-30", "milestone": null}]`)
		case r.URL.Path == "/api/v4/merge_requests" && q.Get("scope") == "created_by_me":
			fmt.Fprint(w, `[{"title": "My MR", "description": null, "state": "opened",
				"web_url": "https://gitlab.example.com/p/-/merge_requests/2",
				"assignees": [], "milestone": {"due_date": "2025-09-15"}}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	q := testQuery(srv)
	items, err := q.FetchItems(context.Background(), config.QueryTarget{SelfUser: true}, nil, account.ItemLookup{})
	if err != nil {
		t.Fatalf("FetchItems: %v", err)
	}

	want := []string{
		"/api/v4/issues?scope=assigned_to_me",
		"/api/v4/issues?scope=created_by_me",
		"/api/v4/merge_requests?scope=assigned_to_me",
		"/api/v4/merge_requests?scope=created_by_me",
	}
	sort.Strings(requests)
	if len(requests) != len(want) {
		t.Fatalf("requests = %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, requests[i], want[i])
		}
	}

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	byURL := map[string]*todo.Item{}
	for _, item := range items {
		byURL[item.URL()] = item
	}

	issue := byURL["https://gitlab.example.com/p/-/issues/1"]
	if issue == nil {
		t.Fatalf("assigned issue missing")
	}
	if issue.Status() != todo.StatusInProcess {
		t.Errorf("issue status = %q", issue.Status())
	}
	if issue.Due() == nil || issue.Due().String() != "20250830" {
		t.Errorf("issue due = %v; the issue's own date wins", issue.Due())
	}

	mr := byURL["https://gitlab.example.com/p/-/merge_requests/2"]
	if mr == nil {
		t.Fatalf("merge request missing")
	}
	if mr.Status() != todo.StatusNeedsAction {
		t.Errorf("mr status = %q", mr.Status())
	}
	if mr.Due() == nil || mr.Due().String() != "20250915" {
		t.Errorf("mr due = %v; milestone dates are date-only", mr.Due())
	}
}

func TestFetchItemsProjectsFollowPagination(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.EscapedPath() != "/api/v4/projects/group%2Fproj/issues" {
			fmt.Fprint(w, `[]`)
			return
		}
		pages++
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("X-Next-Page", "2")
		}
		fmt.Fprintf(w, `[{"title": "Issue page %s", "description": "", "state": "opened",
			"web_url": "https://gitlab.example.com/group/proj/-/issues/%s",
			"assignees": [], "due_date": null, "milestone": null}]`,
			r.URL.Query().Get("page"), r.URL.Query().Get("page"))
	}))
	defer srv.Close()

	q := testQuery(srv)
	items, err := q.FetchItems(context.Background(), config.QueryTarget{Projects: []string{"group/proj"}}, nil, account.ItemLookup{})
	if err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	if pages != 2 {
		t.Fatalf("pages fetched = %d, want 2", pages)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
}

func TestFetchItemsAppliesLabelFilters(t *testing.T) {
	var sawLabels string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if labels := r.URL.Query().Get("labels"); labels != "" {
			sawLabels = labels
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	q := testQuery(srv)
	filters := []config.Filter{{Label: "bug"}, {Label: "urgent"}}
	if _, err := q.FetchItems(context.Background(), config.QueryTarget{SelfUser: true}, filters, account.ItemLookup{}); err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	if sawLabels != "bug,urgent" {
		t.Fatalf("labels = %q, want comma-joined list", sawLabels)
	}
}

func TestFetchItemsSurfacesQueryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := testQuery(srv)
	_, err := q.FetchItems(context.Background(), config.QueryTarget{SelfUser: true}, nil, account.ItemLookup{})
	var qerr *account.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("err = %v, want a query error", err)
	}
	if qerr.Service != "gitlab" {
		t.Fatalf("service = %q", qerr.Service)
	}
}

func TestMergeRequestStatusDerivation(t *testing.T) {
	cases := []struct {
		state     string
		assignees int
		want      todo.Status
	}{
		{"merged", 0, todo.StatusCompleted},
		{"closed", 0, todo.StatusCancelled},
		{"opened", 0, todo.StatusNeedsAction},
		{"opened", 1, todo.StatusInProcess},
		{"locked", 0, todo.StatusNeedsAction},
	}
	for _, tc := range cases {
		mr := mergeRequest{Title: "t", State: tc.state, WebURL: "https://example.com/1", Assignees: make([]user, tc.assignees)}
		remote := mergeRequestRemote(mr, zerolog.Nop())
		if remote.Status != tc.want {
			t.Errorf("mr state=%s assignees=%d: status = %q, want %q", tc.state, tc.assignees, remote.Status, tc.want)
		}
	}
}

func TestIssueStatusDerivation(t *testing.T) {
	cases := []struct {
		state     string
		assignees int
		want      todo.Status
	}{
		{"closed", 0, todo.StatusCompleted},
		{"opened", 0, todo.StatusNeedsAction},
		{"opened", 2, todo.StatusInProcess},
		{"moved", 0, todo.StatusNeedsAction},
	}
	for _, tc := range cases {
		iss := issue{Title: "t", State: tc.state, WebURL: "https://example.com/1", Assignees: make([]user, tc.assignees)}
		remote := issueRemote(iss, zerolog.Nop())
		if remote.Status != tc.want {
			t.Errorf("issue state=%s assignees=%d: status = %q, want %q", tc.state, tc.assignees, remote.Status, tc.want)
		}
	}
}
