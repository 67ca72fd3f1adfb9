/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package todo holds the task item entity and the VTODO document codec.
package todo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a task status, stored in its iCalendar encoding.
type Status string

const (
	StatusNeedsAction Status = "NEEDS-ACTION"
	StatusCompleted   Status = "COMPLETED"
	StatusInProcess   Status = "IN-PROCESS"
	StatusCancelled   Status = "CANCELLED"
)

// ParseStatus maps an iCalendar STATUS value back to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusNeedsAction, StatusCompleted, StatusInProcess, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Kind is what a task item represents, stored as its category token.
type Kind string

const (
	KindIssue               Kind = "issue"
	KindAssignedIssue       Kind = "assigned-issue"
	KindPullRequest         Kind = "pull-request"
	KindAssignedPullRequest Kind = "assigned-pull-request"
	KindTodo                Kind = "todo"
)

var allKinds = []Kind{
	KindIssue,
	KindAssignedIssue,
	KindPullRequest,
	KindAssignedPullRequest,
	KindTodo,
}

func isKind(category string) bool {
	for _, kind := range allKinds {
		if category == string(kind) {
			return true
		}
	}
	return false
}

const (
	// DateTimeFormat is the UTC timestamp layout used in documents.
	DateTimeFormat = "20060102T150405Z"
	// DateFormat is the date-only layout used for DUE values.
	DateFormat = "20060102"
)

// Due is a due date with either date or date-time granularity.
type Due struct {
	t        time.Time
	dateOnly bool
}

func DueDate(t time.Time) Due {
	return Due{t: t.UTC(), dateOnly: true}
}

func DueDateTime(t time.Time) Due {
	return Due{t: t.UTC()}
}

func (d Due) DateOnly() bool { return d.dateOnly }

func (d Due) Time() time.Time { return d.t }

func (d Due) String() string {
	if d.dateOnly {
		return d.t.Format(DateFormat)
	}
	return d.t.Format(DateTimeFormat)
}

func (d Due) Equal(o Due) bool {
	return d.dateOnly == o.dateOnly && d.String() == o.String()
}

// ParseDue tries the date-time layout first, then date-only.
func ParseDue(s string) (Due, bool) {
	if t, err := time.Parse(DateTimeFormat, s); err == nil {
		return DueDateTime(t), true
	}
	if t, err := time.Parse(DateFormat, s); err == nil {
		return DueDate(t), true
	}
	return Due{}, false
}

// Item is one todo entry. The uid and creation time never change after
// construction; all other content mutates only through setters so that
// change detection stays accurate.
type Item struct {
	uid         string
	kind        Kind
	created     time.Time
	due         *Due
	status      Status
	url         string
	summary     string
	description string

	lastModified time.Time
	dirty        bool
}

// Params carries the fields needed to build a fresh Item.
type Params struct {
	Kind        Kind
	Status      Status
	URL         string
	Summary     string
	Description string
	Due         *Due
}

// NewItem builds an item for a freshly discovered remote entry. It reports
// every missing required field at once.
func NewItem(p Params) (*Item, error) {
	var missing []string
	if p.Kind == "" {
		missing = append(missing, "kind")
	}
	if p.Status == "" {
		missing = append(missing, "status")
	}
	if p.URL == "" {
		missing = append(missing, "url")
	}
	if p.Summary == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("todo item missing required fields: %s", strings.Join(missing, ", "))
	}

	now := time.Now().UTC()
	item := &Item{
		uid:          uuid.NewString(),
		kind:         p.Kind,
		created:      now,
		status:       p.Status,
		url:          p.URL,
		summary:      p.Summary,
		description:  strings.ReplaceAll(p.Description, "\r", ""),
		lastModified: now,
	}
	if p.Due != nil {
		due := *p.Due
		item.due = &due
	}
	return item, nil
}

func (i *Item) UID() string             { return i.uid }
func (i *Item) Kind() Kind              { return i.kind }
func (i *Item) Created() time.Time      { return i.created }
func (i *Item) Due() *Due               { return i.due }
func (i *Item) Status() Status          { return i.status }
func (i *Item) URL() string             { return i.url }
func (i *Item) Summary() string         { return i.summary }
func (i *Item) Description() string     { return i.description }
func (i *Item) LastModified() time.Time { return i.lastModified }
func (i *Item) Dirty() bool             { return i.dirty }

func (i *Item) touch() {
	i.lastModified = time.Now().UTC()
	i.dirty = true
}

func (i *Item) SetDue(due Due) {
	if i.due != nil && i.due.Equal(due) {
		return
	}
	i.due = &due
	i.touch()
}

func (i *Item) SetStatus(status Status) {
	if i.status == status {
		return
	}
	i.status = status
	i.touch()
}

func (i *Item) SetSummary(summary string) {
	if i.summary == summary {
		return
	}
	i.summary = summary
	i.touch()
}

func (i *Item) SetDescription(description string) {
	// CRs do not survive a round trip through the ical layer; drop them up
	// front so read-back comparisons stay stable.
	description = strings.ReplaceAll(description, "\r", "")
	if i.description == description {
		return
	}
	i.description = description
	i.touch()
}
