/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package todo

import (
	"strings"
	"testing"
	"time"
)

func newTestItem(t *testing.T) *Item {
	t.Helper()
	item, err := NewItem(Params{
		Kind:        KindIssue,
		Status:      StatusNeedsAction,
		URL:         "https://example.com/project/issues/1",
		Summary:     "Fix the widget",
		Description: "It is broken.",
	})
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	return item
}

func TestNewItemValidation(t *testing.T) {
	_, err := NewItem(Params{})
	if err == nil {
		t.Fatalf("expected an error for empty params")
	}
	for _, field := range []string{"kind", "status", "url", "summary"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %q", err, field)
		}
	}

	_, err = NewItem(Params{Kind: KindIssue, Status: StatusNeedsAction, URL: "https://example.com"})
	if err == nil || strings.Contains(err.Error(), "url") {
		t.Fatalf("expected only the summary to be reported, got %v", err)
	}
}

func TestNewItemStripsCarriageReturns(t *testing.T) {
	item, err := NewItem(Params{
		Kind:        KindIssue,
		Status:      StatusNeedsAction,
		URL:         "https://example.com/1",
		Summary:     "s",
		Description: "line one\r\nline two\r\n",
	})
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if want := "line one\nline two\n"; item.Description() != want {
		t.Fatalf("description = %q, want %q", item.Description(), want)
	}
}

func TestNewItemStartsClean(t *testing.T) {
	item := newTestItem(t)
	if item.Dirty() {
		t.Fatalf("fresh item should not be dirty")
	}
	if item.UID() == "" {
		t.Fatalf("fresh item needs a uid")
	}
	if item.Created().IsZero() {
		t.Fatalf("fresh item needs a creation time")
	}
}

func TestSettersTrackChanges(t *testing.T) {
	item := newTestItem(t)

	item.SetSummary(item.Summary())
	item.SetStatus(item.Status())
	item.SetDescription(item.Description())
	if item.Dirty() {
		t.Fatalf("assigning identical values should not dirty the item")
	}

	item.SetSummary("Fix the other widget")
	if !item.Dirty() {
		t.Fatalf("changing the summary should dirty the item")
	}
	if item.Summary() != "Fix the other widget" {
		t.Fatalf("summary = %q", item.Summary())
	}
}

func TestSetDescriptionStripsCarriageReturns(t *testing.T) {
	item := newTestItem(t)
	item.SetDescription("It is broken.\r")
	if item.Dirty() {
		t.Fatalf("a CR-only difference should not dirty the item")
	}
	item.SetDescription("really\r\nbroken")
	if item.Description() != "really\nbroken" {
		t.Fatalf("description = %q", item.Description())
	}
}

func TestSetDueGranularity(t *testing.T) {
	item := newTestItem(t)
	day := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	item.SetDue(DueDate(day))
	if !item.Dirty() {
		t.Fatalf("setting a due date should dirty the item")
	}
	if got := item.Due().String(); got != "20250314" {
		t.Fatalf("due = %q", got)
	}

	item.SetDue(DueDate(day))
	lm := item.LastModified()
	item.SetDue(DueDate(day))
	if !item.LastModified().Equal(lm) {
		t.Fatalf("an equal due date should not touch the item")
	}

	item.SetDue(DueDateTime(day))
	if got := item.Due().String(); got != "20250314T000000Z" {
		t.Fatalf("due = %q", got)
	}
}

func TestParseDue(t *testing.T) {
	due, ok := ParseDue("20250314T120000Z")
	if !ok || due.DateOnly() {
		t.Fatalf("expected a date-time due, got %v (ok=%v)", due, ok)
	}
	due, ok = ParseDue("20250314")
	if !ok || !due.DateOnly() {
		t.Fatalf("expected a date-only due, got %v (ok=%v)", due, ok)
	}
	if _, ok := ParseDue("next tuesday"); ok {
		t.Fatalf("nonsense should not parse")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("IN-PROCESS"); !ok || status != StatusInProcess {
		t.Fatalf("ParseStatus(IN-PROCESS) = %v, %v", status, ok)
	}
	if _, ok := ParseStatus("DONE"); ok {
		t.Fatalf("DONE is not a valid status")
	}
}
