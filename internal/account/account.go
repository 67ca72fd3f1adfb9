/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package account defines the contract between the sync orchestrator and
// the per-service query backends.
package account

import (
	"context"
	"fmt"

	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/todo"
)

// ItemLookup indexes already-known items by their URL, the merge key.
type ItemLookup map[string]*todo.Item

// ItemSource fetches remote items for one account. Matched items in
// existing are updated in place; only genuinely new items are returned.
type ItemSource interface {
	FetchItems(ctx context.Context, target config.QueryTarget, filters []config.Filter, existing ItemLookup) ([]*todo.Item, error)
}

// ServiceError reports that a backend could not reach or authenticate with
// its service. Backends log it once per instance and then keep returning it
// silently.
type ServiceError struct {
	Service string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error for %s", e.Service)
}

// QueryError reports a failed query build or execution.
type QueryError struct {
	Service string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error for %s: %s", e.Service, e.Message)
}
