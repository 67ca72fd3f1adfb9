/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package account

import (
	"github.com/mathstuf/devtodo/internal/todo"
)

// RemoteItem is a normalized issue, pull request, or merge request as
// fetched from a service. It lives only between fetch and reconciliation.
type RemoteItem struct {
	Due         *todo.Due
	Summary     string
	Description string
	Kind        todo.Kind
	Status      todo.Status
	URL         string
}

// Merge reconciles fetched remote items against the known items. Items with
// a matching URL are updated through their setters, so an identical re-run
// changes nothing; URLs with no match become new items. Local items absent
// from remotes are left untouched.
func Merge(remotes []RemoteItem, existing ItemLookup) ([]*todo.Item, error) {
	var created []*todo.Item
	for _, remote := range remotes {
		if item, ok := existing[remote.URL]; ok {
			if remote.Due != nil {
				item.SetDue(*remote.Due)
			}
			item.SetStatus(remote.Status)
			item.SetSummary(remote.Summary)
			item.SetDescription(remote.Description)
			continue
		}

		item, err := todo.NewItem(todo.Params{
			Kind:        remote.Kind,
			Status:      remote.Status,
			URL:         remote.URL,
			Summary:     remote.Summary,
			Description: remote.Description,
			Due:         remote.Due,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, item)
	}
	return created, nil
}
