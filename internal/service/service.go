/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package service orchestrates a sync run: it reads the existing documents
// of each target, asks the configured backends for fresh items, and writes
// the results back.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/mathstuf/devtodo/internal/account"
	"github.com/mathstuf/devtodo/internal/account/github"
	"github.com/mathstuf/devtodo/internal/account/gitlab"
	"github.com/mathstuf/devtodo/internal/config"
	"github.com/mathstuf/devtodo/internal/todo"
)

// ErrBusy reports that a sync run is already in flight.
var ErrBusy = errors.New("a sync run is already in progress")

type Service struct {
	cfg config.Config
	log zerolog.Logger

	// Backends are cached per account name so every profile referencing the
	// same account reuses one client handle within a run.
	sources map[string]account.ItemSource
	connect func(config.Account, zerolog.Logger) (account.ItemSource, error)

	running sync.Mutex
}

func New(cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		log:     log,
		sources: make(map[string]account.ItemSource),
		connect: connect,
	}
}

// connect is the service registry: it maps an account's service identifier
// to a query backend.
func connect(acct config.Account, log zerolog.Logger) (account.ItemSource, error) {
	switch acct.Service {
	case "github":
		return github.NewQuery(acct.Hostname, acct.Secret, log), nil
	case "gitlab":
		return gitlab.NewQuery(acct.Hostname, acct.Secret, log), nil
	}
	return nil, fmt.Errorf("unknown service: %s", acct.Service)
}

func (s *Service) source(name string) (account.ItemSource, error) {
	if src, ok := s.sources[name]; ok {
		return src, nil
	}
	acct, ok := s.cfg.Accounts[name]
	if !ok {
		return nil, fmt.Errorf("unknown account: %s", name)
	}
	src, err := s.connect(acct, s.log.With().Str("account", name).Logger())
	if err != nil {
		return nil, err
	}
	s.sources[name] = src
	return src, nil
}

// Running reports whether a sync run is currently in flight.
func (s *Service) Running() bool {
	if s.running.TryLock() {
		s.running.Unlock()
		return false
	}
	return true
}

// TryRun runs Run unless another run is in flight, in which case it returns
// ErrBusy without blocking. Used by the daemon's cron and HTTP triggers.
func (s *Service) TryRun(ctx context.Context, names []string) error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	defer s.running.Unlock()
	return s.Run(ctx, names)
}

// Run processes the named sync targets strictly sequentially. With no names
// it falls back to the configured default targets, then to every target.
func (s *Service) Run(ctx context.Context, names []string) error {
	if len(names) == 0 {
		names = s.cfg.DefaultTargets
	}
	if len(names) == 0 {
		names = sortedKeys(s.cfg.Targets)
	}

	var errs []error
	for _, name := range names {
		target, ok := s.cfg.Targets[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown target: %s", name))
			continue
		}
		if err := s.syncTarget(ctx, name, target); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) syncTarget(ctx context.Context, name string, target config.SyncTarget) error {
	log := s.log.With().Str("target", name).Logger()

	lock := flock.New(filepath.Join(target.Directory, ".devtodo.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", target.Directory, err)
	}
	if !locked {
		log.Warn().Str("directory", target.Directory).Msg("target locked by another run; skipping")
		return nil
	}
	defer func() { _ = lock.Unlock() }()

	files, lookup, err := s.loadDirectory(target.Directory, log)
	if err != nil {
		return err
	}

	var errs []error
	var created []*todo.Item
	for _, pname := range sortedKeys(target.Profiles) {
		profile := target.Profiles[pname]
		src, err := s.source(profile.Account)
		if err != nil {
			errs = append(errs, fmt.Errorf("profile %s: %w", pname, err))
			continue
		}

		newItems, err := src.FetchItems(ctx, profile.Target, profile.Filters, lookup)
		if err != nil {
			// One profile failing does not disturb what other profiles have
			// already reconciled.
			log.Error().Err(err).Str("profile", pname).Msg("fetch failed; skipping profile")
			errs = append(errs, fmt.Errorf("profile %s: %w", pname, err))
			continue
		}

		// Register new items so a later profile seeing the same URL updates
		// instead of duplicating.
		for _, item := range newItems {
			lookup[item.URL()] = item
		}
		created = append(created, newItems...)
		log.Info().Str("profile", pname).Int("new_items", len(newItems)).Msg("profile synced")
	}

	// Best effort: attempt every pending write, collect what fails. Items
	// gone from the remote side stay on disk untouched by policy.
	for _, item := range created {
		if _, err := todo.CreateFile(target.Directory, item); err != nil {
			errs = append(errs, err)
		}
	}
	for _, file := range files {
		if err := file.Write(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) loadDirectory(dir string, log zerolog.Logger) ([]*todo.File, account.ItemLookup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []*todo.File
	lookup := account.ItemLookup{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ics") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		file, err := todo.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		if file == nil {
			log.Debug().Str("path", path).Msg("skipping document not managed by devtodo")
			continue
		}
		files = append(files, file)
		lookup[file.Item().URL()] = file.Item()
	}
	return files, lookup, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
