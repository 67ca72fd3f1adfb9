/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package jobs schedules periodic sync runs for daemon mode.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mathstuf/devtodo/internal/service"
)

type runner interface {
	TryRun(ctx context.Context, names []string) error
}

type Cron struct {
	log zerolog.Logger
	svc runner
	c   *cron.Cron
}

// NewCron schedules a sync of the default targets on the given cron spec
// (standard five-field syntax).
func NewCron(spec string, log zerolog.Logger, svc runner) (*Cron, error) {
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	cr := &Cron{log: log, svc: svc, c: c}
	if _, err := c.AddFunc(spec, cr.sync); err != nil {
		return nil, fmt.Errorf("cron: schedule %q: %w", spec, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	cr.log.Info().Msg("cron: sync")
	if err := cr.svc.TryRun(ctx, nil); err != nil {
		if errors.Is(err, service.ErrBusy) {
			cr.log.Info().Msg("cron: previous run still in progress")
			return
		}
		cr.log.Error().Err(err).Msg("cron: sync failed")
	}
}
