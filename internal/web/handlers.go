/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Runner is the slice of the sync service the HTTP surface needs.
type Runner interface {
	TryRun(ctx context.Context, names []string) error
	Running() bool
}

type Handlers struct {
	log zerolog.Logger
	svc Runner
}

func NewHandlers(log zerolog.Logger, svc Runner) *Handlers {
	return &Handlers{log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "syncing": h.svc.Running()})
}

// SyncNow queues a sync of the given targets (repeatable ?target= query
// parameter; empty means the configured defaults).
func (h *Handlers) SyncNow(c *gin.Context) {
	if h.svc.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}
	targets := c.QueryArray("target")

	// Detach from the HTTP request so a client disconnect does not cancel
	// the run.
	go func() {
		if err := h.svc.TryRun(context.Background(), targets); err != nil {
			h.log.Error().Err(err).Msg("triggered sync failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
