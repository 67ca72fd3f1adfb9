/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package web is the daemon-mode HTTP surface: a health check and a manual
// sync trigger.
package web

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(log zerolog.Logger, svc Runner) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(log, svc)

	r.GET("/healthz", h.Healthz)
	r.POST("/sync", h.SyncNow)

	return r
}
