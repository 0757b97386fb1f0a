/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package ops exposes the daemon's operational HTTP surface.
package ops

import (
	"github.com/RodeFRode/jira-extraction/internal/config"
	"github.com/RodeFRode/jira-extraction/internal/pipeline"
	"github.com/RodeFRode/jira-extraction/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, runner *pipeline.Runner, store state.Store) *gin.Engine {
	if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, runner, store)

	r.GET("/healthz", h.Healthz)
	r.GET("/status", h.Status)
	r.POST("/admin/sync", h.SyncNow)

	return r
}
