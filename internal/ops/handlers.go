/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/config"
	"github.com/RodeFRode/jira-extraction/internal/extract"
	"github.com/RodeFRode/jira-extraction/internal/pipeline"
	"github.com/RodeFRode/jira-extraction/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handlers struct {
	cfg    config.Config
	log    zerolog.Logger
	runner *pipeline.Runner
	store  state.Store
}

func NewHandlers(cfg config.Config, log zerolog.Logger, runner *pipeline.Runner, store state.Store) *Handlers {
	return &Handlers{cfg: cfg, log: log, runner: runner, store: store}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type scopeStatus struct {
	Scope         string    `json:"scope"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	LastIssueKey  string    `json:"last_issue_key,omitempty"`
	ResumePageAt  int       `json:"resume_page_at,omitempty"`
}

// Status reports the persisted cursor per scope and the last run, if
// one has finished since the daemon started.
func (h *Handlers) Status(c *gin.Context) {
	scopes := make([]scopeStatus, 0, len(h.cfg.IssueTypeScopes()))
	for _, pair := range h.cfg.IssueTypeScopes() {
		name := config.ScopeName(pair.Scope.Project, pair.IssueType.Name)
		cur, err := h.store.Load(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		scopes = append(scopes, scopeStatus{
			Scope:         name,
			LastUpdatedAt: cur.LastUpdatedAt,
			LastIssueKey:  cur.LastIssueKey,
			ResumePageAt:  cur.ResumePageAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"scopes": scopes, "last_run": h.runner.LastReport()})
}

// SyncNow queues an incremental run detached from the request context
// so a client disconnect cannot cancel it mid-page.
func (h *Handlers) SyncNow(c *gin.Context) {
	go func() {
		if _, err := h.runner.Run(context.Background(), extract.ModeIncremental); err != nil {
			h.log.Error().Err(err).Msg("admin sync failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
