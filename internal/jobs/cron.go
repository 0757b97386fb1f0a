/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package jobs schedules background incremental syncs for the daemon.
package jobs

import (
	"context"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/config"
	"github.com/RodeFRode/jira-extraction/internal/extract"
	"github.com/RodeFRode/jira-extraction/internal/pipeline"
	"github.com/RodeFRode/jira-extraction/internal/warehouse"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// syncLockKey guards the incremental sync across daemon instances that
// share a warehouse.
const syncLockKey int64 = 727274

// Cron runs incremental catch-up passes on the configured schedule.
// When a warehouse is attached, a Postgres advisory lock keeps multiple
// daemon instances from extracting the same scopes concurrently.
type Cron struct {
	cfg    config.Config
	log    zerolog.Logger
	runner *pipeline.Runner
	db     *warehouse.DB // nil for local runs
	c      *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, runner *pipeline.Runner, db *warehouse.DB) (*Cron, error) {
	loc := time.Local
	if cfg.Daemon.TZ != "" {
		l, err := time.LoadLocation(cfg.Daemon.TZ)
		if err != nil { return nil, err }
		loc = l
	}
	c := cron.New(cron.WithLocation(loc))
	cr := &Cron{cfg: cfg, log: log, runner: runner, db: db, c: c}
	if _, err := c.AddFunc(cfg.Daemon.Cron, cr.sync); err != nil { return nil, err }
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop halts scheduling and waits for an in-flight sync to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if cr.db != nil {
		ok, err := cr.db.TryAdvisoryLock(ctx, syncLockKey)
		if err != nil { cr.log.Error().Err(err).Msg("cron: advisory lock"); return }
		if !ok { cr.log.Info().Msg("cron: sync already running elsewhere, skipping"); return }
		defer func() { _ = cr.db.AdvisoryUnlock(context.Background(), syncLockKey) }()
	}
	cr.log.Info().Msg("cron: incremental sync")
	if _, err := cr.runner.Run(ctx, extract.ModeIncremental); err != nil {
		cr.log.Error().Err(err).Msg("cron: sync failed")
	}
}
