/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/RodeFRode/jira-extraction/internal/extract"
	"github.com/RodeFRode/jira-extraction/internal/pipeline"
	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run the initial extraction over the configured window",
	Long: `Backfill extracts every configured scope over the initial window
(windows.initial_days) ordered by ascending update time. Cursors are
persisted per page, so an interrupted backfill resumes where it left
off when re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(extract.ModeInitial)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental catch-up pass",
	Long: `Sync extracts issues updated since each scope's persisted cursor,
minus the configured safety skew. Pages already loaded are re-delivered
on overlap; loads are idempotent, so replays are harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(extract.ModeIncremental)
	},
}

func runOnce(mode extract.Mode) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := newClient()
	if err != nil { return err }
	be, err := openBackends(ctx)
	if err != nil { return err }
	defer be.close()

	runner := pipeline.NewRunner(cfg, api, be.store, be.loader, log)
	_, err = runner.Run(ctx, mode)
	return err
}
