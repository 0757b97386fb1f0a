/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/jobs"
	"github.com/RodeFRode/jira-extraction/internal/ops"
	"github.com/RodeFRode/jira-extraction/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run incremental syncs on a schedule with an ops HTTP endpoint",
	Long: `Daemon keeps the warehouse current: it runs an incremental sync on
the configured cron schedule (daemon.cron) and serves /healthz, /status
and POST /admin/sync on daemon.http_addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		api, err := newClient()
		if err != nil { return err }
		be, err := openBackends(ctx)
		if err != nil { return err }
		defer be.close()

		runner := pipeline.NewRunner(cfg, api, be.store, be.loader, log)
		cr, err := jobs.NewCron(cfg, log, runner, be.db)
		if err != nil { return err }
		cr.Start()
		defer cr.Stop()

		srv := &http.Server{
			Addr:    cfg.Daemon.HTTPAddr,
			Handler: ops.NewRouter(cfg, log, runner, be.store),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Str("cron", cfg.Daemon.Cron).Msg("daemon started")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) { return err }
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
