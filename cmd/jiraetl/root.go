/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"fmt"

	"github.com/RodeFRode/jira-extraction/internal/config"
	"github.com/RodeFRode/jira-extraction/internal/jira"
	"github.com/RodeFRode/jira-extraction/internal/load"
	"github.com/RodeFRode/jira-extraction/internal/logger"
	"github.com/RodeFRode/jira-extraction/internal/state"
	"github.com/RodeFRode/jira-extraction/internal/warehouse"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// flagConfig is set by the --config flag.
	flagConfig string
	// flagLocalDB switches persistence to a local SQLite file.
	flagLocalDB string

	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "jiraetl",
	Short:         "Resumable Jira work-item extraction into a warehouse",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flagConfig)
		if err != nil { return err }
		cfg = c
		log = logger.New(cfg.AppEnv)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config/etl.yml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLocalDB, "local-db", "", "SQLite file for cursors and payloads instead of Postgres")

	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(previewCmd)
}

func newClient() (*jira.Client, error) {
	pat, err := cfg.Jira.PAT()
	if err != nil { return nil, err }
	httpc, err := jira.NewHTTPClient(jira.HTTPOptions{
		BaseURL:  cfg.Jira.BaseURL,
		PAT:      pat,
		CABundle: cfg.Jira.CABundle,
		Timeout:  cfg.Jira.Timeout(),
	}, log)
	if err != nil { return nil, err }
	return jira.NewClient(httpc, log), nil
}

// backends holds the persistence pair behind one run. Exactly one of
// db/sqlite is non-nil in database mode; both are nil in console mode.
type backends struct {
	store  state.Store
	loader load.Loader
	db     *warehouse.DB
	close  func()
}

// openBackends picks the store and loader for the configured output
// mode. Console mode keeps cursors in memory so dry runs never advance
// persisted state.
func openBackends(ctx context.Context) (*backends, error) {
	if cfg.Output.PrintOnly() {
		if flagLocalDB != "" {
			log.Warn().Msg("output.mode is console; --local-db is ignored")
		}
		return &backends{store: state.NewMemory(), loader: load.NewConsole(nil), close: func() {}}, nil
	}
	if flagLocalDB != "" {
		store, err := state.NewSQLite(ctx, flagLocalDB)
		if err != nil { return nil, fmt.Errorf("open cursor store: %w", err) }
		loader, err := load.NewSQLite(ctx, flagLocalDB)
		if err != nil { store.Close(); return nil, fmt.Errorf("open local loader: %w", err) }
		return &backends{store: store, loader: loader, close: func() { loader.Close(); store.Close() }}, nil
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("config: database.dsn_env is required unless output.mode is console or --local-db is set")
	}
	dsn, err := cfg.Database.DSN()
	if err != nil { return nil, err }
	db, err := warehouse.Open(ctx, dsn, log)
	if err != nil { return nil, fmt.Errorf("open warehouse: %w", err) }
	store, err := state.NewPostgres(ctx, db.Pool)
	if err != nil { db.Close(); return nil, fmt.Errorf("init cursor store: %w", err) }
	return &backends{store: store, loader: load.NewPostgres(db.Pool, log), db: db, close: db.Close}, nil
}
