/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RodeFRode/jira-extraction/internal/jira"
	"github.com/RodeFRode/jira-extraction/internal/transform"
	"github.com/spf13/cobra"
)

var (
	flagPreviewJQL       string
	flagPreviewLimit     int
	flagPreviewTransform bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print issues matching an ad-hoc JQL query",
	Long: `Preview runs an arbitrary JQL query and prints matching issues as
indented JSON without touching any cursor or database. With
--transformed the issues are printed in warehouse row shape instead of
the raw API payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPreviewJQL == "" { return fmt.Errorf("--jql is required") }
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		api, err := newClient()
		if err != nil { return err }
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		req := jira.SearchRequest{
			JQL:           flagPreviewJQL,
			ValidateQuery: cfg.Jira.ValidateQuery,
			PageSize:      cfg.Jira.PageSize,
		}
		seen := 0
		for issue, err := range api.SearchStream(ctx, req) {
			if err != nil { return err }
			if flagPreviewTransform {
				t, err := transform.Transform(issue)
				if err != nil { return err }
				if err := enc.Encode(t); err != nil { return err }
			} else if err := enc.Encode(issue); err != nil {
				return err
			}
			seen++
			if flagPreviewLimit > 0 && seen >= flagPreviewLimit { break }
		}
		log.Info().Int("issues", seen).Msg("preview finished")
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&flagPreviewJQL, "jql", "", "JQL query to run (required)")
	previewCmd.Flags().IntVar(&flagPreviewLimit, "limit", 20, "stop after this many issues (0 = no limit)")
	previewCmd.Flags().BoolVar(&flagPreviewTransform, "transformed", false, "print warehouse row shape instead of raw issues")
	_ = previewCmd.MarkFlagRequired("jql")
}
