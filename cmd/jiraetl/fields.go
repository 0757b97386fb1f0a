/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var flagFieldsOut string

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Dump Jira field definitions as JSON",
	Long: `Fields fetches /rest/api/2/field and writes the definitions as
indented JSON. Use it to find the customfield_* ids to list under a
scope's issue type fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		api, err := newClient()
		if err != nil { return err }
		defs, err := api.FieldDefinitions(ctx)
		if err != nil { return err }

		out := os.Stdout
		if flagFieldsOut != "" {
			f, err := os.Create(flagFieldsOut)
			if err != nil { return err }
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(defs); err != nil { return err }
		log.Info().Int("fields", len(defs)).Msg("field definitions dumped")
		return nil
	},
}

func init() {
	fieldsCmd.Flags().StringVar(&flagFieldsOut, "out", "", "write to file instead of stdout")
}
