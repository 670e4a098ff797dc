// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlor-social/parlor/internal/config"
	"github.com/parlor-social/parlor/internal/store"
)

// NewStatusCmd creates the status subcommand. It reports the build version
// and, when the database is reachable, the current schema version.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show build and schema status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "parlor %s\n", version)

			migrator, err := store.NewMigrator(cfg.Database.URL)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "schema: unavailable (%v)\n", err)
				return nil
			}
			defer migrator.Close() //nolint:errcheck

			v, dirty, err := migrator.Version()
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "schema: unavailable (%v)\n", err)
				return nil
			}
			if v == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema: no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema: version %d (dirty=%v)\n", v, dirty)
			return nil
		},
	}

	cmd.Flags().String("database.url", config.Default().Database.URL, "PostgreSQL connection URL")
	return cmd
}
