// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/parlor-social/parlor/internal/config"
	"github.com/parlor-social/parlor/internal/logging"
	"github.com/parlor-social/parlor/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logging.SetDefault("parlor", version, cfg.Log.Format)

			migrator, err := store.NewMigrator(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer func() {
				if err := migrator.Close(); err != nil {
					slog.Warn("closing migrator", "error", err)
				}
			}()

			if err := migrator.Up(); err != nil {
				return err
			}

			v, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			slog.Info("migrations applied", "version", v, "dirty", dirty)
			return nil
		},
	}

	cmd.Flags().String("database.url", config.Default().Database.URL, "PostgreSQL connection URL")
	return cmd
}
