// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Parlor CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parlor",
		Short: "Parlor - realtime delivery service for the Parlor forum",
		Long: `Parlor keeps live client sessions informed of notifications and chat
activity: a websocket gateway, a topic broadcaster, and a notification
pipeline with caching, logging, and access control.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
