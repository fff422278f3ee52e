// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Lusso CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lusso",
		Short: "Lusso - centralized login authority for game worlds",
		Long: `Lusso is the single sign-on authority for a family of game worlds.
It authenticates players over a binary TCP protocol, issues session
credentials, and answers verification queries from world servers over HTTP.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashpwCmd())
	cmd.AddCommand(NewCertgenCmd())

	return cmd
}
