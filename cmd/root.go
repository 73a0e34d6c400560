// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pgsing/pgsing/cmd/flags"
)

// Version is the target's version, overridden at build time.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "pgsing",
	Short:        "A streaming target that loads line-delimited records into Postgres",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	flags.PostgresConnectionFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(schemaCmd())

	return rootCmd.Execute()
}
