// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pgsing/pgsing/cmd/flags"
	"github.com/pgsing/pgsing/internal/config"
	"github.com/pgsing/pgsing/pkg/catalog"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the target's discovered catalog",
	}
	cmd.AddCommand(schemaDumpCmd())
	return cmd
}

func schemaDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every table this target has already reconciled, as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigFile())
			if err != nil {
				return err
			}

			sqlDB, err := sql.Open("postgres", cfg.ConnString())
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			defer sqlDB.Close()

			adapter := catalog.New(cfg.PostgresSchema)
			tables, err := adapter.DiscoverSchema(cmd.Context(), sqlDB)
			if err != nil {
				return fmt.Errorf("discovering schema: %w", err)
			}

			out, err := yaml.Marshal(tables)
			if err != nil {
				return fmt.Errorf("marshaling schema as yaml: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
