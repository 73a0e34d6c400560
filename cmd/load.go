// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/pgsing/pgsing/cmd/flags"
	"github.com/pgsing/pgsing/internal/config"
	"github.com/pgsing/pgsing/pkg/db"
	"github.com/pgsing/pgsing/pkg/dispatch"
	"github.com/pgsing/pgsing/pkg/load"
	"github.com/pgsing/pgsing/pkg/logging"
	"github.com/pgsing/pgsing/pkg/stream"
)

func loadCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Read a message stream and load it into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigFile())
			if err != nil {
				return err
			}

			in := os.Stdin
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("opening input %s: %w", input, err)
				}
				defer f.Close()
				in = f
			}

			return runLoad(cmd, cfg, in)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Read messages from this file instead of stdin")

	return cmd
}

func runLoad(cmd *cobra.Command, cfg config.Config, in *os.File) error {
	sqlDB, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer sqlDB.Close()

	rdb := &db.RDB{DB: sqlDB}
	engine := load.New(rdb, cfg.PostgresSchema)

	ctx := cmd.Context()
	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping catalog: %w", err)
	}

	streamCfg := stream.Config{
		MaxRows:                 cfg.MaxBatchRows,
		MaxBufferSize:           cfg.MaxBatchSize,
		InvalidRecordsDetect:    cfg.InvalidRecordsDetect,
		InvalidRecordsThreshold: cfg.InvalidRecordsThreshold,
	}

	d := dispatch.New(engine, streamCfg, cmd.OutOrStdout(), logging.New())
	return d.Run(ctx, in)
}
