// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ConfigFile() string {
	return viper.GetString("CONFIG_FILE")
}

func PostgresHost() string {
	return viper.GetString("POSTGRES_HOST")
}

func PostgresPort() int {
	return viper.GetInt("POSTGRES_PORT")
}

func PostgresDatabase() string {
	return viper.GetString("POSTGRES_DATABASE")
}

func PostgresUsername() string {
	return viper.GetString("POSTGRES_USERNAME")
}

func PostgresPassword() string {
	return viper.GetString("POSTGRES_PASSWORD")
}

func PostgresSchema() string {
	return viper.GetString("POSTGRES_SCHEMA")
}

func MaxBatchRows() int {
	return viper.GetInt("MAX_BATCH_ROWS")
}

func MaxBatchSize() int64 {
	return viper.GetInt64("MAX_BATCH_SIZE")
}

func LockTimeout() int {
	return viper.GetInt("LOCK_TIMEOUT")
}

// PostgresConnectionFlags registers the persistent flags shared by every
// subcommand that talks to the target database.
func PostgresConnectionFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("postgres-host", "localhost", "Postgres host")
	cmd.PersistentFlags().Int("postgres-port", 5432, "Postgres port")
	cmd.PersistentFlags().String("postgres-database", "", "Postgres database (required)")
	cmd.PersistentFlags().String("postgres-username", "", "Postgres username")
	cmd.PersistentFlags().String("postgres-password", "", "Postgres password")
	cmd.PersistentFlags().String("postgres-schema", "public", "Postgres schema to load into")
	cmd.PersistentFlags().Int("max-batch-rows", 200000, "Maximum rows buffered per stream before a flush")
	cmd.PersistentFlags().Int64("max-batch-size", 100*1024*1024, "Maximum bytes buffered per stream before a flush")
	cmd.PersistentFlags().Int("lock-timeout", 500, "Postgres lock timeout in milliseconds")
	cmd.PersistentFlags().String("config", "", "Path to a config file")

	viper.BindPFlag("POSTGRES_HOST", cmd.PersistentFlags().Lookup("postgres-host"))
	viper.BindPFlag("POSTGRES_PORT", cmd.PersistentFlags().Lookup("postgres-port"))
	viper.BindPFlag("POSTGRES_DATABASE", cmd.PersistentFlags().Lookup("postgres-database"))
	viper.BindPFlag("POSTGRES_USERNAME", cmd.PersistentFlags().Lookup("postgres-username"))
	viper.BindPFlag("POSTGRES_PASSWORD", cmd.PersistentFlags().Lookup("postgres-password"))
	viper.BindPFlag("POSTGRES_SCHEMA", cmd.PersistentFlags().Lookup("postgres-schema"))
	viper.BindPFlag("MAX_BATCH_ROWS", cmd.PersistentFlags().Lookup("max-batch-rows"))
	viper.BindPFlag("MAX_BATCH_SIZE", cmd.PersistentFlags().Lookup("max-batch-size"))
	viper.BindPFlag("LOCK_TIMEOUT", cmd.PersistentFlags().Lookup("lock-timeout"))
	viper.BindPFlag("CONFIG_FILE", cmd.PersistentFlags().Lookup("config"))
}
