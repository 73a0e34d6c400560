// SPDX-License-Identifier: Apache-2.0

// Package config loads the target's configuration from flags, the
// PGSING_-prefixed environment, and an optional config file, via viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultPostgresHost             = "localhost"
	DefaultPostgresPort             = 5432
	DefaultPostgresSchema           = "public"
	DefaultMaxBatchRows             = 200000
	DefaultMaxBatchSize             = 100 * 1024 * 1024
	DefaultBatchDetectionThreshold  = 5000
	DefaultInvalidRecordsDetect     = true
	DefaultInvalidRecordsThreshold  = 0
)

// Config is the target's full configuration surface, matching the
// external interface's documented options.
type Config struct {
	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUsername string
	PostgresPassword string
	PostgresSchema   string

	MaxBatchRows            int
	MaxBatchSize            int64
	BatchDetectionThreshold int

	InvalidRecordsDetect    bool
	InvalidRecordsThreshold int

	LockTimeoutMillis int
}

// Validate rejects a Config missing fields the target cannot run without.
func (c Config) Validate() error {
	if c.PostgresDatabase == "" {
		return fmt.Errorf("config: postgres_database is required")
	}
	return nil
}

// init registers the defaults and environment binding shared by every
// invocation, whether or not a config file or flags are present.
func init() {
	viper.SetEnvPrefix("PGSING")
	viper.AutomaticEnv()

	viper.SetDefault("POSTGRES_HOST", DefaultPostgresHost)
	viper.SetDefault("POSTGRES_PORT", DefaultPostgresPort)
	viper.SetDefault("POSTGRES_SCHEMA", DefaultPostgresSchema)
	viper.SetDefault("MAX_BATCH_ROWS", DefaultMaxBatchRows)
	viper.SetDefault("MAX_BATCH_SIZE", DefaultMaxBatchSize)
	viper.SetDefault("BATCH_DETECTION_THRESHOLD", DefaultBatchDetectionThreshold)
	viper.SetDefault("INVALID_RECORDS_DETECT", DefaultInvalidRecordsDetect)
	viper.SetDefault("INVALID_RECORDS_THRESHOLD", DefaultInvalidRecordsThreshold)
	viper.SetDefault("LOCK_TIMEOUT", 500)
}

// Load reads an optional config file at path (ignored if empty) and
// returns the effective Config, flags and environment taking precedence
// over file values, file values taking precedence over defaults.
func Load(path string) (Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := Config{
		PostgresHost:     viper.GetString("POSTGRES_HOST"),
		PostgresPort:     viper.GetInt("POSTGRES_PORT"),
		PostgresDatabase: viper.GetString("POSTGRES_DATABASE"),
		PostgresUsername: viper.GetString("POSTGRES_USERNAME"),
		PostgresPassword: viper.GetString("POSTGRES_PASSWORD"),
		PostgresSchema:   viper.GetString("POSTGRES_SCHEMA"),

		MaxBatchRows:            viper.GetInt("MAX_BATCH_ROWS"),
		MaxBatchSize:            viper.GetInt64("MAX_BATCH_SIZE"),
		BatchDetectionThreshold: viper.GetInt("BATCH_DETECTION_THRESHOLD"),

		InvalidRecordsDetect:    viper.GetBool("INVALID_RECORDS_DETECT"),
		InvalidRecordsThreshold: viper.GetInt("INVALID_RECORDS_THRESHOLD"),

		LockTimeoutMillis: viper.GetInt("LOCK_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConnString builds the libpq connection string for cfg's Postgres target.
func (c Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.PostgresHost, c.PostgresPort, c.PostgresDatabase, c.PostgresUsername, c.PostgresPassword,
	)
}
