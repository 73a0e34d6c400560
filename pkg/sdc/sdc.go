// SPDX-License-Identifier: Apache-2.0

// Package sdc holds the names of the system-injected metadata columns
// shared by the denormalizer, flattener, stream processor, and
// persistence engine. Names beginning with this prefix are reserved and
// must never collide with a sanitized user field.
package sdc

import "fmt"

const (
	Prefix = "_sdc_"

	BatchedAt    = "_sdc_batched_at"
	ReceivedAt   = "_sdc_received_at"
	Sequence     = "_sdc_sequence"
	TableVersion = "_sdc_table_version"
	PrimaryKey   = "_sdc_primary_key"

	SourceKeyPrefix = "_sdc_source_key_"
)

// LevelColumn returns the ordinal column name for the Nth (0-based)
// ancestor array level.
func LevelColumn(n int) string {
	return fmt.Sprintf("_sdc_level_%d_id", n)
}
