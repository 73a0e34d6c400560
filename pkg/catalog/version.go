// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

const streamVersionTable = "_sdc_stream_version"

// EnsureStreamVersionTable creates the bookkeeping table that tracks each
// stream's highest-accepted full-table-replacement version, so a stale
// ACTIVATE_VERSION can be recognized and refused as a no-op.
func (a *Adapter) EnsureStreamVersionTable(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
	stream_name name PRIMARY KEY,
	version     bigint NOT NULL
);`, pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(streamVersionTable))

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: "ensure stream version table", Err: err}
	}
	return nil
}

// StreamVersion returns the highest version previously activated for
// stream, or nil if none has been recorded yet.
func (a *Adapter) StreamVersion(ctx context.Context, conn Queryer, stream string) (*int64, error) {
	query := fmt.Sprintf(`SELECT version FROM %s.%s WHERE stream_name = $1`,
		pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(streamVersionTable))

	rows, err := conn.QueryContext(ctx, query, stream)
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var v int64
	if err := rows.Scan(&v); err != nil {
		return nil, BackendError{Op: "scan stream version", Err: err}
	}
	return &v, rows.Err()
}

// SetStreamVersion records version as stream's new highest activated
// version.
func (a *Adapter) SetStreamVersion(ctx context.Context, conn Execer, stream string, version int64) error {
	query := fmt.Sprintf(`
INSERT INTO %s.%s (stream_name, version) VALUES ($1, $2)
ON CONFLICT (stream_name) DO UPDATE SET version = EXCLUDED.version`,
		pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(streamVersionTable))

	if _, err := conn.ExecContext(ctx, query, stream, version); err != nil {
		return BackendError{Op: "set stream version", Err: err}
	}
	return nil
}
