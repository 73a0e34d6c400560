// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgsing/pgsing/pkg/csm"
)

// Execer is satisfied by *sql.DB, *sql.Tx, and pkg/db.RDB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB, *sql.Tx, and pkg/db.RDB.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is the minimal surface the adapter needs; both *sql.DB/RDB (for
// read-only discovery) and a *sql.Tx (for DDL issued inside the
// persistence engine's single flush transaction) satisfy it.
type Conn interface {
	Execer
	Queryer
}

const metadataTable = "_sdc_column_metadata"

// Adapter discovers tables in a single Postgres schema namespace and
// executes DDL against it.
type Adapter struct {
	Schema string
}

// New returns an Adapter scoped to schema.
func New(schema string) *Adapter {
	return &Adapter{Schema: schema}
}

// EnsureMetadataTable creates the catalog's own bookkeeping table if it is
// absent: the per-column (original JSON path, type fingerprint, split-of)
// memory the reconciler relies on across runs, per §9's "Identifier
// collision catalog" note.
func (a *Adapter) EnsureMetadataTable(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.%[2]s (
	table_name     name NOT NULL,
	column_name    name NOT NULL,
	original_path  text NOT NULL,
	fingerprint    text NOT NULL,
	split_of       text NOT NULL DEFAULT '',
	PRIMARY KEY (table_name, column_name)
);`, pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(metadataTable))

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: "ensure metadata table", Err: err}
	}
	return nil
}

// DiscoverSchema returns every table currently present in a.Schema,
// keyed by table name, enriched with the original-path/fingerprint
// metadata recorded by earlier reconciliations.
func (a *Adapter) DiscoverSchema(ctx context.Context, conn Queryer) (map[string]RemoteTable, error) {
	tables, err := a.discoverTables(ctx, conn)
	if err != nil {
		return nil, err
	}

	meta, err := a.discoverMetadata(ctx, conn)
	if err != nil {
		return nil, err
	}

	pks, err := a.discoverPrimaryKeys(ctx, conn)
	if err != nil {
		return nil, err
	}

	for name, t := range tables {
		for i, c := range t.Columns {
			if m, ok := meta[name][c.Name]; ok {
				c.OriginalPath = m.originalPath
				c.SplitOf = m.splitOf
				if k, err := KindFromFingerprint(m.fingerprint); err == nil {
					c.Kind = k
				}
			}
			t.Columns[i] = c
		}
		t.PrimaryKey = pks[name]
		for i, c := range t.Columns {
			for _, pk := range t.PrimaryKey {
				if c.Name == pk {
					t.Columns[i].IsPK = true
				}
			}
		}
		tables[name] = t
	}

	return tables, nil
}

func (a *Adapter) discoverTables(ctx context.Context, conn Queryer) (map[string]RemoteTable, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT c.relname, a.attname, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p')
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY c.relname, a.attnum`, a.Schema)
	if err != nil {
		return nil, BackendError{Op: "discover tables", Err: err}
	}
	defer rows.Close()

	tables := make(map[string]RemoteTable)
	for rows.Next() {
		var tableName, colName, sqlType string
		var nullable bool
		if err := rows.Scan(&tableName, &colName, &sqlType, &nullable); err != nil {
			return nil, BackendError{Op: "scan table columns", Err: err}
		}
		t := tables[tableName]
		t.Name = tableName
		t.Columns = append(t.Columns, RemoteColumn{Name: colName, SQLType: sqlType, Nullable: nullable})
		tables[tableName] = t
	}
	if err := rows.Err(); err != nil {
		return nil, BackendError{Op: "iterate table columns", Err: err}
	}
	return tables, nil
}

func (a *Adapter) discoverPrimaryKeys(ctx context.Context, conn Queryer) (map[string][]string, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT c.relname, a.attname
FROM pg_catalog.pg_index i
JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
WHERE n.nspname = $1 AND i.indisprimary
ORDER BY c.relname, array_position(i.indkey, a.attnum)`, a.Schema)
	if err != nil {
		return nil, BackendError{Op: "discover primary keys", Err: err}
	}
	defer rows.Close()

	pks := make(map[string][]string)
	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return nil, BackendError{Op: "scan primary keys", Err: err}
		}
		pks[tableName] = append(pks[tableName], colName)
	}
	return pks, rows.Err()
}

type columnMeta struct {
	originalPath string
	fingerprint  string
	splitOf      string
}

func (a *Adapter) discoverMetadata(ctx context.Context, conn Queryer) (map[string]map[string]columnMeta, error) {
	query := fmt.Sprintf(`SELECT table_name, column_name, original_path, fingerprint, split_of FROM %s.%s`,
		pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(metadataTable))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		// The metadata table may not exist yet on a brand new schema.
		return map[string]map[string]columnMeta{}, nil
	}
	defer rows.Close()

	out := make(map[string]map[string]columnMeta)
	for rows.Next() {
		var tableName, colName, originalPath, fingerprint, splitOf string
		if err := rows.Scan(&tableName, &colName, &originalPath, &fingerprint, &splitOf); err != nil {
			return nil, BackendError{Op: "scan column metadata", Err: err}
		}
		if out[tableName] == nil {
			out[tableName] = make(map[string]columnMeta)
		}
		out[tableName][colName] = columnMeta{originalPath: originalPath, fingerprint: fingerprint, splitOf: splitOf}
	}
	return out, rows.Err()
}

// RecordMetadata persists the original-path/fingerprint/split-of triple for
// one physical column, so future runs can recover it without re-deriving a
// CSM type from the SQL type alone.
func (a *Adapter) RecordMetadata(ctx context.Context, conn Execer, table, column, originalPath string, kind csm.Kind, splitOf string) error {
	query := fmt.Sprintf(`
INSERT INTO %s.%s (table_name, column_name, original_path, fingerprint, split_of)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (table_name, column_name) DO UPDATE SET
	original_path = EXCLUDED.original_path,
	fingerprint = EXCLUDED.fingerprint,
	split_of = EXCLUDED.split_of`,
		pq.QuoteIdentifier(a.Schema), pq.QuoteIdentifier(metadataTable))

	if _, err := conn.ExecContext(ctx, query, table, column, originalPath, Fingerprint(kind), splitOf); err != nil {
		return BackendError{Op: "record column metadata", Err: err}
	}
	return nil
}
