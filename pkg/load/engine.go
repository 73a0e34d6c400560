// SPDX-License-Identifier: Apache-2.0

package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgsing/pgsing/pkg/catalog"
	"github.com/pgsing/pgsing/pkg/db"
	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/flatten"
	"github.com/pgsing/pgsing/pkg/reconcile"
)

// ReservedNullDefault is the on-the-wire placeholder for SQL NULL in text
// fields; any text value that arrives equal to this literal would
// otherwise be indistinguishable from an intentional NULL marker and is
// rejected with IntegrityError.
const ReservedNullDefault = "RESERVED_NULL_DEFAULT"

// Engine orchestrates reconciliation, flattening, and transactional
// bulk-load-plus-merge for one Postgres schema namespace.
type Engine struct {
	db         db.DB
	adapter    *catalog.Adapter
	reconciler *reconcile.Reconciler
}

// New returns an Engine bound to rdb, operating within schema.
func New(rdb db.DB, schema string) *Engine {
	adapter := catalog.New(schema)
	return &Engine{db: rdb, adapter: adapter, reconciler: reconcile.New(adapter)}
}

// Bootstrap ensures the engine's own bookkeeping tables exist.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if err := e.adapter.CheckServerVersion(ctx, e.asExecer()); err != nil {
		return err
	}
	if err := e.adapter.EnsureMetadataTable(ctx, e.asExecer()); err != nil {
		return err
	}
	return e.adapter.EnsureStreamVersionTable(ctx, e.asExecer())
}

func (e *Engine) asExecer() execerAdapter {
	return execerAdapter{e.db}
}

// execerAdapter narrows db.DB (args ...interface{}) to catalog.Execer
// (args ...any), which are the same type but require an explicit adapter
// to satisfy Go's structural typing across package boundaries cleanly.
type execerAdapter struct {
	db db.DB
}

func (a execerAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

func (a execerAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

func (e *Engine) adapterSwapOp(tableName string, version int64) catalog.Operation {
	return e.adapter.SwapTable(loadingName(tableName, version), tableName)
}

func tempTableName(table string) string {
	return "tmp_" + table
}

// createTempTable creates a session-scoped temp table mirroring cols, plus
// an extra ordinal column used to break sequence ties in favor of the
// last-seen row.
func createTempTable(ctx context.Context, tx *sql.Tx, name string, lt denorm.LogicalTable, physicalNames []string) error {
	var defs []string
	for i, col := range lt.Columns {
		sqlType, err := catalog.SQLType(col.Type.Kind)
		if err != nil {
			return err
		}
		defs = append(defs, fmt.Sprintf("%s %s", pq.QuoteIdentifier(physicalNames[i]), sqlType))
	}
	defs = append(defs, `"_sdc_batch_seq" bigint`)

	query := fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", pq.QuoteIdentifier(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return BackendError{Op: "create temp table " + name, Err: err}
	}
	return nil
}

// copyRows bulk-loads rows into the temp table via pq.CopyIn, rejecting
// any text value equal to ReservedNullDefault.
func copyRows(ctx context.Context, tx *sql.Tx, tempName string, lt denorm.LogicalTable, physicalNames []string, rows []flatten.Row) error {
	columns := append(append([]string{}, physicalNames...), "_sdc_batch_seq")

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(tempName, columns...))
	if err != nil {
		return BackendError{Op: "prepare copy into " + tempName, Err: err}
	}
	defer stmt.Close()

	for seq, row := range rows {
		values := make([]any, len(lt.Columns)+1)
		for i, col := range lt.Columns {
			v := row[col.Name]
			if s, ok := v.(string); ok && s == ReservedNullDefault {
				return IntegrityError{Table: lt.Name, Column: col.Name, Value: s}
			}
			values[i] = v
		}
		values[len(lt.Columns)] = int64(seq)

		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return BackendError{Op: "copy row into " + tempName, Err: err}
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		if pqErr, ok := db.ConstraintViolation(err); ok {
			return IntegrityError{Table: lt.Name, Column: pqErr.Column, Value: pqErr.Message}
		}
		return BackendError{Op: "flush copy into " + tempName, Err: err}
	}
	return nil
}

// dedupe removes every row of the temp table except, per primary-key
// group, the one with the greatest _sdc_sequence (ties broken by the
// highest _sdc_batch_seq, i.e. the last one copied in).
func dedupe(ctx context.Context, tx *sql.Tx, tempName string, primaryKey []string) error {
	if len(primaryKey) == 0 {
		return nil
	}
	quoted := make([]string, len(primaryKey))
	for i, pk := range primaryKey {
		quoted[i] = pq.QuoteIdentifier(pk)
	}
	pkList := strings.Join(quoted, ", ")

	query := fmt.Sprintf(`
DELETE FROM %[1]s WHERE ctid NOT IN (
	SELECT DISTINCT ON (%[2]s) ctid FROM %[1]s
	ORDER BY %[2]s, %[3]s DESC, "_sdc_batch_seq" DESC
)`, pq.QuoteIdentifier(tempName), pkList, pq.QuoteIdentifier("_sdc_sequence"))

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return BackendError{Op: "dedupe " + tempName, Err: err}
	}
	return nil
}

// mergeInto performs delete-then-insert of the deduplicated temp rows into
// target, keyed by primaryKey.
func mergeInto(ctx context.Context, tx *sql.Tx, tempName, target string, primaryKey []string, physicalNames []string) error {
	quotedNames := make([]string, len(physicalNames))
	for i, n := range physicalNames {
		quotedNames[i] = pq.QuoteIdentifier(n)
	}
	colList := strings.Join(quotedNames, ", ")

	if len(primaryKey) > 0 {
		quotedPK := make([]string, len(primaryKey))
		for i, pk := range primaryKey {
			quotedPK[i] = pq.QuoteIdentifier(pk)
		}
		pkList := strings.Join(quotedPK, ", ")

		deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE (%s) IN (SELECT %s FROM %s)`,
			target, pkList, pkList, pq.QuoteIdentifier(tempName))
		if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
			return BackendError{Op: "delete stale rows from " + target, Err: err}
		}
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s`,
		target, colList, colList, pq.QuoteIdentifier(tempName))
	if _, err := tx.ExecContext(ctx, insertQuery); err != nil {
		if pqErr, ok := db.ConstraintViolation(err); ok {
			return IntegrityError{Table: target, Column: pqErr.Column, Value: pqErr.Message}
		}
		return BackendError{Op: "insert rows into " + target, Err: err}
	}
	return nil
}
