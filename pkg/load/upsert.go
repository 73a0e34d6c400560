// SPDX-License-Identifier: Apache-2.0

package load

import (
	"context"
	"database/sql"

	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/flatten"
	"github.com/pgsing/pgsing/pkg/reconcile"
)

// FlushUpsert reconciles tables against the live catalog, flattens every
// record, and merges each table's rows into its live table, all within a
// single transaction.
func (e *Engine) FlushUpsert(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any) error {
	return e.db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		plan, err := e.reconcileAndApply(ctx, tx, tables)
		if err != nil {
			return err
		}

		results := flatten.Result{}
		for _, record := range records {
			rowsForRecord, err := flatten.Flatten(tables, streamName, record, "")
			if err != nil {
				return err
			}
			results.Append(rowsForRecord)
		}

		for _, lt := range tables {
			resolved := findResolved(plan, lt.Name)
			if err := loadTable(ctx, tx, lt, resolved, results[lt.Name], e.adapter.Qualified(lt.Name)); err != nil {
				return err
			}
		}

		return nil
	})
}

// reconcileAndApply discovers the remote schema, plans a migration against
// it, and executes every operation of the plan against tx.
func (e *Engine) reconcileAndApply(ctx context.Context, tx *sql.Tx, tables []denorm.LogicalTable) (*reconcile.Plan, error) {
	remote, err := e.adapter.DiscoverSchema(ctx, tx)
	if err != nil {
		return nil, err
	}

	plan, err := e.reconciler.Reconcile(ctx, tables, remote)
	if err != nil {
		return nil, err
	}

	for _, op := range plan.Operations {
		if err := op.Execute(ctx, tx); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func findResolved(plan *reconcile.Plan, tableName string) reconcile.ResolvedTable {
	for _, t := range plan.Tables {
		if t.LogicalName == tableName {
			return t
		}
	}
	return reconcile.ResolvedTable{}
}

// loadTable bulk-loads rows for one logical table into a temp table,
// deduplicates by primary key and sequence, and merges the result into
// liveQualified (already schema-qualified).
func loadTable(ctx context.Context, tx *sql.Tx, lt denorm.LogicalTable, resolved reconcile.ResolvedTable, rows []flatten.Row, liveQualified string) error {
	if len(rows) == 0 {
		return nil
	}

	physicalNames := physicalColumnsFor(lt, resolved)
	tmpName := tempTableName(lt.Name)

	if err := createTempTable(ctx, tx, tmpName, lt, physicalNames); err != nil {
		return err
	}
	if err := copyRows(ctx, tx, tmpName, lt, physicalNames, rows); err != nil {
		return err
	}
	pk := physicalPrimaryKey(lt, physicalNames)
	if err := dedupe(ctx, tx, tmpName, pk); err != nil {
		return err
	}
	if err := mergeInto(ctx, tx, tmpName, liveQualified, pk, physicalNames); err != nil {
		return err
	}
	return nil
}

func physicalColumnsFor(lt denorm.LogicalTable, resolved reconcile.ResolvedTable) []string {
	names := make([]string, len(lt.Columns))
	for i, col := range lt.Columns {
		if phys, ok := resolved.Physical(col.OriginalPath, col.SplitOf); ok {
			names[i] = phys
			continue
		}
		names[i] = col.Name
	}
	return names
}

// physicalPrimaryKey maps lt's logical primary-key column names to their
// physical names using the already-resolved physicalNames slice (same
// order as lt.Columns).
func physicalPrimaryKey(lt denorm.LogicalTable, physicalNames []string) []string {
	byLogical := make(map[string]string, len(lt.Columns))
	for i, col := range lt.Columns {
		byLogical[col.Name] = physicalNames[i]
	}
	pk := make([]string, len(lt.PrimaryKey))
	for i, name := range lt.PrimaryKey {
		if phys, ok := byLogical[name]; ok {
			pk[i] = phys
		} else {
			pk[i] = name
		}
	}
	return pk
}
