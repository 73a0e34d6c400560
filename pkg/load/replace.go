// SPDX-License-Identifier: Apache-2.0

package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/flatten"
)

func loadingName(tableName string, version int64) string {
	return fmt.Sprintf("%s__v%d", tableName, version)
}

// withLoadingNames returns a copy of tables whose Name is suffixed with
// the replacement version, used both to reconcile/load against the
// version-specific loading table and to key flatten.Result the same way.
func withLoadingNames(tables []denorm.LogicalTable, version int64) []denorm.LogicalTable {
	out := make([]denorm.LogicalTable, len(tables))
	for i, lt := range tables {
		lt.Name = loadingName(lt.Name, version)
		out[i] = lt
	}
	return out
}

// FlushFullTableReplacement reconciles and loads one batch of records into
// the version-suffixed loading table (creating it if this is the first
// batch of that version), applying the same dedup rules as upsert mode.
func (e *Engine) FlushFullTableReplacement(ctx context.Context, streamName string, tables []denorm.LogicalTable, records []map[string]any, version int64) error {
	loadingTables := withLoadingNames(tables, version)

	return e.db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		plan, err := e.reconcileAndApply(ctx, tx, loadingTables)
		if err != nil {
			return err
		}

		results := flatten.Result{}
		for _, record := range records {
			rowsForRecord, err := flatten.Flatten(loadingTables, streamName, record, "")
			if err != nil {
				return err
			}
			results.Append(rowsForRecord)
		}

		for _, lt := range loadingTables {
			resolved := findResolved(plan, lt.Name)
			if err := loadTable(ctx, tx, lt, resolved, results[lt.Name], e.adapter.Qualified(lt.Name)); err != nil {
				return err
			}
		}

		return nil
	})
}

// ActivateVersion atomically swaps every loading table for streamName's
// version into its live name and retires the previous live table. A
// version not strictly greater than the stream's already-recorded version
// is refused as a no-op (StaleVersionError), per spec.md §4.7 rule 4.
func (e *Engine) ActivateVersion(ctx context.Context, streamName string, tables []denorm.LogicalTable, version int64) error {
	current, err := e.adapter.StreamVersion(ctx, e.asExecer(), streamName)
	if err != nil {
		return err
	}
	if current != nil && version <= *current {
		return StaleVersionError{Stream: streamName, Got: version, Current: *current}
	}

	return e.db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, lt := range tables {
			swap := e.adapterSwapOp(lt.Name, version)
			if err := swap.Execute(ctx, tx); err != nil {
				return err
			}
		}
		return e.adapter.SetStreamVersion(ctx, tx, streamName, version)
	})
}
