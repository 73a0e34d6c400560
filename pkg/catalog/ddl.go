// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgsing/pgsing/pkg/csm"
)

// ColumnDef describes one column of a table to be created.
type ColumnDef struct {
	Name     string
	Kind     csm.Kind
	Nullable bool
}

// Operation is one step of a migration plan, transactionally applied by
// the persistence engine via Execute.
type Operation interface {
	Execute(ctx context.Context, conn Execer) error
	String() string
}

func (a *Adapter) qualified(name string) string {
	return pq.QuoteIdentifier(a.Schema) + "." + pq.QuoteIdentifier(name)
}

// Qualified returns name quoted and qualified with the adapter's schema,
// for callers (such as pkg/load) building SQL outside the Operation types.
func (a *Adapter) Qualified(name string) string {
	return a.qualified(name)
}

// CreateTable creates table with the given columns and primary key.
type CreateTable struct {
	adapter    *Adapter
	Table      string
	Columns    []ColumnDef
	PrimaryKey []string
}

func (a *Adapter) CreateTable(table string, columns []ColumnDef, primaryKey []string) *CreateTable {
	return &CreateTable{adapter: a, Table: table, Columns: columns, PrimaryKey: primaryKey}
}

func (op *CreateTable) String() string {
	return fmt.Sprintf("CREATE TABLE %s (%d columns)", op.Table, len(op.Columns))
}

func (op *CreateTable) Execute(ctx context.Context, conn Execer) error {
	var defs []string
	for _, c := range op.Columns {
		sqlType, err := SQLType(c.Kind)
		if err != nil {
			return err
		}
		def := fmt.Sprintf("%s %s", pq.QuoteIdentifier(c.Name), sqlType)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(op.PrimaryKey) > 0 {
		quoted := make([]string, len(op.PrimaryKey))
		for i, pk := range op.PrimaryKey {
			quoted[i] = pq.QuoteIdentifier(pk)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s; CREATE TABLE %s (%s)",
		pq.QuoteIdentifier(op.adapter.Schema), op.adapter.qualified(op.Table), strings.Join(defs, ", "))

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// AddColumn adds a single nullable (or, at create-time-only, non-nullable)
// column to an existing table.
type AddColumn struct {
	adapter  *Adapter
	Table    string
	Column   ColumnDef
}

func (a *Adapter) AddColumn(table string, column ColumnDef) *AddColumn {
	return &AddColumn{adapter: a, Table: table, Column: column}
}

func (op *AddColumn) String() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", op.Table, op.Column.Name)
}

func (op *AddColumn) Execute(ctx context.Context, conn Execer) error {
	sqlType, err := SQLType(op.Column.Kind)
	if err != nil {
		return err
	}
	nullClause := ""
	if !op.Column.Nullable {
		nullClause = " NOT NULL"
	}
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s%s",
		op.adapter.qualified(op.Table), pq.QuoteIdentifier(op.Column.Name), sqlType, nullClause)
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// DropNotNull widens a column's nullability. Nullability only ever widens.
type DropNotNull struct {
	adapter *Adapter
	Table   string
	Column  string
}

func (a *Adapter) DropNotNull(table, column string) *DropNotNull {
	return &DropNotNull{adapter: a, Table: table, Column: column}
}

func (op *DropNotNull) String() string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", op.Table, op.Column)
}

func (op *DropNotNull) Execute(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL",
		op.adapter.qualified(op.Table), pq.QuoteIdentifier(op.Column))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// RenameColumn renames an existing column, used to retire a type-split
// column's bare name to <name>__<suffix>.
type RenameColumn struct {
	adapter *Adapter
	Table   string
	From    string
	To      string
}

func (a *Adapter) RenameColumn(table, from, to string) *RenameColumn {
	return &RenameColumn{adapter: a, Table: table, From: from, To: to}
}

func (op *RenameColumn) String() string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", op.Table, op.From, op.To)
}

func (op *RenameColumn) Execute(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		op.adapter.qualified(op.Table), pq.QuoteIdentifier(op.From), pq.QuoteIdentifier(op.To))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// DropTable drops table, used to clean up a retired loading table after a
// full-table-replacement swap.
type DropTable struct {
	adapter *Adapter
	Table   string
}

func (a *Adapter) DropTable(table string) *DropTable {
	return &DropTable{adapter: a, Table: table}
}

func (op *DropTable) String() string {
	return fmt.Sprintf("DROP TABLE %s", op.Table)
}

func (op *DropTable) Execute(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", op.adapter.qualified(op.Table))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// Truncate empties table, used before a full reload of a temp/loading
// table from a new batch.
type Truncate struct {
	adapter *Adapter
	Table   string
}

func (a *Adapter) Truncate(table string) *Truncate {
	return &Truncate{adapter: a, Table: table}
}

func (op *Truncate) String() string {
	return fmt.Sprintf("TRUNCATE %s", op.Table)
}

func (op *Truncate) Execute(ctx context.Context, conn Execer) error {
	query := fmt.Sprintf("TRUNCATE %s", op.adapter.qualified(op.Table))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return BackendError{Op: op.String(), Err: err}
	}
	return nil
}

// SwapTable atomically renames loading to live (dropping whatever
// previously held the live name), the terminal step of full-table
// replacement.
type SwapTable struct {
	adapter    *Adapter
	Loading    string
	Live       string
}

func (a *Adapter) SwapTable(loading, live string) *SwapTable {
	return &SwapTable{adapter: a, Loading: loading, Live: live}
}

func (op *SwapTable) String() string {
	return fmt.Sprintf("swap %s -> %s", op.Loading, op.Live)
}

func (op *SwapTable) Execute(ctx context.Context, conn Execer) error {
	retiredName := op.Live + "__retired"
	stmts := []string{
		fmt.Sprintf("ALTER TABLE IF EXISTS %s RENAME TO %s", op.adapter.qualified(op.Live), pq.QuoteIdentifier(retiredName)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", op.adapter.qualified(op.Loading), pq.QuoteIdentifier(op.Live)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", op.adapter.qualified(retiredName)),
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return BackendError{Op: op.String(), Err: err}
		}
	}
	return nil
}
