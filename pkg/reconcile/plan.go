// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"

	"github.com/pgsing/pgsing/pkg/catalog"
	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/denorm"
)

// Reconciler unifies denormalized logical tables with a remote catalog
// snapshot.
type Reconciler struct {
	adapter *catalog.Adapter
}

// New returns a Reconciler bound to adapter, used to build metadata-record
// operations as it plans.
func New(adapter *catalog.Adapter) *Reconciler {
	return &Reconciler{adapter: adapter}
}

// Reconcile produces a migration Plan for desired against remote (the
// adapter's current discovery of the backend schema). remote tables absent
// from the map are treated as not yet existing.
func (r *Reconciler) Reconcile(ctx context.Context, desired []denorm.LogicalTable, remote map[string]catalog.RemoteTable) (*Plan, error) {
	plan := &Plan{}

	for _, lt := range desired {
		if err := r.reconcileTable(lt, remote, plan); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func (r *Reconciler) reconcileTable(lt denorm.LogicalTable, remote map[string]catalog.RemoteTable, plan *Plan) error {
	resolved := plan.table(lt.Name)

	remoteTable, exists := remote[lt.Name]
	if !exists {
		return r.createTable(lt, resolved, plan)
	}

	if err := checkKeyProperties(lt, remoteTable); err != nil {
		return err
	}

	for _, col := range lt.Columns {
		if err := r.reconcileColumn(lt.Name, col, remoteTable, resolved, plan); err != nil {
			return err
		}
	}

	return nil
}

// createTable handles rule 1: the table does not exist remotely, so it is
// created with every desired column at its declared nullability.
func (r *Reconciler) createTable(lt denorm.LogicalTable, resolved *ResolvedTable, plan *Plan) error {
	resolved.Created = true

	var cols []catalog.ColumnDef
	for _, col := range lt.Columns {
		cols = append(cols, catalog.ColumnDef{Name: col.Name, Kind: col.Type.Kind, Nullable: col.Nullable})
		resolved.Columns = append(resolved.Columns, ResolvedColumn{
			OriginalPath: col.OriginalPath,
			SplitOf:      col.SplitOf,
			PhysicalName: col.Name,
		})
	}

	plan.addOp(r.adapter.CreateTable(lt.Name, cols, lt.PrimaryKey))
	for _, col := range lt.Columns {
		plan.addOp(metadataOp{adapter: r.adapter, table: lt.Name, column: col.Name, originalPath: col.OriginalPath, kind: col.Type.Kind, splitOf: col.SplitOf})
	}
	return nil
}

// checkKeyProperties enforces rules 7 and 8 for the table's primary key.
func checkKeyProperties(lt denorm.LogicalTable, remoteTable catalog.RemoteTable) error {
	if len(remoteTable.PrimaryKey) == 0 || len(lt.PrimaryKey) == 0 {
		return nil
	}

	remotePKByPath := make(map[string]catalog.RemoteColumn)
	for _, pkName := range remoteTable.PrimaryKey {
		if c, ok := remoteTable.Column(pkName); ok {
			remotePKByPath[c.OriginalPath] = c
		}
	}

	desiredPaths := make(map[string]bool)
	for _, col := range lt.Columns {
		if !col.IsPK {
			continue
		}
		desiredPaths[col.OriginalPath] = true

		remoteCol, ok := remotePKByPath[col.OriginalPath]
		if !ok {
			return KeyPropertiesChangedError{Table: lt.Name}
		}
		if remoteCol.Kind != col.Type.Kind {
			return KeyPropertiesTypeChangeError{Table: lt.Name, Column: col.Name}
		}
	}

	if len(desiredPaths) != len(remotePKByPath) {
		return KeyPropertiesChangedError{Table: lt.Name}
	}

	return nil
}

// reconcileColumn applies rules 2 through 6 for one desired column of an
// already-existing table.
func (r *Reconciler) reconcileColumn(tableName string, col denorm.Column, remoteTable catalog.RemoteTable, resolved *ResolvedTable, plan *Plan) error {
	existing := columnsForPath(remoteTable, col.OriginalPath)

	if len(existing) == 0 {
		// Rule 2: column absent remotely.
		nullable := true
		if col.IsPK {
			nullable = false
		}
		plan.addOp(r.adapter.AddColumn(tableName, catalog.ColumnDef{Name: col.Name, Kind: col.Type.Kind, Nullable: nullable}))
		plan.addOp(metadataOp{adapter: r.adapter, table: tableName, column: col.Name, originalPath: col.OriginalPath, kind: col.Type.Kind, splitOf: col.SplitOf})
		resolved.Columns = append(resolved.Columns, ResolvedColumn{OriginalPath: col.OriginalPath, SplitOf: col.SplitOf, PhysicalName: col.Name})
		return nil
	}

	for _, rc := range existing {
		if rc.Kind == col.Type.Kind {
			// Rules 3, 4, 5.
			if !rc.Nullable && col.Nullable {
				plan.addOp(r.adapter.DropNotNull(tableName, rc.Name))
			}
			resolved.Columns = append(resolved.Columns, ResolvedColumn{OriginalPath: col.OriginalPath, SplitOf: col.SplitOf, PhysicalName: rc.Name})
			return nil
		}
	}

	// Rule 6: type change on a non-PK column. Any prior conflict may
	// already have split this path into suffixed columns; the bare
	// (unsplit) remote column, if still present, is retired now. Once
	// every remote column for this path is already split, none has
	// SplitOf == "", so fall back to the split columns' own SplitOf
	// (the true original base name) rather than a suffixed Name.
	baseName := existing[0].SplitOf
	if baseName == "" {
		baseName = existing[0].Name
	}
	for _, rc := range existing {
		if rc.SplitOf == "" {
			baseName = rc.Name
			break
		}
	}

	for _, rc := range existing {
		if rc.SplitOf == "" {
			retiredName := rc.Name + "__" + rc.Kind.Suffix()
			plan.addOp(r.adapter.RenameColumn(tableName, rc.Name, retiredName))
			plan.addOp(metadataOp{adapter: r.adapter, table: tableName, column: retiredName, originalPath: col.OriginalPath, kind: rc.Kind, splitOf: baseName})
			break
		}
	}

	newName := baseName + "__" + col.Type.Kind.Suffix()
	plan.addOp(r.adapter.AddColumn(tableName, catalog.ColumnDef{Name: newName, Kind: col.Type.Kind, Nullable: true}))
	plan.addOp(metadataOp{adapter: r.adapter, table: tableName, column: newName, originalPath: col.OriginalPath, kind: col.Type.Kind, splitOf: baseName})
	resolved.Columns = append(resolved.Columns, ResolvedColumn{OriginalPath: col.OriginalPath, SplitOf: col.SplitOf, PhysicalName: newName})

	return nil
}

func columnsForPath(remoteTable catalog.RemoteTable, originalPath string) []catalog.RemoteColumn {
	var out []catalog.RemoteColumn
	for _, c := range remoteTable.Columns {
		if c.OriginalPath == originalPath {
			out = append(out, c)
		}
	}
	return out
}

// metadataOp wraps Adapter.RecordMetadata as a catalog.Operation so it is
// applied inside the same migration transaction as the DDL it describes.
type metadataOp struct {
	adapter      *catalog.Adapter
	table        string
	column       string
	originalPath string
	kind         csm.Kind
	splitOf      string
}

func (m metadataOp) String() string {
	return "record column metadata for " + m.table + "." + m.column
}

func (m metadataOp) Execute(ctx context.Context, conn catalog.Execer) error {
	return m.adapter.RecordMetadata(ctx, conn, m.table, m.column, m.originalPath, m.kind, m.splitOf)
}
