// SPDX-License-Identifier: Apache-2.0

package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/pkg/catalog"
	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/reconcile"
)

func simpleTable(name string, cols ...denorm.Column) denorm.LogicalTable {
	var pk []string
	for _, c := range cols {
		if c.IsPK {
			pk = append(pk, c.Name)
		}
	}
	return denorm.LogicalTable{Path: []string{name}, Name: name, Columns: cols, PrimaryKey: pk}
}

func TestReconcile_CreatesAbsentTable(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindInteger}, IsPK: true, OriginalPath: "id"},
		denorm.Column{Name: "name", Type: csm.Type{Kind: csm.KindString}, OriginalPath: "name"},
	)

	plan, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, map[string]catalog.RemoteTable{})
	require.NoError(t, err)
	require.True(t, plan.Tables[0].Created)
	require.Len(t, plan.Operations, 3) // CreateTable + 2 metadata records
}

func TestReconcile_AddsNullableColumnToExistingTable(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindInteger}, IsPK: true, OriginalPath: "id"},
		denorm.Column{Name: "paw_toe_count", Type: csm.Type{Kind: csm.KindInteger}, Nullable: false, OriginalPath: "paw_toe_count"},
	)

	remote := map[string]catalog.RemoteTable{
		"cats": {
			Name: "cats",
			Columns: []catalog.RemoteColumn{
				{Name: "id", Kind: csm.KindInteger, OriginalPath: "id", IsPK: true},
			},
			PrimaryKey: []string{"id"},
		},
	}

	plan, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, remote)
	require.NoError(t, err)
	require.False(t, plan.Tables[0].Created)

	require.Len(t, plan.Operations, 2)
	addOp, ok := plan.Operations[0].(*catalog.AddColumn)
	require.True(t, ok)
	require.True(t, addOp.Column.Nullable)
}

func TestReconcile_TypeChangeSplitsColumn(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindInteger}, IsPK: true, OriginalPath: "id"},
		denorm.Column{Name: "name", Type: csm.Type{Kind: csm.KindBoolean}, OriginalPath: "name"},
	)

	remote := map[string]catalog.RemoteTable{
		"cats": {
			Name: "cats",
			Columns: []catalog.RemoteColumn{
				{Name: "id", Kind: csm.KindInteger, OriginalPath: "id", IsPK: true},
				{Name: "name", Kind: csm.KindString, OriginalPath: "name"},
			},
			PrimaryKey: []string{"id"},
		},
	}

	plan, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, remote)
	require.NoError(t, err)

	physical, ok := plan.Tables[0].Physical("name", "")
	require.True(t, ok)
	require.Equal(t, "name__b", physical)

	var renamed bool
	var added bool
	for _, op := range plan.Operations {
		if r, ok := op.(*catalog.RenameColumn); ok {
			require.Equal(t, "name", r.From)
			require.Equal(t, "name__s", r.To)
			renamed = true
		}
		if a, ok := op.(*catalog.AddColumn); ok && a.Column.Name == "name__b" {
			added = true
		}
	}
	require.True(t, renamed)
	require.True(t, added)
}

func TestReconcile_SecondTypeChangeReusesOriginalBaseName(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	// "name" has already been split once (string -> bool), leaving only
	// "name__s" and "name__b" remotely, both with SplitOf == "name". A
	// third kind (integer) arriving now must split off "name__i", not
	// "name__b__i".
	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindInteger}, IsPK: true, OriginalPath: "id"},
		denorm.Column{Name: "name", Type: csm.Type{Kind: csm.KindInteger}, OriginalPath: "name"},
	)

	remote := map[string]catalog.RemoteTable{
		"cats": {
			Name: "cats",
			Columns: []catalog.RemoteColumn{
				{Name: "id", Kind: csm.KindInteger, OriginalPath: "id", IsPK: true},
				{Name: "name__s", Kind: csm.KindString, OriginalPath: "name", SplitOf: "name"},
				{Name: "name__b", Kind: csm.KindBoolean, OriginalPath: "name", SplitOf: "name"},
			},
			PrimaryKey: []string{"id"},
		},
	}

	plan, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, remote)
	require.NoError(t, err)

	physical, ok := plan.Tables[0].Physical("name", "")
	require.True(t, ok)
	require.Equal(t, "name__i", physical)

	var added bool
	for _, op := range plan.Operations {
		if a, ok := op.(*catalog.AddColumn); ok {
			require.Equal(t, "name__i", a.Column.Name)
			added = true
		}
		require.NotIsType(t, &catalog.RenameColumn{}, op) // already-split columns aren't renamed again
	}
	require.True(t, added)
}

func TestReconcile_PKTypeChangeFails(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindString}, IsPK: true, OriginalPath: "id"},
	)

	remote := map[string]catalog.RemoteTable{
		"cats": {
			Name:       "cats",
			Columns:    []catalog.RemoteColumn{{Name: "id", Kind: csm.KindInteger, OriginalPath: "id", IsPK: true}},
			PrimaryKey: []string{"id"},
		},
	}

	_, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, remote)
	require.Error(t, err)
	require.IsType(t, reconcile.KeyPropertiesTypeChangeError{}, err)
}

func TestReconcile_PKNullabilityOnlyWidenSucceeds(t *testing.T) {
	t.Parallel()

	adapter := catalog.New("public")
	r := reconcile.New(adapter)

	// The schema now declares id as [null, integer]; as a key column it
	// stays non-nullable, so only the type's own nullability widened.
	lt := simpleTable("cats",
		denorm.Column{Name: "id", Type: csm.Type{Kind: csm.KindInteger, Nullable: true}, IsPK: true, OriginalPath: "id"},
	)

	remote := map[string]catalog.RemoteTable{
		"cats": {
			Name:       "cats",
			Columns:    []catalog.RemoteColumn{{Name: "id", Kind: csm.KindInteger, OriginalPath: "id", IsPK: true}},
			PrimaryKey: []string{"id"},
		},
	}

	plan, err := r.Reconcile(t.Context(), []denorm.LogicalTable{lt}, remote)
	require.NoError(t, err)
	require.Empty(t, plan.Operations)
}
