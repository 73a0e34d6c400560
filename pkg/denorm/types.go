// SPDX-License-Identifier: Apache-2.0

// Package denorm implements the denormalizer: it walks a canonical object
// schema and produces the set of logical relational tables (one root plus
// one sub-table per nested array path) that represent it.
package denorm

import "github.com/pgsing/pgsing/pkg/csm"

// Column is one physical column of a LogicalTable.
type Column struct {
	Name     string
	Type     csm.Type
	Nullable bool
	IsPK     bool

	// OriginalPath is the dotted source JSON path this column was derived
	// from, preserved for catalog metadata so the __N collision scheme
	// stays stable across runs.
	OriginalPath string

	// SplitOf is non-empty when this column is one branch of a
	// type-split AnyOf column; it names the bare (un-suffixed) column.
	SplitOf string
}

// LogicalTable is one denormalized relational table: the root table for a
// stream, or a sub-table rooted at a nested array path.
type LogicalTable struct {
	// Path is the dotted source path of this table: the stream name for
	// the root table, or the stream name plus the original
	// (pre-sanitization) name of every field leading down to the array,
	// inlined object fields included.
	Path []string

	// Name is the sanitized, collision-resolved table name.
	Name string

	Columns    []Column
	PrimaryKey []string

	// ParentPath is nil for the root table, and the immediate parent
	// table's Path otherwise.
	ParentPath []string

	// Level is the 0-based array nesting depth: 0 for the root table and
	// for a sub-table whose array has no enclosing array, increasing by
	// one per enclosing array. It matches the highest _sdc_level_<N>_id
	// column of a sub-table.
	Level int
}

// Column looks up a column by name.
func (t LogicalTable) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
