// SPDX-License-Identifier: Apache-2.0

package reconcile

import "github.com/pgsing/pgsing/pkg/catalog"

// ResolvedColumn maps one desired denorm.Column (identified by its
// OriginalPath, and SplitOf for schema-declared type splits) to the
// physical column name the persistence engine must write its value to,
// after any retroactive type-split renaming.
type ResolvedColumn struct {
	OriginalPath string
	SplitOf      string
	PhysicalName string
}

// ResolvedTable is one logical table's reconciliation result: the physical
// column mapping to use when flattening/loading, plus whether the table
// was freshly created this call.
type ResolvedTable struct {
	LogicalName string
	Columns     []ResolvedColumn
	Created     bool
}

// Plan is the output of Reconcile: an ordered list of DDL operations to
// execute transactionally, plus the per-table column resolution to apply
// when loading data.
type Plan struct {
	Operations []catalog.Operation
	Tables     []ResolvedTable
}

func (p *Plan) addOp(op catalog.Operation) {
	p.Operations = append(p.Operations, op)
}

func (p *Plan) table(name string) *ResolvedTable {
	for i := range p.Tables {
		if p.Tables[i].LogicalName == name {
			return &p.Tables[i]
		}
	}
	p.Tables = append(p.Tables, ResolvedTable{LogicalName: name})
	return &p.Tables[len(p.Tables)-1]
}

// Physical looks up the physical column name for a desired column by its
// OriginalPath and (for schema-declared splits) SplitOf.
func (t ResolvedTable) Physical(originalPath, splitOf string) (string, bool) {
	for _, c := range t.Columns {
		if c.OriginalPath == originalPath && c.SplitOf == splitOf {
			return c.PhysicalName, true
		}
	}
	return "", false
}
