// SPDX-License-Identifier: Apache-2.0

package denorm

import (
	"strings"

	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/sdc"
)

// ancestor carries the state threaded down the walk for sub-table
// generation: the root table's primary-key columns (propagated unchanged
// into every descendant sub-table as _sdc_source_key_ columns, so any
// depth can be joined directly back to the root) and the ordinal column
// names accumulated one per array nesting level.
type ancestor struct {
	rootPKColumns []Column
	levelColumns  []string
}

// Denormalize walks root (an Object CSM) depth-first and returns the
// logical table set: the root table plus one sub-table per nested array
// path. keyProperties names the root table's declared primary key; an
// empty list means the stream is keyless and a synthesized
// _sdc_primary_key UUID column becomes the primary key instead.
func Denormalize(streamName string, root csm.Type, keyProperties []string) ([]LogicalTable, error) {
	rootName, err := sanitizeIdentifier(streamName)
	if err != nil {
		return nil, err
	}

	tableResolver := newConflictResolver()
	tableResolver.resolve(streamName, rootName)

	rootTable := LogicalTable{
		Path: []string{streamName},
		Name: rootName,
	}

	colResolver := newConflictResolver()

	usesUUIDPK := len(keyProperties) == 0
	keySet := make(map[string]bool, len(keyProperties))
	for _, k := range keyProperties {
		keySet[k] = true
	}

	var metaFirst []Column
	metaFirst = append(metaFirst,
		Column{Name: sdc.BatchedAt, Type: csm.Type{Kind: csm.KindDateTimeString}, OriginalPath: sdc.BatchedAt},
		Column{Name: sdc.ReceivedAt, Type: csm.Type{Kind: csm.KindDateTimeString}, Nullable: true, OriginalPath: sdc.ReceivedAt},
		Column{Name: sdc.Sequence, Type: csm.Type{Kind: csm.KindInteger}, OriginalPath: sdc.Sequence},
		Column{Name: sdc.TableVersion, Type: csm.Type{Kind: csm.KindInteger}, Nullable: true, OriginalPath: sdc.TableVersion},
	)
	rootTable.Columns = append(rootTable.Columns, metaFirst...)

	if usesUUIDPK {
		rootTable.Columns = append(rootTable.Columns, Column{
			Name:         sdc.PrimaryKey,
			Type:         csm.Type{Kind: csm.KindString},
			IsPK:         true,
			OriginalPath: sdc.PrimaryKey,
		})
		rootTable.PrimaryKey = []string{sdc.PrimaryKey}
	}

	var tables []LogicalTable

	ctx := &walkCtx{
		tableResolver: tableResolver,
		tables:        &tables,
	}

	if err := ctx.inlineFields(&rootTable, colResolver, []string{streamName}, "", root.Fields, keySet); err != nil {
		return nil, err
	}

	if !usesUUIDPK {
		var pk []string
		for _, name := range keyProperties {
			for i, c := range rootTable.Columns {
				if c.OriginalPath == name {
					rootTable.Columns[i].IsPK = true
					rootTable.Columns[i].Nullable = false
					pk = append(pk, c.Name)
				}
			}
		}
		rootTable.PrimaryKey = pk
	}

	anc := ancestor{rootPKColumns: pkColumns(rootTable)}

	arrayColResolver := newConflictResolver()
	if err := ctx.walkArrays(&rootTable, anc, arrayColResolver, []string{streamName}, "", root.Fields, 0); err != nil {
		return nil, err
	}

	result := append([]LogicalTable{rootTable}, tables...)
	return result, nil
}

func pkColumns(t LogicalTable) []Column {
	cols := make([]Column, 0, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// walkCtx carries the accumulating sub-table list and the table-name
// conflict resolver shared across the whole denormalization call.
type walkCtx struct {
	tableResolver *conflictResolver
	tables        *[]LogicalTable
}

// inlineFields appends scalar and type-split columns for obj's immediate
// fields to table, recursing into nested Objects (joined by "__") but
// skipping Arrays, which are handled separately by walkArrays once the
// full column set (and therefore the primary key) is known.
func (ctx *walkCtx) inlineFields(table *LogicalTable, colResolver *conflictResolver, path []string, namePrefix string, fields []csm.Field, keySet map[string]bool) error {
	for _, f := range fields {
		fieldPath := append(append([]string{}, path...), f.Name)
		sourceKey := strings.Join(fieldPath, ".")

		base, err := sanitizeIdentifier(f.Name)
		if err != nil {
			return err
		}
		if namePrefix != "" {
			base = namePrefix + "__" + base
		}
		finalName := colResolver.resolve(sourceKey, base)

		switch f.Type.Kind {
		case csm.KindObject:
			if err := ctx.inlineFields(table, colResolver, fieldPath, finalName, f.Type.Fields, keySet); err != nil {
				return err
			}
		case csm.KindArray:
			// Handled in walkArrays once primary-key columns are final.
			continue
		case csm.KindAnyOf:
			recordPath := strings.Join(fieldPath[1:], ".")
			for _, variant := range f.Type.Variants {
				splitName := colResolver.resolve(sourceKey+"#"+variant.Suffix(), finalName+"__"+variant.Suffix())
				table.Columns = append(table.Columns, Column{
					Name:         splitName,
					Type:         csm.Type{Kind: variant, Nullable: true},
					Nullable:     true,
					OriginalPath: recordPath,
					SplitOf:      finalName,
				})
			}
		default:
			isTopLevelKey := len(path) == 1 && keySet[f.Name]
			table.Columns = append(table.Columns, Column{
				Name:         finalName,
				Type:         f.Type,
				Nullable:     f.Type.Nullable && !isTopLevelKey,
				IsPK:         isTopLevelKey,
				OriginalPath: strings.Join(fieldPath[1:], "."),
			})
		}
	}
	return nil
}

// walkArrays performs a second depth-first pass over the same fields,
// this time creating a sub-table for every Array field (including ones
// nested inside inlined Objects), now that the enclosing table's primary
// key is finalized and can be propagated as source-key columns.
func (ctx *walkCtx) walkArrays(table *LogicalTable, anc ancestor, colResolver *conflictResolver, path []string, namePrefix string, fields []csm.Field, level int) error {
	for _, f := range fields {
		fieldPath := append(append([]string{}, path...), f.Name)
		sourceKey := strings.Join(fieldPath, ".")

		base, err := sanitizeIdentifier(f.Name)
		if err != nil {
			return err
		}
		if namePrefix != "" {
			base = namePrefix + "__" + base
		}
		finalName := colResolver.resolve(sourceKey, base)

		switch f.Type.Kind {
		case csm.KindObject:
			if err := ctx.walkArrays(table, anc, colResolver, fieldPath, finalName, f.Type.Fields, level); err != nil {
				return err
			}
		case csm.KindArray:
			if err := ctx.newSubTable(anc, table.Path, fieldPath, table.Name+"__"+finalName, f.Type, level); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ctx *walkCtx) newSubTable(anc ancestor, parentPath, path []string, nameCandidate string, arrayType csm.Type, level int) error {
	tableName := ctx.tableResolver.resolve(strings.Join(path, "."), nameCandidate)

	sub := LogicalTable{
		Path:       path,
		Name:       tableName,
		ParentPath: parentPath,
		Level:      level,
	}

	levelCol := sdc.LevelColumn(level)
	newLevels := append(append([]string{}, anc.levelColumns...), levelCol)

	for _, pkCol := range anc.rootPKColumns {
		sub.Columns = append(sub.Columns, Column{
			Name: sdc.SourceKeyPrefix + pkCol.Name,
			Type: pkCol.Type,
			IsPK: true,
		})
		sub.PrimaryKey = append(sub.PrimaryKey, sdc.SourceKeyPrefix+pkCol.Name)
	}
	for _, lc := range newLevels {
		sub.Columns = append(sub.Columns, Column{
			Name: lc,
			Type: csm.Type{Kind: csm.KindInteger},
			IsPK: true,
		})
		sub.PrimaryKey = append(sub.PrimaryKey, lc)
	}

	itemType := *arrayType.Items

	colResolver := newConflictResolver()

	arrayRecordPath := strings.Join(path[1:], ".")

	switch itemType.Kind {
	case csm.KindObject:
		if err := ctx.inlineFields(&sub, colResolver, path, "", itemType.Fields, map[string]bool{}); err != nil {
			return err
		}
	case csm.KindAnyOf:
		for _, variant := range itemType.Variants {
			sub.Columns = append(sub.Columns, Column{
				Name:         "value__" + variant.Suffix(),
				Type:         csm.Type{Kind: variant, Nullable: true},
				Nullable:     true,
				SplitOf:      "value",
				OriginalPath: arrayRecordPath,
			})
		}
	default:
		sub.Columns = append(sub.Columns, Column{
			Name:         "value",
			Type:         itemType,
			Nullable:     true,
			OriginalPath: arrayRecordPath,
		})
	}

	*ctx.tables = append(*ctx.tables, sub)

	newAnc := ancestor{rootPKColumns: anc.rootPKColumns, levelColumns: newLevels}

	if itemType.Kind == csm.KindObject {
		return ctx.walkArrays(&sub, newAnc, newConflictResolver(), path, "", itemType.Fields, level+1)
	}
	return nil
}
