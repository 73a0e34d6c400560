// SPDX-License-Identifier: Apache-2.0

package flatten

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/sdc"
)

// Flatten decomposes record (already enriched with the injected _sdc_*
// metadata fields by the stream processor) into one row per table in
// tables. uuidPK, when non-empty, is used verbatim as the generated
// _sdc_primary_key value for a keyless stream's root row; pass "" to have
// Flatten generate one itself.
func Flatten(tables []denorm.LogicalTable, streamName string, record map[string]any, uuidPK string) (Result, error) {
	byPath := make(map[string]denorm.LogicalTable, len(tables))
	for _, t := range tables {
		byPath[strings.Join(t.Path, ".")] = t
	}

	rootTable, ok := byPath[streamName]
	if !ok {
		return nil, RootTableMissingError{Stream: streamName}
	}

	result := Result{}

	rootRow := make(Row, len(rootTable.Columns))
	for _, col := range rootTable.Columns {
		assignColumn(rootRow, col, "", record)
	}

	if len(rootTable.PrimaryKey) == 1 && rootTable.PrimaryKey[0] == sdc.PrimaryKey {
		if rootRow[sdc.PrimaryKey] == nil {
			if uuidPK == "" {
				uuidPK = uuid.NewString()
			}
			rootRow[sdc.PrimaryKey] = uuidPK
		}
	}

	result[rootTable.Name] = append(result[rootTable.Name], rootRow)

	pkValues := make(map[string]any, len(rootTable.PrimaryKey))
	for _, name := range rootTable.PrimaryKey {
		pkValues[sdc.SourceKeyPrefix+name] = rootRow[name]
	}

	if err := flattenArrays(byPath, rootTable, record, pkValues, nil, result); err != nil {
		return nil, err
	}

	return result, nil
}

// flattenArrays walks every sub-table whose ParentPath matches table's own
// Path, locating its backing array within data by the remaining path
// segments, and emits one row per array element (recursing further for
// nested arrays inside that element).
func flattenArrays(byPath map[string]denorm.LogicalTable, table denorm.LogicalTable, data map[string]any, pkValues map[string]any, levelValues []int, result Result) error {
	for _, candidate := range byPath {
		if !pathEqual(candidate.ParentPath, table.Path) {
			continue
		}

		relSegments := candidate.Path[len(table.Path):]
		arr, found := navigateArray(data, relSegments)
		if !found {
			continue
		}

		candidateRecordPath := recordPath(candidate.Path)

		for idx, item := range arr {
			row := make(Row, len(candidate.Columns))

			for k, v := range pkValues {
				row[k] = v
			}
			newLevelValues := append(append([]int{}, levelValues...), idx)
			for i, lv := range newLevelValues {
				row[sdc.LevelColumn(i)] = int64(lv)
			}

			itemMap, isObject := item.(map[string]any)

			for _, col := range candidate.Columns {
				if isLevelOrSourceKeyColumn(col.Name) {
					continue
				}
				if col.OriginalPath == candidateRecordPath {
					assignValue(row, col, item)
					continue
				}
				if isObject {
					assignColumn(row, col, candidateRecordPath, itemMap)
				}
			}

			result[candidate.Name] = append(result[candidate.Name], row)

			if isObject {
				if err := flattenArrays(byPath, candidate, itemMap, pkValues, newLevelValues, result); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func isLevelOrSourceKeyColumn(name string) bool {
	return strings.HasPrefix(name, sdc.SourceKeyPrefix) || strings.HasPrefix(name, "_sdc_level_")
}

// assignColumn resolves col's value from data by stripping tableRecordPath
// (the enclosing table's own record-relative path) from col.OriginalPath
// and navigating the remainder.
func assignColumn(row Row, col denorm.Column, tableRecordPath string, data map[string]any) {
	rel := col.OriginalPath
	if tableRecordPath != "" {
		rel = strings.TrimPrefix(rel, tableRecordPath+".")
	}

	v, found := navigate(data, rel)
	if !found {
		return
	}

	assignValue(row, col, v)
}

func assignValue(row Row, col denorm.Column, v any) {
	if col.SplitOf != "" {
		assignSplitValue(row, col, v)
		return
	}

	row[col.Name] = convertScalar(col.Type.Kind, v)
}

// assignSplitValue is invoked once per variant column sharing the same
// SplitOf base name; it is a no-op unless v's runtime JSON kind matches
// this particular variant, leaving the other sibling columns nil.
func assignSplitValue(row Row, col denorm.Column, v any) {
	if v == nil {
		return
	}
	if !runtimeKindMatches(col.Type.Kind, v) {
		return
	}
	if _, already := row[col.Name]; already {
		return
	}
	row[col.Name] = convertScalar(col.Type.Kind, v)
}

func runtimeKindMatches(k csm.Kind, v any) bool {
	switch n := v.(type) {
	case bool:
		return k == csm.KindBoolean
	case json.Number:
		if isIntegerNumber(n) {
			return k == csm.KindInteger
		}
		return k == csm.KindNumber
	case float64:
		return k == csm.KindInteger || k == csm.KindNumber
	case string:
		return k == csm.KindString || k == csm.KindDateTimeString
	case map[string]any:
		return k == csm.KindObject
	case []any:
		return k == csm.KindArray
	}
	return false
}

// isIntegerNumber reports whether n's literal representation carries no
// fraction or exponent, mirroring Python's native int/float distinction
// that the source Singer target relies on to pick Integer vs Number.
func isIntegerNumber(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

func convertScalar(k csm.Kind, v any) any {
	switch k {
	case csm.KindObject, csm.KindArray:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	case csm.KindInteger:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case json.Number:
			i, err := n.Int64()
			if err == nil {
				return i
			}
		}
		return v
	case csm.KindNumber:
		switch n := v.(type) {
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f
			}
		}
		return v
	default:
		return v
	}
}

func navigate(data map[string]any, dotPath string) (any, bool) {
	if dotPath == "" {
		return data, true
	}

	segments := strings.Split(dotPath, ".")
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func navigateArray(data map[string]any, segments []string) ([]any, bool) {
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present || v == nil {
			return nil, false
		}
		cur = v
	}

	arr, ok := cur.([]any)
	if !ok {
		return nil, false
	}
	return arr, true
}

func recordPath(path []string) string {
	if len(path) <= 1 {
		return ""
	}
	return strings.Join(path[1:], ".")
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
