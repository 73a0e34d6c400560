// SPDX-License-Identifier: Apache-2.0

package flatten_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/flatten"
)

func mustSimplify(t *testing.T, raw string) csm.Type {
	t.Helper()
	ty, err := csm.Simplify([]byte(raw))
	require.NoError(t, err)
	return ty
}

func mustDenormalize(t *testing.T, stream, raw string, keyProperties []string) []denorm.LogicalTable {
	t.Helper()
	root := mustSimplify(t, raw)
	tables, err := denorm.Denormalize(stream, root, keyProperties)
	require.NoError(t, err)
	return tables
}

func TestFlatten_SimpleLoad(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "cats", `{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": "string"}
		}
	}`, []string{"id"})

	record := map[string]any{
		"id":                  float64(1),
		"name":                "Tom",
		"_sdc_batched_at":     "2026-07-31T00:00:00Z",
		"_sdc_received_at":    "2026-07-31T00:00:00Z",
		"_sdc_sequence":       float64(1000),
		"_sdc_table_version":  float64(1),
	}

	result, err := flatten.Flatten(tables, "cats", record, "")
	require.NoError(t, err)

	rows := result["cats"]
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, int64(1), row["id"])
	require.Equal(t, "Tom", row["name"])
	require.Equal(t, "2026-07-31T00:00:00Z", row["_sdc_batched_at"])
	require.Equal(t, int64(1000), row["_sdc_sequence"])
}

func TestFlatten_KeylessGeneratesUUID(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "events", `{
		"type": "object",
		"properties": {"x": {"type": "integer"}}
	}`, nil)

	record := map[string]any{"x": float64(5)}

	result, err := flatten.Flatten(tables, "events", record, "")
	require.NoError(t, err)

	rows := result["events"]
	require.Len(t, rows, 1)
	require.NotEmpty(t, rows[0]["_sdc_primary_key"])

	result2, err := flatten.Flatten(tables, "events", record, "fixed-uuid")
	require.NoError(t, err)
	require.Equal(t, "fixed-uuid", result2["events"][0]["_sdc_primary_key"])
}

func TestFlatten_NestedArrays(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "cats", `{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"adoption": {
				"type": "object",
				"properties": {
					"immunizations": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"type": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}`, []string{"id"})

	record := map[string]any{
		"id": float64(7),
		"adoption": map[string]any{
			"immunizations": []any{
				map[string]any{"type": "rabies"},
				map[string]any{"type": "distemper"},
			},
		},
	}

	result, err := flatten.Flatten(tables, "cats", record, "")
	require.NoError(t, err)

	rootRows := result["cats"]
	require.Len(t, rootRows, 1)
	require.Equal(t, int64(7), rootRows[0]["id"])

	subRows := result["cats__adoption__immunizations"]
	require.Len(t, subRows, 2)
	require.Equal(t, "rabies", subRows[0]["type"])
	require.Equal(t, int64(7), subRows[0]["_sdc_source_key_id"])
	require.Equal(t, int64(0), subRows[0]["_sdc_level_0_id"])
	require.Equal(t, "distemper", subRows[1]["type"])
	require.Equal(t, int64(1), subRows[1]["_sdc_level_0_id"])
}

func TestFlatten_ScalarArray(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "teams", `{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"tags": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}`, []string{"id"})

	record := map[string]any{
		"id":   float64(3),
		"tags": []any{"a", "b", "c"},
	}

	result, err := flatten.Flatten(tables, "teams", record, "")
	require.NoError(t, err)

	subRows := result["teams__tags"]
	require.Len(t, subRows, 3)
	require.Equal(t, "a", subRows[0]["value"])
	require.Equal(t, "b", subRows[1]["value"])
	require.Equal(t, "c", subRows[2]["value"])
	for i, row := range subRows {
		require.Equal(t, int64(3), row["_sdc_source_key_id"])
		require.Equal(t, int64(i), row["_sdc_level_0_id"])
	}
}

func TestFlatten_TypeSplitColumn(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "cats", `{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": ["string", "boolean"]}
		}
	}`, []string{"id"})

	result, err := flatten.Flatten(tables, "cats", map[string]any{
		"id": float64(1), "name": "Tom",
	}, "")
	require.NoError(t, err)
	row := result["cats"][0]
	require.Equal(t, "Tom", row["name__s"])
	require.Nil(t, row["name__b"])

	result2, err := flatten.Flatten(tables, "cats", map[string]any{
		"id": float64(2), "name": true,
	}, "")
	require.NoError(t, err)
	row2 := result2["cats"][0]
	require.Equal(t, true, row2["name__b"])
	require.Nil(t, row2["name__s"])
}

func TestFlatten_IntegerNumberSplitColumn(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "cats", `{
		"type": "object",
		"properties": {
			"id": {"type": "integer"},
			"weight": {"type": ["integer", "number"]}
		}
	}`, []string{"id"})

	// A producer decoding with json.Decoder.UseNumber() hands flatten a
	// json.Number for every JSON number literal; "4" (no '.' or exponent)
	// must land in the integer variant only, "4.5" in the number variant
	// only.
	result, err := flatten.Flatten(tables, "cats", map[string]any{
		"id": float64(1), "weight": json.Number("4"),
	}, "")
	require.NoError(t, err)
	row := result["cats"][0]
	require.Equal(t, int64(4), row["weight__i"])
	require.Nil(t, row["weight__f"])

	result2, err := flatten.Flatten(tables, "cats", map[string]any{
		"id": float64(2), "weight": json.Number("4.5"),
	}, "")
	require.NoError(t, err)
	row2 := result2["cats"][0]
	require.Equal(t, 4.5, row2["weight__f"])
	require.Nil(t, row2["weight__i"])
}

func TestFlatten_MissingRootTable(t *testing.T) {
	t.Parallel()

	tables := mustDenormalize(t, "cats", `{"type":"object","properties":{"id":{"type":"integer"}}}`, []string{"id"})

	_, err := flatten.Flatten(tables, "dogs", map[string]any{}, "")
	require.Error(t, err)
	require.IsType(t, flatten.RootTableMissingError{}, err)
}
