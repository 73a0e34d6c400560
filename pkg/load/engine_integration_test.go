//go:build integration

// SPDX-License-Identifier: Apache-2.0

package load_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/internal/dbtest"
	"github.com/pgsing/pgsing/pkg/csm"
	"github.com/pgsing/pgsing/pkg/db"
	"github.com/pgsing/pgsing/pkg/denorm"
	"github.com/pgsing/pgsing/pkg/load"
)

func TestMain(m *testing.M) {
	dbtest.SharedTestMain(m)
}

func ordersTables(t *testing.T) []denorm.LogicalTable {
	t.Helper()
	schema := []byte(`{
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"total": {"type": "number"}
		}
	}`)
	simplified, err := csm.Simplify(schema)
	require.NoError(t, err)

	tables, err := denorm.Denormalize("orders", simplified, []string{"id"})
	require.NoError(t, err)
	return tables
}

func TestEngine_FlushUpsert_CreatesAndMerges(t *testing.T) {
	t.Parallel()

	dbtest.WithDatabase(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: sqlDB}
		engine := load.New(rdb, "public")
		require.NoError(t, engine.Bootstrap(ctx))

		tables := ordersTables(t)

		records := []map[string]any{
			{"id": "1", "total": 10.0, "_sdc_batched_at": "2026-07-31T00:00:00Z", "_sdc_sequence": int64(1)},
			{"id": "2", "total": 20.0, "_sdc_batched_at": "2026-07-31T00:00:00Z", "_sdc_sequence": int64(1)},
		}
		require.NoError(t, engine.FlushUpsert(ctx, "orders", tables, records))

		var count int
		row := sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM public.orders`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 2, count)

		// A second flush with an updated total for id=1 and a new id=3
		// should merge, not duplicate.
		second := []map[string]any{
			{"id": "1", "total": 99.0, "_sdc_batched_at": "2026-07-31T00:00:01Z", "_sdc_sequence": int64(2)},
			{"id": "3", "total": 30.0, "_sdc_batched_at": "2026-07-31T00:00:01Z", "_sdc_sequence": int64(2)},
		}
		require.NoError(t, engine.FlushUpsert(ctx, "orders", tables, second))

		row = sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM public.orders`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 3, count)

		var total float64
		row = sqlDB.QueryRowContext(ctx, `SELECT total FROM public.orders WHERE id = '1'`)
		require.NoError(t, row.Scan(&total))
		require.Equal(t, 99.0, total)
	})
}

func TestEngine_FullTableReplacement_ActivateSwapsLive(t *testing.T) {
	t.Parallel()

	dbtest.WithDatabase(t, func(sqlDB *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: sqlDB}
		engine := load.New(rdb, "public")
		require.NoError(t, engine.Bootstrap(ctx))

		tables := ordersTables(t)

		records := []map[string]any{{"id": "1", "total": 10.0, "_sdc_batched_at": "2026-07-31T00:00:00Z", "_sdc_sequence": int64(1)}}
		require.NoError(t, engine.FlushFullTableReplacement(ctx, "orders", tables, records, 1))

		// The live table must not exist yet; only the loading table does.
		var count int
		row := sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_name = 'orders'`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 0, count)

		require.NoError(t, engine.ActivateVersion(ctx, "orders", tables, 1))

		row = sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM public.orders`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 1, count)

		// A stale re-activation of the same version performs no work and is
		// reported as StaleVersionError.
		err := engine.ActivateVersion(ctx, "orders", tables, 1)
		require.Error(t, err)
		require.IsType(t, load.StaleVersionError{}, err)
	})
}
