//go:build integration

// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgsing/pgsing/internal/dbtest"
	"github.com/pgsing/pgsing/pkg/catalog"
	"github.com/pgsing/pgsing/pkg/csm"
)

func TestMain(m *testing.M) {
	dbtest.SharedTestMain(m)
}

func TestAdapter_DiscoverSchema_RoundTripsFingerprints(t *testing.T) {
	t.Parallel()

	dbtest.WithDatabase(t, func(db *sql.DB, _ string) {
		ctx := context.Background()
		adapter := catalog.New("public")

		require.NoError(t, adapter.EnsureMetadataTable(ctx, db))

		_, err := db.ExecContext(ctx, `CREATE TABLE public.widgets (id text PRIMARY KEY, payload json NOT NULL)`)
		require.NoError(t, err)

		require.NoError(t, adapter.RecordMetadata(ctx, db, "widgets", "payload", "payload", csm.KindObject, ""))

		remote, err := adapter.DiscoverSchema(ctx, db)
		require.NoError(t, err)

		table, ok := remote["widgets"]
		require.True(t, ok)
		require.Equal(t, []string{"id"}, table.PrimaryKey)

		col, ok := table.Column("payload")
		require.True(t, ok)
		require.Equal(t, csm.KindObject, col.Kind)
		require.Equal(t, "payload", col.OriginalPath)
	})
}

func TestAdapter_StreamVersion_TracksHighestActivated(t *testing.T) {
	t.Parallel()

	dbtest.WithDatabase(t, func(db *sql.DB, _ string) {
		ctx := context.Background()
		adapter := catalog.New("public")
		require.NoError(t, adapter.EnsureStreamVersionTable(ctx, db))

		v, err := adapter.StreamVersion(ctx, db, "orders")
		require.NoError(t, err)
		require.Nil(t, v)

		require.NoError(t, adapter.SetStreamVersion(ctx, db, "orders", 3))

		v, err = adapter.StreamVersion(ctx, db, "orders")
		require.NoError(t, err)
		require.NotNil(t, v)
		require.Equal(t, int64(3), *v)
	})
}

func TestSwapTable_RetiresPreviousLive(t *testing.T) {
	t.Parallel()

	dbtest.WithDatabase(t, func(db *sql.DB, _ string) {
		ctx := context.Background()
		adapter := catalog.New("public")

		_, err := db.ExecContext(ctx, `CREATE TABLE public.orders (id text PRIMARY KEY)`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE public."orders__v2" (id text PRIMARY KEY)`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `INSERT INTO public."orders__v2" VALUES ('a')`)
		require.NoError(t, err)

		swap := adapter.SwapTable("orders__v2", "orders")
		require.NoError(t, swap.Execute(ctx, db))

		var count int
		row := db.QueryRowContext(ctx, `SELECT count(*) FROM public.orders`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 1, count)

		row = db.QueryRowContext(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_name = 'orders__v2'`)
		require.NoError(t, row.Scan(&count))
		require.Equal(t, 0, count)
	})
}
