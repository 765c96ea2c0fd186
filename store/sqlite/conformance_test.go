package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

// openTestStore opens a migrated store on a database file in t's temp dir.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	require.NoError(t, drv.Open(ctx, filepath.Join(t.TempDir(), "charter.db")))
	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}
