//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

// startPostgres runs a throwaway container and returns a migrated store.
// The test is skipped when no container runtime is reachable.
func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping postgres conformance")
	}
	provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("charter_test"),
		tcpostgres.WithUsername("charter"),
		tcpostgres.WithPassword("charter"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv := pgdriver.New()
	require.NoError(t, drv.Open(ctx, dsn))
	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestConformance(t *testing.T) {
	s := startPostgres(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		require.NoError(t, s.Reset(context.Background()))
		return s
	})
}
