package extension

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/memory"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStartSeedsBootstrapRoles(t *testing.T) {
	ctx := context.Background()
	ext := New(WithLogger(quiet()))
	require.NoError(t, ext.init(memory.New()))
	require.NoError(t, ext.Start(ctx))
	require.NoError(t, ext.Health(ctx))

	for _, name := range []string{role.Member, role.Admin} {
		_, err := ext.Engine().Store().GetRoleByName(ctx, name)
		assert.NoError(t, err, name)
	}
	require.NoError(t, ext.Stop(ctx))
}

func TestStartSeedsFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
role_structure:
  editor:
    posts: "r,u"
`), 0o600))

	ext := New(WithLogger(quiet()), WithSeed(path, false), WithRoleNames("subscriber", ""))
	require.NoError(t, ext.init(memory.New()))
	require.NoError(t, ext.Start(ctx))

	st := ext.Engine().Store()
	for _, name := range []string{"editor", "subscriber", role.Member, role.Admin} {
		_, err := st.GetRoleByName(ctx, name)
		assert.NoError(t, err, name)
	}
	_, err := st.GetPermissionByName(ctx, "update--posts")
	assert.NoError(t, err)

	cfg := ext.Engine().Config()
	assert.Equal(t, "subscriber", cfg.MemberRole)
	assert.Equal(t, []string{"subscriber"}, cfg.VerificationRoles)
}

func TestStartFailsOnBadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
role_structure:
  editor:
    posts: "z"
`), 0o600))

	ext := New(WithLogger(quiet()), WithSeed(path, false))
	require.NoError(t, ext.init(memory.New()))
	err := ext.Start(context.Background())
	require.Error(t, err)

	n, err := ext.Engine().Store().CountRoles(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartRequiresInit(t *testing.T) {
	ext := New()
	assert.Error(t, ext.Start(context.Background()))
	assert.Error(t, ext.Health(context.Background()))
	assert.NoError(t, ext.Stop(context.Background()))
}

func TestPinnedStoreWinsOverContainer(t *testing.T) {
	pinned, resolved := memory.New(), memory.New()
	ext := New(WithLogger(quiet()), WithStore(pinned))
	require.NoError(t, ext.init(resolved))
	assert.Same(t, pinned, ext.Engine().Store())
}

func TestWithoutSeedLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	ext := New(WithLogger(quiet()), WithoutSeed(), WithoutMigrate())
	require.NoError(t, ext.init(memory.New()))
	require.NoError(t, ext.Start(ctx))

	n, err := ext.Engine().Store().CountRoles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedWithReset(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
role_structure:
  editor:
    posts: "r"
`), 0o600))

	st := memory.New()
	require.NoError(t, st.CreateRole(ctx, &role.Role{Name: "stale"}))

	ext := New(WithLogger(quiet()), WithSeed(path, true))
	require.NoError(t, ext.init(st))
	require.NoError(t, ext.Start(ctx))

	_, err := st.GetRoleByName(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRoleByName(ctx, "editor")
	assert.NoError(t, err)
}
