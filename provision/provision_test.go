package provision_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/provision"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/memory"
)

func newEngine(t *testing.T) (*charter.Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	eng, err := charter.NewEngine(
		charter.WithStore(st),
		charter.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return eng, st
}

func permissionNames(t *testing.T, eng *charter.Engine, roleName string) []string {
	t.Helper()
	ctx := context.Background()
	r, err := eng.Store().GetRoleByName(ctx, roleName)
	require.NoError(t, err)
	perms, err := eng.PermissionsOf(ctx, r.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}

const sample = `
role_structure:
  admin:
    users: "c,r,u,d"
  member:
    posts: "c,r"
permissions_map:
  c: create
  r: read
  u: update
  d: delete
`

func TestLoad(t *testing.T) {
	cfg, err := provision.Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "c,r,u,d", cfg.Roles["admin"]["users"])
	assert.Equal(t, "delete", cfg.Actions["d"])
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := provision.Load(strings.NewReader("roles: {}\n"))
	assert.ErrorIs(t, err, provision.ErrInvalidConfig)
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := provision.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Roles)
}

func TestCompile(t *testing.T) {
	cfg, err := provision.Load(strings.NewReader(sample))
	require.NoError(t, err)

	plan, err := cfg.Compile()
	require.NoError(t, err)

	require.Len(t, plan.Roles, 2)
	assert.Equal(t, role.Admin, plan.Roles[0].Name)
	assert.Equal(t, []string{"create--users", "delete--users", "read--users", "update--users"}, plan.Roles[0].Permissions)
	assert.Equal(t, role.Member, plan.Roles[1].Name)
	assert.Equal(t, []string{"create--posts", "read--posts"}, plan.Roles[1].Permissions)
	assert.Equal(t, "Role assigned to admin users.", plan.Roles[0].Description)

	require.Len(t, plan.Permissions, 6)
	first := plan.Permissions[0]
	assert.Equal(t, "create--posts", first.Name)
	assert.Equal(t, "Create Posts", first.DisplayName)
	assert.Equal(t, "Create Posts", first.Description)
	assert.Equal(t, "create", first.Action)
	assert.Equal(t, "posts", first.Resource)
}

func TestCompileDefaultsActionMap(t *testing.T) {
	cfg := &provision.Config{Roles: provision.Structure{
		"super_admin": {"audit_logs": "r"},
	}}
	plan, err := cfg.Compile()
	require.NoError(t, err)

	require.Len(t, plan.Roles, 3)
	assert.Equal(t, "super_admin", plan.Roles[2].Name)
	assert.Equal(t, "Super Admin", plan.Roles[2].DisplayName)
	assert.Equal(t, "Super Admin", plan.Roles[2].Description)
	require.Len(t, plan.Permissions, 1)
	assert.Equal(t, "read--audit_logs", plan.Permissions[0].Name)
	assert.Equal(t, "Read Audit Logs", plan.Permissions[0].DisplayName)
}

func TestCompileSharedPermission(t *testing.T) {
	cfg := &provision.Config{Roles: provision.Structure{
		"admin":  {"posts": "r"},
		"member": {"posts": "r, r"},
	}}
	plan, err := cfg.Compile()
	require.NoError(t, err)
	require.Len(t, plan.Permissions, 1)
	for _, rp := range plan.Roles {
		assert.Equal(t, []string{"read--posts"}, rp.Permissions)
	}
}

func TestRunSeedsCatalog(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	cfg, err := provision.Load(strings.NewReader(sample))
	require.NoError(t, err)

	res, err := provision.New(eng).Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RolesCreated)
	assert.Equal(t, 6, res.PermissionsCreated)
	assert.Equal(t, 6, res.LinksAttached)

	assert.ElementsMatch(t,
		[]string{"create--users", "read--users", "update--users", "delete--users"},
		permissionNames(t, eng, role.Admin))
	assert.ElementsMatch(t,
		[]string{"create--posts", "read--posts"},
		permissionNames(t, eng, role.Member))

	p, err := eng.Store().GetPermissionByName(ctx, "create--users")
	require.NoError(t, err)
	assert.Equal(t, "Create Users", p.DisplayName)
	assert.Equal(t, "Create Users", p.Description)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	cfg, err := provision.Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = provision.New(eng).Run(ctx, cfg)
	require.NoError(t, err)

	res, err := provision.New(eng).Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, &provision.Result{}, res)

	roles, err := eng.Store().CountRoles(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, roles)
	perms, err := eng.Store().CountPermissions(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, perms)
}

func TestRunUnknownActionWritesNothing(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	cfg := &provision.Config{Roles: provision.Structure{
		"admin":  {"users": "c,r"},
		"member": {"posts": "c,x"},
	}}
	_, err := provision.New(eng).Run(ctx, cfg)
	require.ErrorIs(t, err, provision.ErrUnknownAction)

	roles, err := eng.Store().CountRoles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, roles)
	perms, err := eng.Store().CountPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, perms)
}

func TestRunWithReset(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	stray := &permission.Permission{Name: permission.NameFor("archive", "posts")}
	require.NoError(t, eng.CreatePermission(ctx, stray))

	cfg := &provision.Config{Roles: provision.Structure{"member": {"posts": "r"}}}
	res, err := provision.New(eng, provision.WithReset()).Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RolesCreated)

	_, err = eng.Store().GetPermissionByName(ctx, stray.Name)
	assert.ErrorIs(t, err, charter.ErrNotFound)
}

// danglingLinkStore adds a link to a permission nobody seeds, so the seed
// fails only after its roles and permissions have been written.
type danglingLinkStore struct{ *memory.Store }

func (s danglingLinkStore) Seed(ctx context.Context, cat *store.Catalog) (*store.SeedResult, error) {
	cat.Links[role.Admin] = append(cat.Links[role.Admin], permission.NameFor("purge", "users"))
	return s.Store.Seed(ctx, cat)
}

func TestRunFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	st := danglingLinkStore{memory.New()}
	eng, err := charter.NewEngine(
		charter.WithStore(st),
		charter.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	kept := &permission.Permission{Name: permission.NameFor("archive", "posts")}
	require.NoError(t, eng.CreatePermission(ctx, kept))

	cfg, err := provision.Load(strings.NewReader(sample))
	require.NoError(t, err)

	for _, opts := range [][]provision.Option{nil, {provision.WithReset()}} {
		_, err = provision.New(eng, opts...).Run(ctx, cfg)
		require.ErrorIs(t, err, charter.ErrUnknownEntityReference)

		roles, err := st.CountRoles(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, roles)
		perms, err := st.ListPermissions(ctx, nil)
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.Equal(t, kept.ID, perms[0].ID)
	}
}

func TestEnsureBootstrapRoles(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	require.NoError(t, provision.EnsureBootstrapRoles(ctx, eng))
	require.NoError(t, provision.EnsureBootstrapRoles(ctx, eng))

	for _, def := range role.Bootstrap() {
		r, err := eng.Store().GetRoleByName(ctx, def.Name)
		require.NoError(t, err)
		assert.Equal(t, def.Description, r.Description)
	}
}
