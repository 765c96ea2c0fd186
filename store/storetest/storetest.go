// Package storetest is a conformance suite shared by every store.Store
// backend. Each backend's tests call Run with a constructor that returns an
// empty, migrated store.
package storetest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
)

// Opener returns a fresh, migrated store. Cleanup belongs to t.
type Opener func(t *testing.T) store.Store

// Run executes the suite. Every case gets its own store.
func Run(t *testing.T, open Opener) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CatalogTimestamps", testCatalogTimestamps},
		{"ProtectedFields", testProtectedFields},
		{"IdempotentAttach", testIdempotentAttach},
		{"KindScopedGrants", testKindScopedGrants},
		{"JoinedReads", testJoinedReads},
		{"SetRolePermissions", testSetRolePermissions},
		{"CascadeDeleteRole", testCascadeDeleteRole},
		{"CascadeDeletePermission", testCascadeDeletePermission},
		{"CascadeDeletePrincipal", testCascadeDeletePrincipal},
		{"ActivatePrincipal", testActivatePrincipal},
		{"ActivateUnknownRole", testActivateUnknownRole},
		{"UpdateCannotActivate", testUpdateCannotActivate},
		{"Reset", testReset},
		{"SeedScenario", testSeedScenario},
		{"SeedRollback", testSeedRollback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func newPrincipal(t *testing.T, s store.Store, kind principal.Kind, email string) *principal.Principal {
	t.Helper()
	p := &principal.Principal{Kind: kind, Email: email}
	require.NoError(t, s.CreatePrincipal(context.Background(), p))
	return p
}

func newRole(t *testing.T, s store.Store, name string) *role.Role {
	t.Helper()
	r := &role.Role{Name: name}
	require.NoError(t, s.CreateRole(context.Background(), r))
	return r
}

func newPermission(t *testing.T, s store.Store, name string) *permission.Permission {
	t.Helper()
	p := &permission.Permission{Name: name}
	require.NoError(t, s.CreatePermission(context.Background(), p))
	return p
}

func roleNames(roles []*role.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

func permissionNames(perms []*permission.Permission) []string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

func testCatalogTimestamps(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := newRole(t, s, "editor")
	p := newPermission(t, s, "read--posts")

	gotRole, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, r.CreatedAt.Equal(gotRole.CreatedAt), "role created_at %v != %v", r.CreatedAt, gotRole.CreatedAt)

	gotPerm, err := s.GetPermissionByName(ctx, "read--posts")
	require.NoError(t, err)
	assert.Equal(t, p.ID, gotPerm.ID)
	assert.True(t, p.CreatedAt.Equal(gotPerm.CreatedAt))

	_, err = s.GetRole(ctx, id.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateRole(ctx, &role.Role{Name: "editor"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func testProtectedFields(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := newRole(t, s, "editor")

	renamed, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	renamed.Name = "writer"
	assert.ErrorIs(t, s.UpdateRole(ctx, renamed), entity.ErrImmutableField)

	backdated, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	backdated.CreatedAt = backdated.CreatedAt.Add(-time.Hour)
	assert.ErrorIs(t, s.UpdateRole(ctx, backdated), entity.ErrImmutableField)

	described, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	described.Description = "Edits posts"
	require.NoError(t, s.UpdateRole(ctx, described))

	got, err := s.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "editor", got.Name)
	assert.Equal(t, "Edits posts", got.Description)

	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	rekinded, err := s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	rekinded.Kind = principal.KindServiceAccount
	assert.ErrorIs(t, s.UpdatePrincipal(ctx, rekinded), entity.ErrImmutableField)
}

func testIdempotentAttach(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")

	for range 2 {
		require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID, r.ID}))
		require.NoError(t, s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{perm.ID}))
		require.NoError(t, s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{perm.ID}))
	}

	tuples, err := s.ListPrincipalRoles(ctx, p.Ref())
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, r.ID, tuples[0].RoleID)
	assert.Equal(t, p.Ref(), tuples[0].Principal())

	direct, err := s.ListPrincipalPermissions(ctx, p.Ref())
	require.NoError(t, err)
	assert.Len(t, direct, 1)

	linked, err := s.ListRolePermissions(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []id.PermissionID{perm.ID}, linked)

	// An unknown ID fails the whole batch.
	other := newRole(t, s, "viewer")
	err = s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{other.ID, id.New()})
	assert.ErrorIs(t, err, store.ErrUnknownReference)
	tuples, err = s.ListPrincipalRoles(ctx, p.Ref())
	require.NoError(t, err)
	assert.Len(t, tuples, 1)

	// Detaching an absent grant is not an error.
	require.NoError(t, s.DetachPrincipalRoles(ctx, p.Ref(), []id.RoleID{other.ID}))
}

func testKindScopedGrants(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")

	wrongKind := principal.ServiceAccount(p.ID)
	assert.ErrorIs(t, s.AttachPrincipalRoles(ctx, wrongKind, []id.RoleID{r.ID}), store.ErrUnknownReference)
	assert.ErrorIs(t, s.AttachPrincipalPermissions(ctx, wrongKind, []id.PermissionID{perm.ID}), store.ErrUnknownReference)

	require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}))
	require.NoError(t, s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{perm.ID}))

	roles, err := s.ListRolesForPrincipal(ctx, wrongKind)
	require.NoError(t, err)
	assert.Empty(t, roles)
	perms, err := s.ListPermissionsForPrincipal(ctx, wrongKind)
	require.NoError(t, err)
	assert.Empty(t, perms)

	// Detach under the wrong kind leaves the real grant alone.
	require.NoError(t, s.DetachPrincipalRoles(ctx, wrongKind, []id.RoleID{r.ID}))
	roles, err = s.ListRolesForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roleNames(roles))

	holders, err := s.ListRoleHolders(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []principal.Ref{p.Ref()}, holders)
}

func testJoinedReads(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	editor := newRole(t, s, "editor")
	viewer := newRole(t, s, "viewer")
	newRole(t, s, "unused")
	read := newPermission(t, s, "read--posts")
	write := newPermission(t, s, "update--posts")
	audit := newPermission(t, s, "read--audit")

	require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{editor.ID, viewer.ID}))
	require.NoError(t, s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{audit.ID}))
	require.NoError(t, s.AttachRolePermissions(ctx, editor.ID, []id.PermissionID{read.ID, write.ID}))

	roles, err := s.ListRolesForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "viewer"}, roleNames(roles))
	for _, r := range roles {
		assert.False(t, r.CreatedAt.IsZero())
		assert.False(t, r.ID.IsNil())
	}

	direct, err := s.ListPermissionsForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, []string{"read--audit"}, permissionNames(direct))

	byRole, err := s.ListPermissionsByRole(ctx, editor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"read--posts", "update--posts"}, permissionNames(byRole))

	listed, err := s.ListRoles(ctx, &role.ListFilter{Names: []string{"editor", "unused"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "unused"}, roleNames(listed))

	count, err := s.CountPermissions(ctx, &permission.ListFilter{Names: []string{"read--posts", "read--audit", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func testSetRolePermissions(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := newRole(t, s, "editor")
	a := newPermission(t, s, "read--posts")
	b := newPermission(t, s, "update--posts")
	c := newPermission(t, s, "delete--posts")

	require.NoError(t, s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{a.ID, b.ID}))
	require.NoError(t, s.SetRolePermissions(ctx, r.ID, []id.PermissionID{b.ID, c.ID}))

	got, err := s.ListPermissionsByRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete--posts", "update--posts"}, permissionNames(got))

	require.NoError(t, s.DetachRolePermissions(ctx, r.ID, []id.PermissionID{b.ID, a.ID}))
	got, err = s.ListPermissionsByRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete--posts"}, permissionNames(got))
}

func testCascadeDeleteRole(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")
	require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}))
	require.NoError(t, s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{perm.ID}))

	require.NoError(t, s.DeleteRole(ctx, r.ID))

	roles, err := s.ListRolesForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, roles)
	tuples, err := s.ListPrincipalRoles(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, tuples)
	linked, err := s.ListRolePermissions(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)

	_, err = s.GetPermission(ctx, perm.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, s.DeleteRole(ctx, r.ID), store.ErrNotFound)
}

func testCascadeDeletePermission(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")
	require.NoError(t, s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{perm.ID}))
	require.NoError(t, s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{perm.ID}))

	require.NoError(t, s.DeletePermission(ctx, perm.ID))

	direct, err := s.ListPermissionsForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, direct)
	byRole, err := s.ListPermissionsByRole(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, byRole)
}

func testCascadeDeletePrincipal(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")
	require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}))
	require.NoError(t, s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{perm.ID}))

	require.NoError(t, s.DeletePrincipal(ctx, p.ID))

	holders, err := s.ListRoleHolders(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, holders)
	direct, err := s.ListPrincipalPermissions(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, direct)

	// Catalog entities survive.
	_, err = s.GetRole(ctx, r.ID)
	assert.NoError(t, err)
	_, err = s.GetPermission(ctx, perm.ID)
	assert.NoError(t, err)
}

func testActivatePrincipal(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	member := newRole(t, s, role.Member)
	verifiedAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	for range 2 {
		require.NoError(t, s.ActivatePrincipal(ctx, p.Ref(), verifiedAt, []id.RoleID{member.ID}))
	}

	got, err := s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.NotNil(t, got.EmailVerifiedAt)
	assert.True(t, verifiedAt.Equal(*got.EmailVerifiedAt))

	roles, err := s.ListRolesForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Equal(t, []string{role.Member}, roleNames(roles))

	active := true
	n, err := s.CountPrincipals(ctx, &principal.ListFilter{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = s.ActivatePrincipal(ctx, principal.ServiceAccount(p.ID), verifiedAt, nil)
	assert.ErrorIs(t, err, store.ErrUnknownReference)
}

func testActivateUnknownRole(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	member := newRole(t, s, role.Member)

	err := s.ActivatePrincipal(ctx, p.Ref(), time.Now(), []id.RoleID{member.ID, id.New()})
	require.ErrorIs(t, err, store.ErrUnknownReference)

	got, err := s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Nil(t, got.EmailVerifiedAt)
	roles, err := s.ListRolesForPrincipal(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func testUpdateCannotActivate(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")

	upd, err := s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	upd.Active = true
	assert.ErrorIs(t, s.UpdatePrincipal(ctx, upd), principal.ErrActivationManaged)

	got, err := s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// Renaming and deactivating stay with the generic update.
	member := newRole(t, s, role.Member)
	require.NoError(t, s.ActivatePrincipal(ctx, p.Ref(), time.Now(), []id.RoleID{member.ID}))
	upd, err = s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	upd.FirstName = "Ada"
	upd.Active = false
	require.NoError(t, s.UpdatePrincipal(ctx, upd))

	got, err = s.GetPrincipal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.False(t, got.Active)
}

func testReset(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPrincipal(t, s, principal.KindUser, "ada@example.com")
	r := newRole(t, s, "editor")
	perm := newPermission(t, s, "read--posts")
	require.NoError(t, s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}))
	require.NoError(t, s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{perm.ID}))

	require.NoError(t, s.Reset(ctx))

	roles, err := s.CountRoles(ctx, nil)
	require.NoError(t, err)
	perms, err := s.CountPermissions(ctx, nil)
	require.NoError(t, err)
	principals, err := s.CountPrincipals(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, roles+perms+principals)

	tuples, err := s.ListPrincipalRoles(ctx, p.Ref())
	require.NoError(t, err)
	assert.Empty(t, tuples)

	// The store is usable afterwards; names are free again.
	newRole(t, s, "editor")
}

// scenarioCatalog is the admin/member seed: admin gets CRUD on users and
// member gets create and read on posts.
func scenarioCatalog(reset bool) *store.Catalog {
	cat := &store.Catalog{Reset: reset, Links: map[string][]string{}}
	grants := []struct {
		role     string
		resource string
		actions  []string
	}{
		{role.Admin, "users", []string{"create", "read", "update", "delete"}},
		{role.Member, "posts", []string{"create", "read"}},
	}
	for _, g := range grants {
		cat.Roles = append(cat.Roles, &role.Role{Name: g.role, DisplayName: g.role})
		for _, action := range g.actions {
			name := permission.NameFor(action, g.resource)
			cat.Permissions = append(cat.Permissions, &permission.Permission{Name: name, Action: action, Resource: g.resource})
			cat.Links[g.role] = append(cat.Links[g.role], name)
		}
	}
	return cat
}

func assertScenarioState(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	roles, err := s.ListRoles(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{role.Admin, role.Member}, roleNames(roles))

	perms, err := s.ListPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"create--posts", "create--users", "delete--users",
		"read--posts", "read--users", "update--users",
	}, permissionNames(perms))

	want := map[string][]string{
		role.Admin:  {"create--users", "delete--users", "read--users", "update--users"},
		role.Member: {"create--posts", "read--posts"},
	}
	for name, wantPerms := range want {
		r, err := s.GetRoleByName(ctx, name)
		require.NoError(t, err)
		got, err := s.ListPermissionsByRole(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, wantPerms, permissionNames(got), "role %s", name)
	}
}

func testSeedScenario(t *testing.T, s store.Store) {
	ctx := context.Background()

	res, err := s.Seed(ctx, scenarioCatalog(false))
	require.NoError(t, err)
	assert.Len(t, res.Roles, 2)
	assert.Len(t, res.Permissions, 6)
	assert.Equal(t, 6, res.LinkCount())
	assertScenarioState(t, s)

	// A second run reads the first run's rows back and creates nothing.
	res, err = s.Seed(ctx, scenarioCatalog(false))
	require.NoError(t, err)
	assert.Empty(t, res.Roles)
	assert.Empty(t, res.Permissions)
	assert.Zero(t, res.LinkCount())
	assertScenarioState(t, s)

	// Reset re-creates everything under fresh identifiers.
	before, err := s.GetRoleByName(ctx, role.Admin)
	require.NoError(t, err)
	res, err = s.Seed(ctx, scenarioCatalog(true))
	require.NoError(t, err)
	assert.Len(t, res.Roles, 2)
	assert.Equal(t, 6, res.LinkCount())
	after, err := s.GetRoleByName(ctx, role.Admin)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assertScenarioState(t, s)
}

func testSeedRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	kept := newPermission(t, s, "archive--posts")

	for _, reset := range []bool{false, true} {
		cat := scenarioCatalog(reset)
		cat.Links[role.Member] = append(cat.Links[role.Member], "purge--posts")

		_, err := s.Seed(ctx, cat)
		require.ErrorIs(t, err, store.ErrUnknownReference, "reset=%v", reset)

		roles, err := s.CountRoles(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, roles, "reset=%v", reset)

		perms, err := s.ListPermissions(ctx, nil)
		require.NoError(t, err)
		require.Len(t, perms, 1, "reset=%v", reset)
		assert.Equal(t, kept.ID, perms[0].ID)
	}

	// An unknown role name fails the same way.
	cat := scenarioCatalog(false)
	cat.Links["ghost"] = []string{"read--posts"}
	_, err := s.Seed(ctx, cat)
	require.ErrorIs(t, err, store.ErrUnknownReference)
	n, err := s.CountPermissions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
