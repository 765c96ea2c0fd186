package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

func seedPrincipal(t *testing.T, s *Store, kind principal.Kind, email string) *principal.Principal {
	t.Helper()
	p := &principal.Principal{Kind: kind, Email: email}
	if err := s.CreatePrincipal(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func seedRole(t *testing.T, s *Store, name string) *role.Role {
	t.Helper()
	r := &role.Role{Name: name}
	if err := s.CreateRole(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func seedPermission(t *testing.T, s *Store, name string) *permission.Permission {
	t.Helper()
	p := &permission.Permission{Name: name}
	if err := s.CreatePermission(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{Name: "editor", DisplayName: "Editor"}

	// Create
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID.IsNil() {
		t.Fatal("expected ID to be assigned on create")
	}
	if r.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}

	// Get
	got, err := s.GetRole(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "editor" {
		t.Fatalf("expected editor, got %s", got.Name)
	}

	// GetByName
	got, err = s.GetRoleByName(ctx, "editor")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID {
		t.Fatal("name lookup mismatch")
	}

	// Update
	got.Description = "Edits things"
	if err = s.UpdateRole(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRole(ctx, r.ID)
	if got.Description != "Edits things" {
		t.Fatal("update failed")
	}

	// Duplicate name
	if err := s.CreateRole(ctx, &role.Role{Name: "editor"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// List / Count
	seedRole(t, s, "viewer")
	list, _ := s.ListRoles(ctx, &role.ListFilter{Names: []string{"viewer"}})
	if len(list) != 1 {
		t.Fatalf("expected 1 role, got %d", len(list))
	}
	count, _ := s.CountRoles(ctx, &role.ListFilter{Limit: 1})
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	// Delete
	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRole(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateRespectsPresetIdentifier(t *testing.T) {
	ctx := context.Background()
	s := New()

	preset := id.New()
	r := &role.Role{Record: entity.Record{ID: preset}, Name: "preset"}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID != preset {
		t.Fatalf("expected preset ID %s, got %s", preset, r.ID)
	}
}

func TestUpdateRejectsProtectedFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRole(t, s, "editor")

	tests := []struct {
		name   string
		mutate func(r *role.Role)
		field  string
	}{
		{"name", func(r *role.Role) { r.Name = "renamed" }, role.FieldName},
		{"created_at", func(r *role.Role) { r.CreatedAt = r.CreatedAt.Add(-time.Hour) }, entity.FieldCreatedAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd, _ := s.GetRole(ctx, r.ID)
			tt.mutate(upd)
			err := s.UpdateRole(ctx, upd)
			if !errors.Is(err, entity.ErrImmutableField) {
				t.Fatalf("expected ErrImmutableField, got %v", err)
			}
			var ife *entity.ImmutableFieldError
			if !errors.As(err, &ife) || ife.Field != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
			stored, _ := s.GetRole(ctx, r.ID)
			if stored.Name != "editor" {
				t.Fatal("stored role changed after rejected update")
			}
		})
	}

	// Changing the identifier targets a different record entirely.
	upd, _ := s.GetRole(ctx, r.ID)
	upd.ID = id.New()
	if err := s.UpdateRole(ctx, upd); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestPrincipalKindIsProtected(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "a@example.com")

	p.Kind = principal.KindServiceAccount
	if err := s.UpdatePrincipal(ctx, p); !errors.Is(err, entity.ErrImmutableField) {
		t.Fatalf("expected ErrImmutableField, got %v", err)
	}
}

func TestPrincipalValidation(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreatePrincipal(ctx, &principal.Principal{Kind: "robot"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown kind, got %v", err)
	}
	if err := s.CreatePrincipal(ctx, &principal.Principal{Kind: principal.KindUser, Email: "nope"}); !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad email, got %v", err)
	}

	seedPrincipal(t, s, principal.KindUser, "a@example.com")
	got, err := s.GetPrincipalByEmail(ctx, principal.KindUser, "A@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "a@example.com" {
		t.Fatalf("unexpected principal %v", got)
	}
	if _, err := s.GetPrincipalByEmail(ctx, principal.KindServiceAccount, "a@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other kind, got %v", err)
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "")
	r := seedRole(t, s, "editor")

	for range 3 {
		if err := s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID, r.ID}); err != nil {
			t.Fatal(err)
		}
	}
	tuples, _ := s.ListPrincipalRoles(ctx, p.Ref())
	if len(tuples) != 1 {
		t.Fatalf("expected exactly 1 tuple, got %d", len(tuples))
	}
}

func TestAttachUnknownReferenceIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "")
	good := seedPermission(t, s, "read--posts")

	err := s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{good.ID, id.New()})
	if !errors.Is(err, store.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	direct, _ := s.ListPermissionsForPrincipal(ctx, p.Ref())
	if len(direct) != 0 {
		t.Fatalf("expected no grants after failed batch, got %d", len(direct))
	}

	// Wrong kind for an existing ID is also an unknown reference.
	err = s.AttachPrincipalPermissions(ctx, principal.ServiceAccount(p.ID), []id.PermissionID{good.ID})
	if !errors.Is(err, store.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference for kind mismatch, got %v", err)
	}

	if err := s.AttachRolePermissions(ctx, id.New(), []id.PermissionID{good.ID}); !errors.Is(err, store.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference for unknown role, got %v", err)
	}
}

func TestDetachAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "")

	if err := s.DetachPrincipalRoles(ctx, p.Ref(), []id.RoleID{id.New()}); err != nil {
		t.Fatal(err)
	}
	if err := s.DetachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{id.New()}); err != nil {
		t.Fatal(err)
	}
	if err := s.DetachRolePermissions(ctx, id.New(), []id.PermissionID{id.New()}); err != nil {
		t.Fatal(err)
	}
}

func TestGrantsAreKeyedByKind(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := seedPrincipal(t, s, principal.KindUser, "")
	r := seedRole(t, s, "ops")

	if err := s.AttachPrincipalRoles(ctx, user.Ref(), []id.RoleID{r.ID}); err != nil {
		t.Fatal(err)
	}
	roles, _ := s.ListRolesForPrincipal(ctx, principal.ServiceAccount(user.ID))
	if len(roles) != 0 {
		t.Fatalf("grant leaked across kinds: %d", len(roles))
	}
	roles, _ = s.ListRolesForPrincipal(ctx, principal.User(user.ID))
	if len(roles) != 1 {
		t.Fatalf("expected 1 role for user ref, got %d", len(roles))
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "")
	r := seedRole(t, s, "editor")
	perm := seedPermission(t, s, "update--posts")

	if err := s.AttachRolePermissions(ctx, r.ID, []id.PermissionID{perm.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.AttachPrincipalPermissions(ctx, p.Ref(), []id.PermissionID{perm.ID}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeletePermission(ctx, perm.ID); err != nil {
		t.Fatal(err)
	}
	if ids, _ := s.ListRolePermissions(ctx, r.ID); len(ids) != 0 {
		t.Fatalf("role still references deleted permission: %v", ids)
	}
	if direct, _ := s.ListPrincipalPermissions(ctx, p.Ref()); len(direct) != 0 {
		t.Fatal("principal still holds deleted permission")
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if holders, _ := s.ListRoleHolders(ctx, r.ID); len(holders) != 0 {
		t.Fatal("deleted role still has holders")
	}

	r2 := seedRole(t, s, "viewer")
	if err := s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r2.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeletePrincipal(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if holders, _ := s.ListRoleHolders(ctx, r2.ID); len(holders) != 0 {
		t.Fatal("deleted principal still holds role")
	}
}

func TestSetRolePermissions(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := seedRole(t, s, "editor")
	a := seedPermission(t, s, "create--posts")
	b := seedPermission(t, s, "read--posts")

	if err := s.SetRolePermissions(ctx, r.ID, []id.PermissionID{a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRolePermissions(ctx, r.ID, []id.PermissionID{b.ID}); err != nil {
		t.Fatal(err)
	}
	perms, _ := s.ListPermissionsByRole(ctx, r.ID)
	if len(perms) != 1 || perms[0].ID != b.ID {
		t.Fatalf("expected only read--posts, got %v", perms)
	}

	if err := s.SetRolePermissions(ctx, r.ID, []id.PermissionID{id.New()}); !errors.Is(err, store.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	perms, _ = s.ListPermissionsByRole(ctx, r.ID)
	if len(perms) != 1 {
		t.Fatal("failed set must leave previous permissions in place")
	}
}

func TestActivatePrincipal(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	p := seedPrincipal(t, s, principal.KindUser, "")
	member := seedRole(t, s, role.Member)

	if err := s.ActivatePrincipal(ctx, p.Ref(), fixed, []id.RoleID{member.ID}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetPrincipal(ctx, p.ID)
	if !got.Active || got.EmailVerifiedAt == nil || !got.EmailVerifiedAt.Equal(fixed) {
		t.Fatalf("principal not activated: %+v", got)
	}
	roles, _ := s.ListRolesForPrincipal(ctx, p.Ref())
	if len(roles) != 1 || roles[0].Name != role.Member {
		t.Fatalf("expected member role, got %v", roles)
	}

	// A missing role aborts everything.
	other := seedPrincipal(t, s, principal.KindUser, "")
	err := s.ActivatePrincipal(ctx, other.Ref(), fixed, []id.RoleID{member.ID, id.New()})
	if !errors.Is(err, store.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	got, _ = s.GetPrincipal(ctx, other.ID)
	if got.Active || got.EmailVerifiedAt != nil {
		t.Fatal("principal activated despite failed transaction")
	}
	if roles, _ := s.ListRolesForPrincipal(ctx, other.Ref()); len(roles) != 0 {
		t.Fatal("roles attached despite failed transaction")
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedPrincipal(t, s, principal.KindUser, "")
	r := seedRole(t, s, "editor")
	if err := s.AttachPrincipalRoles(ctx, p.Ref(), []id.RoleID{r.ID}); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountRoles(ctx, nil); n != 0 {
		t.Fatalf("expected no roles after reset, got %d", n)
	}
	if n, _ := s.CountPrincipals(ctx, nil); n != 0 {
		t.Fatalf("expected no principals after reset, got %d", n)
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	for _, name := range []string{"a", "b", "c", "d"} {
		seedPermission(t, s, name)
	}

	page, _ := s.ListPermissions(ctx, &permission.ListFilter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].Name != "b" || page[1].Name != "c" {
		t.Fatalf("unexpected page: %v", page)
	}
	if page, _ := s.ListPermissions(ctx, &permission.ListFilter{Offset: 10}); len(page) != 0 {
		t.Fatalf("expected empty page, got %d", len(page))
	}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
