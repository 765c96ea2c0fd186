package charter

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
)

// Resolution reads the store on every call. When the context carries a
// Cache (see WithCache) the full grant snapshot is resolved once and reused.

// Grants resolves everything a principal holds. An unknown principal
// resolves to an empty snapshot.
func (e *Engine) Grants(ctx context.Context, ref principal.Ref) (*Grants, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	c := CacheFromContext(ctx)
	if c != nil {
		if g, ok := c.Get(ctx, ref); ok {
			return g, nil
		}
	}
	g, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Set(ctx, ref, g)
	}
	return g, nil
}

func (e *Engine) resolve(ctx context.Context, ref principal.Ref) (*Grants, error) {
	roles, err := e.store.ListRolesForPrincipal(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("charter: roles of %s: %w", ref, err)
	}
	direct, err := e.store.ListPermissionsForPrincipal(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("charter: permissions of %s: %w", ref, err)
	}

	seen := make(map[id.PermissionID]struct{}, len(direct))
	effective := make([]*permission.Permission, 0, len(direct))
	add := func(perms []*permission.Permission) {
		for _, p := range perms {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			effective = append(effective, p)
		}
	}
	add(direct)
	for _, r := range roles {
		perms, err := e.store.ListPermissionsByRole(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("charter: permissions of role %s: %w", r.Name, err)
		}
		add(perms)
	}

	return &Grants{Roles: roles, Direct: direct, Effective: effective}, nil
}

// RolesOf returns the roles a principal holds directly.
func (e *Engine) RolesOf(ctx context.Context, ref principal.Ref) ([]*role.Role, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	if CacheFromContext(ctx) != nil {
		g, err := e.Grants(ctx, ref)
		if err != nil {
			return nil, err
		}
		return g.Roles, nil
	}
	roles, err := e.store.ListRolesForPrincipal(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("charter: roles of %s: %w", ref, err)
	}
	return roles, nil
}

// DirectPermissionsOf returns the permissions granted to a principal
// without going through a role.
func (e *Engine) DirectPermissionsOf(ctx context.Context, ref principal.Ref) ([]*permission.Permission, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	if CacheFromContext(ctx) != nil {
		g, err := e.Grants(ctx, ref)
		if err != nil {
			return nil, err
		}
		return g.Direct, nil
	}
	perms, err := e.store.ListPermissionsForPrincipal(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("charter: permissions of %s: %w", ref, err)
	}
	return perms, nil
}

// PermissionsOf returns the permissions bundled into a role.
func (e *Engine) PermissionsOf(ctx context.Context, roleID id.RoleID) ([]*permission.Permission, error) {
	perms, err := e.store.ListPermissionsByRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("charter: permissions of role %s: %w", roleID, err)
	}
	return perms, nil
}

// EffectivePermissions returns the union of a principal's direct
// permissions and those of every role it holds, deduplicated by ID.
func (e *Engine) EffectivePermissions(ctx context.Context, ref principal.Ref) ([]*permission.Permission, error) {
	g, err := e.Grants(ctx, ref)
	if err != nil {
		return nil, err
	}
	return g.Effective, nil
}

// HasRole reports whether a principal holds the role with exactly this name.
func (e *Engine) HasRole(ctx context.Context, ref principal.Ref, name string) (bool, error) {
	roles, err := e.RolesOf(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether a principal holds at least one of the roles.
func (e *Engine) HasAnyRole(ctx context.Context, ref principal.Ref, names ...string) (bool, error) {
	roles, err := e.RolesOf(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		for _, n := range names {
			if r.Name == n {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission reports whether the permission is in the principal's
// effective set.
func (e *Engine) HasPermission(ctx context.Context, ref principal.Ref, name string) (bool, error) {
	g, err := e.Grants(ctx, ref)
	if err != nil {
		return false, err
	}
	return g.HasPermission(name), nil
}

// HasAnyPermission reports whether at least one of the permissions is
// effective for the principal.
func (e *Engine) HasAnyPermission(ctx context.Context, ref principal.Ref, names ...string) (bool, error) {
	g, err := e.Grants(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if g.HasPermission(n) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether every permission is effective for the
// principal. An empty list is trivially satisfied.
func (e *Engine) HasAllPermissions(ctx context.Context, ref principal.Ref, names ...string) (bool, error) {
	g, err := e.Grants(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if !g.HasPermission(n) {
			return false, nil
		}
	}
	return true, nil
}

// Enforce returns ErrAccessDenied unless the principal holds the permission.
func (e *Engine) Enforce(ctx context.Context, ref principal.Ref, name string) error {
	ok, err := e.HasPermission(ctx, ref, name)
	if err != nil {
		return fmt.Errorf("charter: enforce: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %q", ErrAccessDenied, ref, name)
	}
	return nil
}

// IsActive reports whether the principal exists with this kind and its
// activation flag is set. It always reads the stored principal.
func (e *Engine) IsActive(ctx context.Context, ref principal.Ref) (bool, error) {
	if err := checkRef(ref); err != nil {
		return false, err
	}
	p, err := e.store.GetPrincipal(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("charter: load %s: %w", ref, err)
	}
	return p.Kind == ref.Kind && p.Active, nil
}

// IsAdmin reports whether the principal is active and holds the admin role.
func (e *Engine) IsAdmin(ctx context.Context, ref principal.Ref) (bool, error) {
	return e.activeWithRole(ctx, ref, e.config.adminRole())
}

// IsMember reports whether the principal is active and holds the member role.
func (e *Engine) IsMember(ctx context.Context, ref principal.Ref) (bool, error) {
	return e.activeWithRole(ctx, ref, e.config.memberRole())
}

func (e *Engine) activeWithRole(ctx context.Context, ref principal.Ref, name string) (bool, error) {
	active, err := e.IsActive(ctx, ref)
	if err != nil || !active {
		return false, err
	}
	return e.HasRole(ctx, ref, name)
}
