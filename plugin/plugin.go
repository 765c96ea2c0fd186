// Package plugin defines the plugin system for Charter.
// Plugins are notified of lifecycle events (role created, roles attached,
// principal verified, etc.) and can react with logging, metrics, or audit.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role and its grants are deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// PermissionCreated is called after a permission is created.
type PermissionCreated interface {
	OnPermissionCreated(ctx context.Context, p *permission.Permission) error
}

// PermissionDeleted is called after a permission and its grants are deleted.
type PermissionDeleted interface {
	OnPermissionDeleted(ctx context.Context, permID id.PermissionID) error
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// RolesAttached is called after roles are granted to a principal.
type RolesAttached interface {
	OnRolesAttached(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error
}

// RolesDetached is called after roles are revoked from a principal.
type RolesDetached interface {
	OnRolesDetached(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error
}

// PermissionsGranted is called after permissions are granted directly to a principal.
type PermissionsGranted interface {
	OnPermissionsGranted(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error
}

// PermissionsRevoked is called after direct permissions are revoked from a principal.
type PermissionsRevoked interface {
	OnPermissionsRevoked(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error
}

// RolePermissionsAttached is called after permissions are attached to a role.
type RolePermissionsAttached interface {
	OnRolePermissionsAttached(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error
}

// RolePermissionsDetached is called after permissions are detached from a role.
type RolePermissionsDetached interface {
	OnRolePermissionsDetached(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error
}

// ──────────────────────────────────────────────────
// Principal lifecycle hooks
// ──────────────────────────────────────────────────

// PrincipalVerified is called after a principal is activated and wired to
// its default roles.
type PrincipalVerified interface {
	OnPrincipalVerified(ctx context.Context, p *principal.Principal) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
