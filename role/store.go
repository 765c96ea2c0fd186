package role

import (
	"context"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// Store defines persistence operations for roles and the role-to-permission
// relation.
type Store interface {
	// CreateRole persists a new role, assigning an ID if missing.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// UpdateRole persists changes to a role. Protected fields may not change.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role and every grant referencing it.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// ListRolesForPrincipal returns the roles directly held by a principal.
	ListRolesForPrincipal(ctx context.Context, ref principal.Ref) ([]*Role, error)

	// ListRolePermissions returns permission IDs attached to a role.
	ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error)

	// AttachRolePermissions links permissions to a role. Already-linked
	// pairs are ignored; an unknown ID fails the whole batch.
	AttachRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error

	// DetachRolePermissions unlinks permissions from a role. Absent pairs
	// are ignored.
	DetachRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error

	// SetRolePermissions replaces all permissions for a role.
	SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error
}
