package permission

import (
	"context"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// Store defines persistence operations for permissions.
type Store interface {
	// CreatePermission persists a new permission, assigning an ID if missing.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByName retrieves a permission by its unique name.
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)

	// UpdatePermission persists changes. Protected fields may not change.
	UpdatePermission(ctx context.Context, p *Permission) error

	// DeletePermission removes a permission and every grant referencing it.
	DeletePermission(ctx context.Context, permID id.PermissionID) error

	// ListPermissions returns permissions matching the filter.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)

	// ListPermissionsByRole returns all permissions attached to a role.
	ListPermissionsByRole(ctx context.Context, roleID id.RoleID) ([]*Permission, error)

	// ListPermissionsForPrincipal returns permissions granted directly to a
	// principal. Permissions reachable through roles are not included.
	ListPermissionsForPrincipal(ctx context.Context, ref principal.Ref) ([]*Permission, error)
}
