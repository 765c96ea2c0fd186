package grant

import (
	"context"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// Store defines persistence operations for the principal-side relations.
//
// Attach operations are idempotent and atomic per call: existing tuples are
// left untouched and an unknown principal, role, or permission fails the
// whole batch with store.ErrUnknownReference. Detach operations ignore
// tuples that do not exist.
type Store interface {
	// AttachPrincipalRoles grants roles to a principal.
	AttachPrincipalRoles(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error

	// DetachPrincipalRoles revokes roles from a principal.
	DetachPrincipalRoles(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error

	// AttachPrincipalPermissions grants permissions directly to a principal.
	AttachPrincipalPermissions(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error

	// DetachPrincipalPermissions revokes direct permissions from a principal.
	DetachPrincipalPermissions(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error

	// ListPrincipalRoles returns the role tuples held by a principal.
	ListPrincipalRoles(ctx context.Context, ref principal.Ref) ([]*PrincipalRole, error)

	// ListPrincipalPermissions returns the direct permission tuples of a principal.
	ListPrincipalPermissions(ctx context.Context, ref principal.Ref) ([]*PrincipalPermission, error)

	// ListRoleHolders returns every principal holding a role.
	ListRoleHolders(ctx context.Context, roleID id.RoleID) ([]principal.Ref, error)
}
