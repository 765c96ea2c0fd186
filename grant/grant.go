// Package grant defines the relation tuples that link principals to roles
// and permissions, and the store interface for the principal-side
// relations. The role-to-permission relation lives with role.Store.
package grant

import (
	"time"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// Relation names one of the three grant relations.
type Relation string

const (
	// RelationPrincipalRole links a principal to a role.
	RelationPrincipalRole Relation = "principal_role"
	// RelationPrincipalPermission links a principal directly to a permission.
	RelationPrincipalPermission Relation = "principal_permission"
	// RelationRolePermission links a role to a permission.
	RelationRolePermission Relation = "role_permission"
)

// PrincipalRole records that a principal holds a role.
// Uniqueness key: (PrincipalID, PrincipalKind, RoleID).
type PrincipalRole struct {
	PrincipalID   id.PrincipalID `json:"principal_id" db:"principal_id"`
	PrincipalKind principal.Kind `json:"principal_kind" db:"principal_kind"`
	RoleID        id.RoleID      `json:"role_id" db:"role_id"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Principal returns the holder reference.
func (g PrincipalRole) Principal() principal.Ref {
	return principal.Ref{ID: g.PrincipalID, Kind: g.PrincipalKind}
}

// PrincipalPermission records a permission granted directly to a principal.
// Uniqueness key: (PrincipalID, PrincipalKind, PermissionID).
type PrincipalPermission struct {
	PrincipalID   id.PrincipalID  `json:"principal_id" db:"principal_id"`
	PrincipalKind principal.Kind  `json:"principal_kind" db:"principal_kind"`
	PermissionID  id.PermissionID `json:"permission_id" db:"permission_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Principal returns the holder reference.
func (g PrincipalPermission) Principal() principal.Ref {
	return principal.Ref{ID: g.PrincipalID, Kind: g.PrincipalKind}
}

// RolePermission records that a role bundles a permission.
// Uniqueness key: (RoleID, PermissionID).
type RolePermission struct {
	RoleID       id.RoleID       `json:"role_id" db:"role_id"`
	PermissionID id.PermissionID `json:"permission_id" db:"permission_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Dedupe returns ids with duplicates and Nil values removed, preserving
// first-seen order.
func Dedupe(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if v.IsNil() {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
