package store

import (
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/role"
)

// Catalog is the set of roles and permissions a Seed call makes present.
// Entities are matched by name; existing ones are left untouched.
type Catalog struct {
	// Reset wipes every entity and grant before seeding, inside the same
	// unit of work.
	Reset bool

	Roles       []*role.Role
	Permissions []*permission.Permission

	// Links maps a role name onto the permission names it must carry.
	// Every name must resolve to an existing or seeded entity.
	Links map[string][]string
}

// SeedResult reports what a Seed call created.
type SeedResult struct {
	Roles       []*role.Role
	Permissions []*permission.Permission

	// Links holds the permissions newly attached to each role.
	Links map[id.RoleID][]id.PermissionID
}

// LinkCount is the number of role-permission links the call attached.
func (r *SeedResult) LinkCount() int {
	n := 0
	for _, perms := range r.Links {
		n += len(perms)
	}
	return n
}
