// Package role defines the Role entity, the bootstrap role catalog, and the
// store interface covering roles and the role-to-permission relation.
package role

import (
	"github.com/xraph/charter/entity"
)

// Bootstrap role names. Every deployment has these two.
const (
	Member = "member"
	Admin  = "admin"
)

// FieldName is the attribute name of a role's unique name.
const FieldName = "name"

// Role is a named bundle of permissions that can be granted to principals.
type Role struct {
	entity.Record

	Name        string `json:"name" db:"name" validate:"required,max=255"`
	DisplayName string `json:"display_name,omitempty" db:"display_name" validate:"max=255"`
	Description string `json:"description,omitempty" db:"description" validate:"max=255"`
}

// ModelName implements entity.Model.
func (r *Role) ModelName() string { return "role" }

// ProtectedFields implements entity.Model. Grants and checks key on the
// name, so it cannot change once created.
func (r *Role) ProtectedFields() []string {
	return append(entity.DefaultProtectedFields(), FieldName)
}

// Attributes implements entity.Model.
func (r *Role) Attributes() map[string]any {
	attrs := r.BaseAttributes()
	attrs[FieldName] = r.Name
	attrs["display_name"] = r.DisplayName
	attrs["description"] = r.Description
	return attrs
}

// Definition describes a catalog role before it is persisted.
type Definition struct {
	Name        string
	DisplayName string
	Description string
}

// New builds an unsaved Role from the definition.
func (d Definition) New() *Role {
	return &Role{Name: d.Name, DisplayName: d.DisplayName, Description: d.Description}
}

// Bootstrap returns the catalog of roles every deployment must have.
func Bootstrap() []Definition {
	return []Definition{
		{Name: Member, DisplayName: "Member", Description: "Role assigned to member users."},
		{Name: Admin, DisplayName: "Admin", Description: "Role assigned to admin users."},
	}
}

// IsBootstrap reports whether name belongs to the bootstrap catalog.
func IsBootstrap(name string) bool {
	return name == Member || name == Admin
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	Names  []string `json:"names,omitempty"`
	Search string   `json:"search,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}
