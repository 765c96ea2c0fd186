// Package permission defines the Permission entity, its naming convention,
// and its store interface.
package permission

import (
	"strings"

	"github.com/xraph/charter/entity"
)

// Separator joins action and resource in a permission name ("create--users").
const Separator = "--"

// FieldName is the attribute name of a permission's unique name.
const FieldName = "name"

// NameFor builds the conventional permission name for an action on a resource.
func NameFor(action, resource string) string {
	return action + Separator + resource
}

// Split breaks a conventional name into action and resource. ok is false when
// the name does not follow the convention.
func Split(name string) (action, resource string, ok bool) {
	action, resource, ok = strings.Cut(name, Separator)
	if !ok || action == "" || resource == "" {
		return "", "", false
	}
	return action, resource, true
}

// Permission is a named capability that can be granted directly to a
// principal or bundled into a role.
type Permission struct {
	entity.Record

	Name        string `json:"name" db:"name" validate:"required,max=255"`
	DisplayName string `json:"display_name,omitempty" db:"display_name" validate:"max=255"`
	Description string `json:"description,omitempty" db:"description" validate:"max=255"`
	Action      string `json:"action,omitempty" db:"action" validate:"max=255"`
	Resource    string `json:"resource,omitempty" db:"resource" validate:"max=255"`
}

// ModelName implements entity.Model.
func (p *Permission) ModelName() string { return "permission" }

// ProtectedFields implements entity.Model.
func (p *Permission) ProtectedFields() []string {
	return append(entity.DefaultProtectedFields(), FieldName)
}

// Attributes implements entity.Model.
func (p *Permission) Attributes() map[string]any {
	attrs := p.BaseAttributes()
	attrs[FieldName] = p.Name
	attrs["display_name"] = p.DisplayName
	attrs["description"] = p.Description
	attrs["action"] = p.Action
	attrs["resource"] = p.Resource
	return attrs
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	Names    []string `json:"names,omitempty"`
	Resource string   `json:"resource,omitempty"`
	Action   string   `json:"action,omitempty"`
	Search   string   `json:"search,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}
