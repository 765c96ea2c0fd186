package charter

import (
	"context"

	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// Grants is a resolved snapshot of everything a principal holds.
type Grants struct {
	Roles     []*role.Role             `json:"roles"`
	Direct    []*permission.Permission `json:"direct"`
	Effective []*permission.Permission `json:"effective"`
}

// HasRole reports whether the snapshot contains a role with this exact name.
func (g *Grants) HasRole(name string) bool {
	for _, r := range g.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the effective set contains this exact name.
func (g *Grants) HasPermission(name string) bool {
	for _, p := range g.Effective {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Cache memoises resolved grants. A cache is only consulted when the caller
// attaches it to a request context with WithCache; the engine never holds
// one itself.
type Cache interface {
	// Get returns cached grants for a principal, if available.
	Get(ctx context.Context, ref principal.Ref) (*Grants, bool)

	// Set stores resolved grants for a principal.
	Set(ctx context.Context, ref principal.Ref, g *Grants)

	// InvalidatePrincipal drops the entry for one principal.
	InvalidatePrincipal(ctx context.Context, ref principal.Ref)

	// Purge drops every entry. Used when a role's permissions change.
	Purge(ctx context.Context)
}
