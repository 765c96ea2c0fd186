package charter

import (
	"context"

	"github.com/xraph/charter/principal"
)

// Authorizer binds one principal to the engine so callers can ask
// questions about it without repeating the reference.
type Authorizer struct {
	eng *Engine
	ref principal.Ref
}

// For returns an Authorizer for the principal.
func (e *Engine) For(ref principal.Ref) *Authorizer {
	return &Authorizer{eng: e, ref: ref}
}

// Ref returns the bound principal.
func (a *Authorizer) Ref() principal.Ref { return a.ref }

// IsActive reports whether the principal is activated.
func (a *Authorizer) IsActive(ctx context.Context) (bool, error) {
	return a.eng.IsActive(ctx, a.ref)
}

// IsAdmin reports whether the principal is active and an admin.
func (a *Authorizer) IsAdmin(ctx context.Context) (bool, error) {
	return a.eng.IsAdmin(ctx, a.ref)
}

// IsMember reports whether the principal is active and a member.
func (a *Authorizer) IsMember(ctx context.Context) (bool, error) {
	return a.eng.IsMember(ctx, a.ref)
}

// HasRole reports whether the principal holds the named role.
func (a *Authorizer) HasRole(ctx context.Context, name string) (bool, error) {
	return a.eng.HasRole(ctx, a.ref, name)
}

// HasPermission reports whether the named permission is effective.
func (a *Authorizer) HasPermission(ctx context.Context, name string) (bool, error) {
	return a.eng.HasPermission(ctx, a.ref, name)
}

// Enforce returns ErrAccessDenied unless the permission is effective.
func (a *Authorizer) Enforce(ctx context.Context, name string) error {
	return a.eng.Enforce(ctx, a.ref, name)
}
