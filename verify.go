package charter

import (
	"context"
	"fmt"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// OnPrincipalVerified is the single entry point an email-verification flow
// calls on success. In one store transaction it sets the activation flag
// and attaches the configured verification roles (member by default).
// Either both persist or neither does; on failure the returned error wraps
// ErrActivationWiring and p is left unchanged.
//
// Calling it again for an already-verified principal re-applies the wiring
// idempotently.
func (e *Engine) OnPrincipalVerified(ctx context.Context, p *principal.Principal) error {
	if p == nil || p.ID.IsNil() {
		return fmt.Errorf("%w: principal has no identifier", ErrActivationWiring)
	}
	ref := p.Ref()
	if err := checkRef(ref); err != nil {
		return fmt.Errorf("%w: %w", ErrActivationWiring, err)
	}

	names := e.config.verificationRoles()
	roleIDs := make([]id.RoleID, 0, len(names))
	for _, name := range names {
		r, err := e.store.GetRoleByName(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: resolve role %q: %w", ErrActivationWiring, name, err)
		}
		roleIDs = append(roleIDs, r.ID)
	}

	verifiedAt := entity.Now(e.now())
	if err := e.store.ActivatePrincipal(ctx, ref, verifiedAt, roleIDs); err != nil {
		return fmt.Errorf("%w: %w", ErrActivationWiring, err)
	}

	p.Active = true
	p.EmailVerifiedAt = &verifiedAt
	e.invalidate(ctx, ref)
	if e.plugins != nil {
		e.plugins.EmitPrincipalVerified(ctx, p)
	}
	return nil
}
