package principal

import (
	"context"
	"time"

	"github.com/xraph/charter/id"
)

// Store defines persistence operations for principals.
type Store interface {
	// CreatePrincipal persists a new principal, assigning an ID if missing.
	CreatePrincipal(ctx context.Context, p *Principal) error

	// GetPrincipal retrieves a principal by ID.
	GetPrincipal(ctx context.Context, principalID id.PrincipalID) (*Principal, error)

	// GetPrincipalByEmail retrieves a principal of the given kind by email.
	GetPrincipalByEmail(ctx context.Context, kind Kind, email string) (*Principal, error)

	// UpdatePrincipal persists changes. Protected fields may not change and
	// activation is rejected with ErrActivationManaged.
	UpdatePrincipal(ctx context.Context, p *Principal) error

	// DeletePrincipal removes a principal and every grant it holds.
	DeletePrincipal(ctx context.Context, principalID id.PrincipalID) error

	// ListPrincipals returns principals matching the filter.
	ListPrincipals(ctx context.Context, filter *ListFilter) ([]*Principal, error)

	// CountPrincipals returns the number of principals matching the filter.
	CountPrincipals(ctx context.Context, filter *ListFilter) (int64, error)

	// ActivatePrincipal marks the principal active and verified at
	// verifiedAt and attaches roleIDs, all in one transaction. Either every
	// change is applied or none is.
	ActivatePrincipal(ctx context.Context, ref Ref, verifiedAt time.Time, roleIDs []id.RoleID) error
}
