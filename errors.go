package charter

import (
	"errors"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/store"
)

var (
	// ErrAccessDenied is returned by Enforce when a principal lacks a permission.
	ErrAccessDenied = errors.New("charter: access denied")

	// ErrStoreRequired is returned by NewEngine when no store is configured.
	ErrStoreRequired = errors.New("charter: store is required")

	// ErrInvalidPrincipalKind is returned when a principal reference carries
	// a kind outside the closed enumeration.
	ErrInvalidPrincipalKind = errors.New("charter: invalid principal kind")

	// ErrActivationWiring is returned when the activation and default role
	// attachment of a verified principal cannot be committed together. The
	// principal remains unverified and the step may be retried.
	ErrActivationWiring = errors.New("charter: activation wiring failed")

	// ErrImmutableFieldViolation is returned when an update changes the
	// identifier or a protected field.
	ErrImmutableFieldViolation = entity.ErrImmutableField

	// ErrUnknownEntityReference is returned when a grant references a
	// principal, role, or permission that does not exist.
	ErrUnknownEntityReference = store.ErrUnknownReference

	// ErrNotFound is returned when an entity lookup finds nothing.
	ErrNotFound = store.ErrNotFound
)
