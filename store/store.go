// Package store defines the aggregate persistence interface. Each entity
// package (principal, role, permission, grant) defines its own store
// interface; the composite Store composes them all.
// Backends: Postgres, SQLite, and Memory.
package store

import (
	"context"
	"errors"

	"github.com/xraph/charter/grant"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

var (
	// ErrNotFound is wrapped by every backend when an entity does not exist.
	ErrNotFound = errors.New("charter: not found")

	// ErrUnknownReference is wrapped when a grant references a principal,
	// role, or permission that does not exist.
	ErrUnknownReference = errors.New("charter: unknown entity reference")

	// ErrDuplicate is wrapped when a create collides with a unique name or email.
	ErrDuplicate = errors.New("charter: duplicate entity")
)

// Store is the aggregate persistence interface.
// A single backend (postgres, sqlite, memory) implements all of them.
type Store interface {
	principal.Store
	role.Store
	permission.Store
	grant.Store

	// Reset deletes every grant, role, permission, and principal.
	// It is destructive and intended for reseeding.
	Reset(ctx context.Context) error

	// Seed applies a catalog atomically: on error nothing it wrote,
	// including the optional reset, is kept.
	Seed(ctx context.Context, cat *Catalog) (*SeedResult, error)

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
