// Package charter provides identity-scoped role and permission
// authorization for Go.
//
// Principals (users, service accounts) hold roles and direct permissions;
// roles bundle permissions. The Engine answers membership questions by
// unioning direct and role-inherited grants, reading the store fresh on
// every call unless the caller opts a request into a cache.
//
//	eng, err := charter.NewEngine(
//	    charter.WithStore(memory.New()),
//	)
//	ok, err := eng.HasPermission(ctx, principal.User(userID), "create--posts")
package charter

import (
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// ID is the primary identifier type for all Charter entities.
type ID = id.ID

// Ref identifies a principal by ID and kind.
type Ref = principal.Ref
