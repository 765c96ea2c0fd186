// Package principal defines the acting identity (a user or service account)
// and its store interface.
package principal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
)

// Kind discriminates the principal type. The set of kinds is closed.
type Kind string

const (
	// KindUser is an interactive human account.
	KindUser Kind = "user"
	// KindServiceAccount is a non-interactive machine account.
	KindServiceAccount Kind = "service_account"
)

// Kinds returns every valid kind.
func Kinds() []Kind { return []Kind{KindUser, KindServiceAccount} }

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindServiceAccount:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("principal: unknown kind %q", s)
	}
	return k, nil
}

// Field names beyond the identity record.
const (
	FieldKind            = "kind"
	FieldEmail           = "email"
	FieldActive          = "active"
	FieldEmailVerifiedAt = "email_verified_at"
)

// ErrActivationManaged is returned when a generic update tries to activate
// a principal or rewrite its verification time. Activation goes through
// Store.ActivatePrincipal so the default roles are attached with it.
var ErrActivationManaged = errors.New("charter: activation is managed by ActivatePrincipal")

// Principal is an identity that can be granted roles and permissions.
// Credentials and authentication live elsewhere.
type Principal struct {
	entity.Record

	Kind            Kind       `json:"kind" db:"kind" validate:"required,oneof=user service_account"`
	FirstName       string     `json:"first_name,omitempty" db:"first_name" validate:"max=255"`
	LastName        string     `json:"last_name,omitempty" db:"last_name" validate:"max=255"`
	Email           string     `json:"email,omitempty" db:"email" validate:"omitempty,email,max=255"`
	Active          bool       `json:"active" db:"active"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty" db:"email_verified_at"`
}

// Ref returns the polymorphic reference used by grant tuples.
func (p *Principal) Ref() Ref { return Ref{ID: p.ID, Kind: p.Kind} }

// FullName joins first and last name.
func (p *Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ModelName implements entity.Model.
func (p *Principal) ModelName() string { return "principal" }

// ProtectedFields implements entity.Model. A principal can never change kind.
func (p *Principal) ProtectedFields() []string {
	return append(entity.DefaultProtectedFields(), FieldKind)
}

// Attributes implements entity.Model.
func (p *Principal) Attributes() map[string]any {
	attrs := p.BaseAttributes()
	attrs[FieldKind] = p.Kind
	attrs["first_name"] = p.FirstName
	attrs["last_name"] = p.LastName
	attrs[FieldEmail] = p.Email
	attrs[FieldActive] = p.Active
	attrs[FieldEmailVerifiedAt] = p.EmailVerifiedAt
	return attrs
}

// CheckActivation rejects an update that would turn an inactive principal
// active or change its verification time. Deactivation is allowed.
func CheckActivation(old, updated *Principal) error {
	if !old.Active && updated.Active {
		return fmt.Errorf("principal %s: %w", old.ID, ErrActivationManaged)
	}
	if !sameTime(old.EmailVerifiedAt, updated.EmailVerifiedAt) {
		return fmt.Errorf("principal %s: %s: %w", old.ID, FieldEmailVerifiedAt, ErrActivationManaged)
	}
	return nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Ref is the (id, kind) pair every principal-side grant is keyed by.
type Ref struct {
	ID   id.PrincipalID `json:"id"`
	Kind Kind           `json:"kind"`
}

// User builds a reference to a user principal.
func User(pid id.PrincipalID) Ref { return Ref{ID: pid, Kind: KindUser} }

// ServiceAccount builds a reference to a service-account principal.
func ServiceAccount(pid id.PrincipalID) Ref { return Ref{ID: pid, Kind: KindServiceAccount} }

func (r Ref) String() string { return string(r.Kind) + ":" + r.ID.String() }

// ListFilter contains filters for listing principals.
type ListFilter struct {
	Kind   Kind   `json:"kind,omitempty"`
	Active *bool  `json:"active,omitempty"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
