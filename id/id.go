// Package id defines the identifier type shared by every Charter entity.
//
// Identifiers are random 128-bit UUIDs (version 4) rendered in their
// canonical hyphenated form. They carry no ordering and no entity prefix:
// the value itself is the only identity.
package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is the primary identifier type for all Charter entities.
// The zero value is Nil and reports IsNil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner uuid.UUID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New draws a fresh random identifier.
// It panics if the system entropy source fails, which uuid.New also does.
func New() ID {
	return ID{inner: uuid.New(), valid: true}
}

// FromUUID wraps an existing UUID. The nil UUID maps to Nil.
func FromUUID(u uuid.UUID) ID {
	if u == uuid.Nil {
		return Nil
	}
	return ID{inner: u, valid: true}
}

// Parse parses the canonical string form
// (e.g., "0f8fad5b-d9cb-469f-a165-70867728950e") into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return FromUUID(u), nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// PrincipalID identifies a user or service account.
type PrincipalID = ID

// RoleID identifies a role.
type RoleID = ID

// PermissionID identifies a permission.
type PermissionID = ID

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the canonical hyphenated form.
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// UUID returns the underlying UUID (uuid.Nil for the Nil ID).
func (i ID) UUID() uuid.UUID { return i.inner }

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}
		// Native uuid columns may hand back the raw 16 bytes.
		if len(v) == 16 {
			u, err := uuid.FromBytes(v)
			if err != nil {
				return fmt.Errorf("id: scan bytes: %w", err)
			}
			*i = FromUUID(u)

			return nil
		}

		return i.UnmarshalText(v)
	case [16]byte:
		*i = FromUUID(uuid.UUID(v))

		return nil
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
