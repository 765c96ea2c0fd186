// Package entity provides the identity record embedded by every persisted
// Charter entity: identifier assignment on creation, protected-field
// enforcement on update, and struct validation before commit.
package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/charter/id"
)

// Field names shared by every entity.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// ErrImmutableField is returned when an update changes the identifier or
// any protected field of an existing entity.
var ErrImmutableField = errors.New("charter: immutable field modified")

// ImmutableFieldError names the entity and field an update tried to change.
type ImmutableFieldError struct {
	Model string
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("charter: %s.%s cannot be modified", e.Model, e.Field)
}

// Unwrap lets errors.Is match ErrImmutableField.
func (e *ImmutableFieldError) Unwrap() error { return ErrImmutableField }

// Record is the identity record: a random identifier plus creation and
// modification timestamps.
type Record struct {
	ID        id.ID     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Base returns the record itself so embedding types satisfy Model.
func (r *Record) Base() *Record { return r }

// AssignIdentifierIfMissing draws a fresh identifier when none is set.
// It reports whether one was generated.
func (r *Record) AssignIdentifierIfMissing() bool {
	if !r.ID.IsNil() {
		return false
	}
	r.ID = id.New()
	return true
}

// Model is implemented by every persisted entity.
type Model interface {
	// Base exposes the embedded identity record.
	Base() *Record

	// ModelName is the short entity name used in errors ("role").
	ModelName() string

	// ProtectedFields lists attribute names that may never change after
	// creation. The identifier is always protected and need not be listed.
	ProtectedFields() []string

	// Attributes returns the entity's current values keyed by field name.
	Attributes() map[string]any
}

// DefaultProtectedFields is the protected set shared by all entities.
func DefaultProtectedFields() []string {
	return []string{FieldCreatedAt}
}

// ValidateUpdate compares a pending update against the stored entity and
// rejects a changed identifier or protected field. The identifier is
// checked first.
func ValidateUpdate(old, updated Model) error {
	if old.Base().ID != updated.Base().ID {
		return &ImmutableFieldError{Model: updated.ModelName(), Field: FieldID}
	}

	before := old.Attributes()
	after := updated.Attributes()
	for _, f := range updated.ProtectedFields() {
		if !sameValue(before[f], after[f]) {
			return &ImmutableFieldError{Model: updated.ModelName(), Field: f}
		}
	}
	return nil
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// BaseAttributes returns the identity-record fields for use inside an
// entity's Attributes implementation.
func (r *Record) BaseAttributes() map[string]any {
	return map[string]any{
		FieldID:        r.ID,
		FieldCreatedAt: r.CreatedAt,
		FieldUpdatedAt: r.UpdatedAt,
	}
}
