package entity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned when an entity fails struct validation.
var ErrInvalid = errors.New("charter: invalid entity")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate runs struct-tag validation on an entity.
func Validate(m Model) error {
	if err := validatorInstance().Struct(m); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, m.ModelName(), err)
	}
	return nil
}

// Now returns t in UTC truncated to microseconds, the precision every
// backend can round-trip.
func Now(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// BeforeCreate prepares a new entity for persistence: it assigns an
// identifier when missing, stamps timestamps not already set, and validates.
func BeforeCreate(m Model, now time.Time) error {
	r := m.Base()
	r.AssignIdentifierIfMissing()
	now = Now(now)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return Validate(m)
}

// BeforeUpdate checks a pending update against the stored entity, validates
// it, and stamps the modification time.
func BeforeUpdate(old, updated Model, now time.Time) error {
	if err := ValidateUpdate(old, updated); err != nil {
		return err
	}
	if err := Validate(updated); err != nil {
		return err
	}
	updated.Base().UpdatedAt = Now(now)
	return nil
}
