package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
)

type widget struct {
	entity.Record
	Name  string `validate:"required,max=10"`
	Color string
}

func (w *widget) ModelName() string { return "widget" }

func (w *widget) ProtectedFields() []string {
	return append(entity.DefaultProtectedFields(), "name")
}

func (w *widget) Attributes() map[string]any {
	attrs := w.BaseAttributes()
	attrs["name"] = w.Name
	attrs["color"] = w.Color
	return attrs
}

func TestAssignIdentifierIfMissing(t *testing.T) {
	var r entity.Record
	assert.True(t, r.AssignIdentifierIfMissing())
	assigned := r.ID
	assert.False(t, assigned.IsNil())

	assert.False(t, r.AssignIdentifierIfMissing())
	assert.Equal(t, assigned, r.ID)
}

func TestBeforeCreate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	w := &widget{Name: "gear"}

	require.NoError(t, entity.BeforeCreate(w, now))
	assert.False(t, w.ID.IsNil())
	assert.Equal(t, now.Truncate(time.Microsecond), w.CreatedAt)
	assert.Equal(t, w.CreatedAt, w.UpdatedAt)

	preset := id.New()
	w2 := &widget{Record: entity.Record{ID: preset}, Name: "cog"}
	require.NoError(t, entity.BeforeCreate(w2, now))
	assert.Equal(t, preset, w2.ID)
}

func TestBeforeCreateValidates(t *testing.T) {
	err := entity.BeforeCreate(&widget{}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalid)

	err = entity.BeforeCreate(&widget{Name: "much-too-long-name"}, time.Now())
	assert.ErrorIs(t, err, entity.ErrInvalid)
}

func TestValidateUpdate(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &widget{Record: entity.Record{ID: id.New(), CreatedAt: created}, Name: "gear", Color: "red"}

	tests := []struct {
		name   string
		mutate func(w *widget)
		field  string
	}{
		{"mutable field", func(w *widget) { w.Color = "blue" }, ""},
		{"same instant other zone", func(w *widget) { w.CreatedAt = created.In(time.FixedZone("x", 3600)) }, ""},
		{"identifier", func(w *widget) { w.ID = id.New() }, entity.FieldID},
		{"identifier before protected", func(w *widget) { w.ID = id.New(); w.Name = "x" }, entity.FieldID},
		{"created_at", func(w *widget) { w.CreatedAt = created.Add(time.Second) }, entity.FieldCreatedAt},
		{"protected name", func(w *widget) { w.Name = "cog" }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := *old
			tt.mutate(&updated)
			err := entity.ValidateUpdate(old, &updated)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, entity.ErrImmutableField)
			var ife *entity.ImmutableFieldError
			require.True(t, errors.As(err, &ife))
			assert.Equal(t, tt.field, ife.Field)
			assert.Equal(t, "widget", ife.Model)
		})
	}
}

func TestBeforeUpdateStampsModification(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := &widget{Record: entity.Record{ID: id.New(), CreatedAt: created, UpdatedAt: created}, Name: "gear"}
	updated := *old
	updated.Color = "green"

	later := created.Add(time.Hour)
	require.NoError(t, entity.BeforeUpdate(old, &updated, later))
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, created, updated.CreatedAt)
}
