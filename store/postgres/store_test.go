package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, store.ErrDuplicate},
		{"foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeForeignKeyViolation}), store.ErrUnknownReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err, "op"), tt.want)
		})
	}

	other := errors.New("connection reset")
	err := mapError(other, "op")
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mapError(nil, "op"))
}

func TestPrincipalModelMapping(t *testing.T) {
	verified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &principal.Principal{
		Kind:            principal.KindServiceAccount,
		FirstName:       "Build",
		LastName:        "Bot",
		Email:           "bot@example.com",
		Active:          true,
		EmailVerifiedAt: &verified,
	}
	p.ID = id.New()
	p.CreatedAt = verified.Add(-time.Hour)
	p.UpdatedAt = verified

	m := principalToModel(p)
	assert.Equal(t, "service_account", m.Kind)
	assert.Equal(t, p.ID.String(), m.ID)

	back := principalFromModel(m)
	require.Equal(t, p.ID, back.ID)
	assert.Equal(t, p.Ref(), back.Ref())
	assert.Equal(t, p.Email, back.Email)
	assert.True(t, back.Active)
	require.NotNil(t, back.EmailVerifiedAt)
	assert.True(t, verified.Equal(*back.EmailVerifiedAt))
}

func TestLinkModels(t *testing.T) {
	now := time.Now().UTC()
	ref := principal.User(id.New())
	roles := []id.RoleID{id.New(), id.New()}

	links := principalRoleModels(ref, roles, now)
	require.Len(t, links, 2)
	for i, l := range links {
		g := principalRoleFromModel(&l)
		assert.Equal(t, ref, g.Principal())
		assert.Equal(t, roles[i], g.RoleID)
	}

	rp := rolePermissionModels(roles[0], []id.PermissionID{id.New()}, now)
	require.Len(t, rp, 1)
	assert.Equal(t, roles[0].String(), rp[0].RoleID)
}
