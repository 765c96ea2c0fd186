package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/forge"
	forgehttp "github.com/xraph/go-utils/http"

	"github.com/xraph/charter"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/memory"
)

var errBackend = errors.New("backend unavailable")

// brokenStore fails every read the guards depend on.
type brokenStore struct{ *memory.Store }

func (brokenStore) GetPrincipal(context.Context, id.PrincipalID) (*principal.Principal, error) {
	return nil, errBackend
}

func (brokenStore) ListRolesForPrincipal(context.Context, principal.Ref) ([]*role.Role, error) {
	return nil, errBackend
}

type fixture struct {
	active   principal.Ref
	inactive principal.Ref
}

// seedFixture creates an active editor holding read--posts and an inactive
// principal with no grants.
func seedFixture(t *testing.T, s store.Store) fixture {
	t.Helper()
	ctx := context.Background()

	editor := &role.Role{Name: "editor"}
	require.NoError(t, s.CreateRole(ctx, editor))
	read := &permission.Permission{Name: "read--posts"}
	require.NoError(t, s.CreatePermission(ctx, read))
	require.NoError(t, s.AttachRolePermissions(ctx, editor.ID, []id.PermissionID{read.ID}))

	ada := &principal.Principal{Kind: principal.KindUser, Email: "ada@example.com"}
	require.NoError(t, s.CreatePrincipal(ctx, ada))
	require.NoError(t, s.ActivatePrincipal(ctx, ada.Ref(), time.Now(), []id.RoleID{editor.ID}))

	bob := &principal.Principal{Kind: principal.KindUser, Email: "bob@example.com"}
	require.NoError(t, s.CreatePrincipal(ctx, bob))

	return fixture{active: ada.Ref(), inactive: bob.Ref()}
}

func TestGuards(t *testing.T) {
	mem := memory.New()
	fx := seedFixture(t, mem)

	tests := []struct {
		name       string
		broken     bool
		userID     string
		middleware func(eng *charter.Engine) forge.Middleware
		wantStatus int
		wantNext   bool
		wantLog    bool
	}{
		{
			name:       "permission anonymous",
			middleware: func(eng *charter.Engine) forge.Middleware { return RequirePermission(eng, "read--posts") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "permission malformed user id",
			userID:     "not-a-uuid",
			middleware: func(eng *charter.Engine) forge.Middleware { return RequirePermission(eng, "read--posts") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "permission check error",
			broken:     true,
			userID:     fx.active.ID.String(),
			middleware: func(eng *charter.Engine) forge.Middleware { return RequirePermission(eng, "read--posts") },
			wantStatus: http.StatusForbidden,
			wantLog:    true,
		},
		{
			name:       "permission missing",
			userID:     fx.active.ID.String(),
			middleware: func(eng *charter.Engine) forge.Middleware { return RequirePermission(eng, "delete--posts") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "permission through role",
			userID:     fx.active.ID.String(),
			middleware: func(eng *charter.Engine) forge.Middleware { return RequirePermission(eng, "read--posts") },
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "active anonymous",
			middleware: RequireActive,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "active check error",
			broken:     true,
			userID:     fx.active.ID.String(),
			middleware: RequireActive,
			wantStatus: http.StatusForbidden,
			wantLog:    true,
		},
		{
			name:       "active inactive principal",
			userID:     fx.inactive.ID.String(),
			middleware: RequireActive,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "active unknown principal",
			userID:     id.New().String(),
			middleware: RequireActive,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "active principal",
			userID:     fx.active.ID.String(),
			middleware: RequireActive,
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "role held",
			userID:     fx.active.ID.String(),
			middleware: func(eng *charter.Engine) forge.Middleware { return RequireRole(eng, "editor") },
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "role missing",
			userID:     fx.inactive.ID.String(),
			middleware: func(eng *charter.Engine) forge.Middleware { return RequireAnyRole(eng, "editor", "admin") },
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s store.Store = mem
			if tt.broken {
				s = brokenStore{mem}
			}
			var logs bytes.Buffer
			eng, err := charter.NewEngine(
				charter.WithStore(s),
				charter.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
			)
			require.NoError(t, err)

			called := false
			handler := tt.middleware(eng)(func(ctx forge.Context) error {
				called = true
				return ctx.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, "/posts", nil)
			if tt.userID != "" {
				req = req.WithContext(forge.WithUserID(req.Context(), tt.userID))
			}
			rec := httptest.NewRecorder()

			require.NoError(t, handler(forgehttp.NewContext(rec, req, nil)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, called)
			if !tt.wantNext {
				assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())
			}
			if tt.wantLog {
				assert.Contains(t, logs.String(), "authorization check failed")
				assert.Contains(t, logs.String(), errBackend.Error())
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}
