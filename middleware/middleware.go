// Package middleware provides HTTP authorization middleware for Charter.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/principal"
)

// check decides whether the resolved principal may proceed.
type check func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error)

// RequireActive allows the request only for an active principal.
func RequireActive(eng *charter.Engine) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.IsActive(ctx, ref)
	})
}

// RequireRole allows the request if the principal holds the named role.
func RequireRole(eng *charter.Engine, name string) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.HasRole(ctx, ref, name)
	})
}

// RequireAnyRole allows the request if the principal holds ANY of the roles.
func RequireAnyRole(eng *charter.Engine, names ...string) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.HasAnyRole(ctx, ref, names...)
	})
}

// RequirePermission allows the request if the permission is effective for
// the principal, directly or through a role.
func RequirePermission(eng *charter.Engine, name string) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.HasPermission(ctx, ref, name)
	})
}

// RequireAnyPermission allows the request if ANY permission is effective.
func RequireAnyPermission(eng *charter.Engine, names ...string) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.HasAnyPermission(ctx, ref, names...)
	})
}

// RequireAllPermissions allows the request only if ALL permissions are effective.
func RequireAllPermissions(eng *charter.Engine, names ...string) forge.Middleware {
	return guard(eng, func(ctx context.Context, eng *charter.Engine, ref principal.Ref) (bool, error) {
		return eng.HasAllPermissions(ctx, ref, names...)
	})
}

func guard(eng *charter.Engine, allow check) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			ref, ok := resolvePrincipal(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			allowed, err := allow(ctx.Context(), eng, ref)
			if err != nil {
				eng.Logger().Warn("charter: authorization check failed",
					"principal", ref.String(),
					"error", err,
				)
				return denyResponse(ctx)
			}
			if !allowed {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// resolvePrincipal maps the authenticated Forge user onto a user principal.
// Requests without a parseable user ID are anonymous.
func resolvePrincipal(ctx forge.Context) (principal.Ref, bool) {
	return refFromUserID(forge.UserIDFromContext(ctx.Context()))
}

func refFromUserID(userID string) (principal.Ref, bool) {
	if userID == "" {
		return principal.Ref{}, false
	}
	pid, err := id.Parse(userID)
	if err != nil {
		return principal.Ref{}, false
	}
	return principal.User(pid), true
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
