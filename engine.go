package charter

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xraph/charter/grant"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
)

// Engine is the central authorization engine. It resolves grants from the
// store, applies grant mutations, and fires plugin hooks. It holds no
// mutable authorization state between calls.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	pending []plugin.Plugin
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

// NewEngine creates a new Charter engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	if len(e.pending) > 0 {
		e.plugins = plugin.NewRegistry(e.logger)
		for _, x := range e.pending {
			e.plugins.Register(x)
		}
		e.pending = nil
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

func checkRef(ref principal.Ref) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPrincipalKind, ref.Kind)
	}
	return nil
}

func (e *Engine) invalidate(ctx context.Context, ref principal.Ref) {
	if c := CacheFromContext(ctx); c != nil {
		c.InvalidatePrincipal(ctx, ref)
	}
}

func (e *Engine) purge(ctx context.Context) {
	if c := CacheFromContext(ctx); c != nil {
		c.Purge(ctx)
	}
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// CreateRole persists a role and fires RoleCreated.
func (e *Engine) CreateRole(ctx context.Context, r *role.Role) error {
	if err := e.store.CreateRole(ctx, r); err != nil {
		return fmt.Errorf("charter: create role: %w", err)
	}
	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
	}
	return nil
}

// DeleteRole removes a role; every grant referencing it goes with it.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	if err := e.store.DeleteRole(ctx, roleID); err != nil {
		return fmt.Errorf("charter: delete role: %w", err)
	}
	e.purge(ctx)
	if e.plugins != nil {
		e.plugins.EmitRoleDeleted(ctx, roleID)
	}
	return nil
}

// CreatePermission persists a permission and fires PermissionCreated.
func (e *Engine) CreatePermission(ctx context.Context, p *permission.Permission) error {
	if err := e.store.CreatePermission(ctx, p); err != nil {
		return fmt.Errorf("charter: create permission: %w", err)
	}
	if e.plugins != nil {
		e.plugins.EmitPermissionCreated(ctx, p)
	}
	return nil
}

// DeletePermission removes a permission; every grant referencing it goes
// with it.
func (e *Engine) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	if err := e.store.DeletePermission(ctx, permID); err != nil {
		return fmt.Errorf("charter: delete permission: %w", err)
	}
	e.purge(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionDeleted(ctx, permID)
	}
	return nil
}

// Seed applies a catalog in one store transaction. Hooks fire only after
// the transaction commits, for exactly the rows and links it inserted.
func (e *Engine) Seed(ctx context.Context, cat *store.Catalog) (*store.SeedResult, error) {
	res, err := e.store.Seed(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("charter: seed: %w", err)
	}
	if cat.Reset || len(res.Links) > 0 {
		e.purge(ctx)
	}
	if e.plugins != nil {
		for _, p := range res.Permissions {
			e.plugins.EmitPermissionCreated(ctx, p)
		}
		for _, r := range res.Roles {
			e.plugins.EmitRoleCreated(ctx, r)
		}
		for _, roleID := range slices.SortedFunc(maps.Keys(res.Links), func(a, b id.RoleID) int {
			return strings.Compare(a.String(), b.String())
		}) {
			e.plugins.EmitRolePermissionsAttached(ctx, roleID, res.Links[roleID])
		}
	}
	return res, nil
}

// ──────────────────────────────────────────────────
// Grant mutation
// ──────────────────────────────────────────────────

// AttachRoles grants roles to a principal. Re-attaching is a no-op; an
// unknown role or principal fails the whole batch.
func (e *Engine) AttachRoles(ctx context.Context, ref principal.Ref, roleIDs ...id.RoleID) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	roleIDs = grant.Dedupe(roleIDs)
	if len(roleIDs) == 0 {
		return nil
	}
	if err := e.store.AttachPrincipalRoles(ctx, ref, roleIDs); err != nil {
		return fmt.Errorf("charter: attach roles: %w", err)
	}
	e.invalidate(ctx, ref)
	if e.plugins != nil {
		e.plugins.EmitRolesAttached(ctx, ref, roleIDs)
	}
	return nil
}

// DetachRoles revokes roles from a principal. Absent grants are ignored.
func (e *Engine) DetachRoles(ctx context.Context, ref principal.Ref, roleIDs ...id.RoleID) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	roleIDs = grant.Dedupe(roleIDs)
	if len(roleIDs) == 0 {
		return nil
	}
	if err := e.store.DetachPrincipalRoles(ctx, ref, roleIDs); err != nil {
		return fmt.Errorf("charter: detach roles: %w", err)
	}
	e.invalidate(ctx, ref)
	if e.plugins != nil {
		e.plugins.EmitRolesDetached(ctx, ref, roleIDs)
	}
	return nil
}

// AttachPermissions grants permissions directly to a principal.
func (e *Engine) AttachPermissions(ctx context.Context, ref principal.Ref, permIDs ...id.PermissionID) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	if err := e.store.AttachPrincipalPermissions(ctx, ref, permIDs); err != nil {
		return fmt.Errorf("charter: attach permissions: %w", err)
	}
	e.invalidate(ctx, ref)
	if e.plugins != nil {
		e.plugins.EmitPermissionsGranted(ctx, ref, permIDs)
	}
	return nil
}

// DetachPermissions revokes direct permissions from a principal. Permissions
// the principal still reaches through a role are unaffected.
func (e *Engine) DetachPermissions(ctx context.Context, ref principal.Ref, permIDs ...id.PermissionID) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	if err := e.store.DetachPrincipalPermissions(ctx, ref, permIDs); err != nil {
		return fmt.Errorf("charter: detach permissions: %w", err)
	}
	e.invalidate(ctx, ref)
	if e.plugins != nil {
		e.plugins.EmitPermissionsRevoked(ctx, ref, permIDs)
	}
	return nil
}

// AttachPermissionsToRole links permissions to a role as one atomic batch.
func (e *Engine) AttachPermissionsToRole(ctx context.Context, roleID id.RoleID, permIDs ...id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	if err := e.store.AttachRolePermissions(ctx, roleID, permIDs); err != nil {
		return fmt.Errorf("charter: attach role permissions: %w", err)
	}
	e.purge(ctx)
	if e.plugins != nil {
		e.plugins.EmitRolePermissionsAttached(ctx, roleID, permIDs)
	}
	return nil
}

// DetachPermissionsFromRole unlinks permissions from a role.
func (e *Engine) DetachPermissionsFromRole(ctx context.Context, roleID id.RoleID, permIDs ...id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	if err := e.store.DetachRolePermissions(ctx, roleID, permIDs); err != nil {
		return fmt.Errorf("charter: detach role permissions: %w", err)
	}
	e.purge(ctx)
	if e.plugins != nil {
		e.plugins.EmitRolePermissionsDetached(ctx, roleID, permIDs)
	}
	return nil
}
