package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// Named entry types pair a hook with the plugin name for logging.

type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type permissionCreatedEntry struct {
	name string
	hook PermissionCreated
}
type permissionDeletedEntry struct {
	name string
	hook PermissionDeleted
}
type rolesAttachedEntry struct {
	name string
	hook RolesAttached
}
type rolesDetachedEntry struct {
	name string
	hook RolesDetached
}
type permissionsGrantedEntry struct {
	name string
	hook PermissionsGranted
}
type permissionsRevokedEntry struct {
	name string
	hook PermissionsRevoked
}
type rolePermissionsAttachedEntry struct {
	name string
	hook RolePermissionsAttached
}
type rolePermissionsDetachedEntry struct {
	name string
	hook RolePermissionsDetached
}
type principalVerifiedEntry struct {
	name string
	hook PrincipalVerified
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	roleCreated             []roleCreatedEntry
	roleDeleted             []roleDeletedEntry
	permissionCreated       []permissionCreatedEntry
	permissionDeleted       []permissionDeletedEntry
	rolesAttached           []rolesAttachedEntry
	rolesDetached           []rolesDetachedEntry
	permissionsGranted      []permissionsGrantedEntry
	permissionsRevoked      []permissionsRevokedEntry
	rolePermissionsAttached []rolePermissionsAttachedEntry
	rolePermissionsDetached []rolePermissionsDetachedEntry
	principalVerified       []principalVerifiedEntry
	shutdown                []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, h})
	}
	if h, ok := p.(PermissionCreated); ok {
		r.permissionCreated = append(r.permissionCreated, permissionCreatedEntry{name, h})
	}
	if h, ok := p.(PermissionDeleted); ok {
		r.permissionDeleted = append(r.permissionDeleted, permissionDeletedEntry{name, h})
	}
	if h, ok := p.(RolesAttached); ok {
		r.rolesAttached = append(r.rolesAttached, rolesAttachedEntry{name, h})
	}
	if h, ok := p.(RolesDetached); ok {
		r.rolesDetached = append(r.rolesDetached, rolesDetachedEntry{name, h})
	}
	if h, ok := p.(PermissionsGranted); ok {
		r.permissionsGranted = append(r.permissionsGranted, permissionsGrantedEntry{name, h})
	}
	if h, ok := p.(PermissionsRevoked); ok {
		r.permissionsRevoked = append(r.permissionsRevoked, permissionsRevokedEntry{name, h})
	}
	if h, ok := p.(RolePermissionsAttached); ok {
		r.rolePermissionsAttached = append(r.rolePermissionsAttached, rolePermissionsAttachedEntry{name, h})
	}
	if h, ok := p.(RolePermissionsDetached); ok {
		r.rolePermissionsDetached = append(r.rolePermissionsDetached, rolePermissionsDetachedEntry{name, h})
	}
	if h, ok := p.(PrincipalVerified); ok {
		r.principalVerified = append(r.principalVerified, principalVerifiedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Catalog event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// EmitPermissionCreated notifies all plugins that implement PermissionCreated.
func (r *Registry) EmitPermissionCreated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionCreated {
		if err := e.hook.OnPermissionCreated(ctx, p); err != nil {
			r.logHookError("OnPermissionCreated", e.name, err)
		}
	}
}

// EmitPermissionDeleted notifies all plugins that implement PermissionDeleted.
func (r *Registry) EmitPermissionDeleted(ctx context.Context, permID id.PermissionID) {
	for _, e := range r.permissionDeleted {
		if err := e.hook.OnPermissionDeleted(ctx, permID); err != nil {
			r.logHookError("OnPermissionDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Grant event emitters
// ──────────────────────────────────────────────────

// EmitRolesAttached notifies all plugins that implement RolesAttached.
func (r *Registry) EmitRolesAttached(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) {
	for _, e := range r.rolesAttached {
		if err := e.hook.OnRolesAttached(ctx, ref, roleIDs); err != nil {
			r.logHookError("OnRolesAttached", e.name, err)
		}
	}
}

// EmitRolesDetached notifies all plugins that implement RolesDetached.
func (r *Registry) EmitRolesDetached(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) {
	for _, e := range r.rolesDetached {
		if err := e.hook.OnRolesDetached(ctx, ref, roleIDs); err != nil {
			r.logHookError("OnRolesDetached", e.name, err)
		}
	}
}

// EmitPermissionsGranted notifies all plugins that implement PermissionsGranted.
func (r *Registry) EmitPermissionsGranted(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) {
	for _, e := range r.permissionsGranted {
		if err := e.hook.OnPermissionsGranted(ctx, ref, permIDs); err != nil {
			r.logHookError("OnPermissionsGranted", e.name, err)
		}
	}
}

// EmitPermissionsRevoked notifies all plugins that implement PermissionsRevoked.
func (r *Registry) EmitPermissionsRevoked(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) {
	for _, e := range r.permissionsRevoked {
		if err := e.hook.OnPermissionsRevoked(ctx, ref, permIDs); err != nil {
			r.logHookError("OnPermissionsRevoked", e.name, err)
		}
	}
}

// EmitRolePermissionsAttached notifies all plugins that implement RolePermissionsAttached.
func (r *Registry) EmitRolePermissionsAttached(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) {
	for _, e := range r.rolePermissionsAttached {
		if err := e.hook.OnRolePermissionsAttached(ctx, roleID, permIDs); err != nil {
			r.logHookError("OnRolePermissionsAttached", e.name, err)
		}
	}
}

// EmitRolePermissionsDetached notifies all plugins that implement RolePermissionsDetached.
func (r *Registry) EmitRolePermissionsDetached(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) {
	for _, e := range r.rolePermissionsDetached {
		if err := e.hook.OnRolePermissionsDetached(ctx, roleID, permIDs); err != nil {
			r.logHookError("OnRolePermissionsDetached", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Principal event emitters
// ──────────────────────────────────────────────────

// EmitPrincipalVerified notifies all plugins that implement PrincipalVerified.
func (r *Registry) EmitPrincipalVerified(ctx context.Context, p *principal.Principal) {
	for _, e := range r.principalVerified {
		if err := e.hook.OnPrincipalVerified(ctx, p); err != nil {
			r.logHookError("OnPrincipalVerified", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
