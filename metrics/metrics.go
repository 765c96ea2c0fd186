// Package metrics exposes Charter lifecycle events as Prometheus counters.
// Register the collector as a plugin with charter.WithPlugin.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/charter/grant"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// Grant mutation operations used as the "op" label.
const (
	OpAttach = "attach"
	OpDetach = "detach"
)

// Compile-time hook checks.
var (
	_ plugin.Plugin                  = (*Collector)(nil)
	_ plugin.RoleCreated             = (*Collector)(nil)
	_ plugin.RoleDeleted             = (*Collector)(nil)
	_ plugin.PermissionCreated       = (*Collector)(nil)
	_ plugin.PermissionDeleted       = (*Collector)(nil)
	_ plugin.RolesAttached           = (*Collector)(nil)
	_ plugin.RolesDetached           = (*Collector)(nil)
	_ plugin.PermissionsGranted      = (*Collector)(nil)
	_ plugin.PermissionsRevoked      = (*Collector)(nil)
	_ plugin.RolePermissionsAttached = (*Collector)(nil)
	_ plugin.RolePermissionsDetached = (*Collector)(nil)
	_ plugin.PrincipalVerified       = (*Collector)(nil)
)

// Collector counts catalog and grant changes.
type Collector struct {
	rolesCreated       prometheus.Counter
	rolesDeleted       prometheus.Counter
	permissionsCreated prometheus.Counter
	permissionsDeleted prometheus.Counter
	grantMutations     *prometheus.CounterVec
	principalsVerified prometheus.Counter
}

// New builds a Collector and registers its counters with reg.
// It panics if registration fails.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rolesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charter_roles_created_total",
			Help: "Total roles created.",
		}),
		rolesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charter_roles_deleted_total",
			Help: "Total roles deleted.",
		}),
		permissionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charter_permissions_created_total",
			Help: "Total permissions created.",
		}),
		permissionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charter_permissions_deleted_total",
			Help: "Total permissions deleted.",
		}),
		grantMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "charter_grant_mutations_total",
			Help: "Grant links attached or detached, partitioned by relation and operation.",
		}, []string{"relation", "op"}),
		principalsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charter_principals_verified_total",
			Help: "Total principals activated after verification.",
		}),
	}
	reg.MustRegister(
		c.rolesCreated,
		c.rolesDeleted,
		c.permissionsCreated,
		c.permissionsDeleted,
		c.grantMutations,
		c.principalsVerified,
	)
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return "metrics" }

func (c *Collector) OnRoleCreated(_ context.Context, _ *role.Role) error {
	c.rolesCreated.Inc()
	return nil
}

func (c *Collector) OnRoleDeleted(_ context.Context, _ id.RoleID) error {
	c.rolesDeleted.Inc()
	return nil
}

func (c *Collector) OnPermissionCreated(_ context.Context, _ *permission.Permission) error {
	c.permissionsCreated.Inc()
	return nil
}

func (c *Collector) OnPermissionDeleted(_ context.Context, _ id.PermissionID) error {
	c.permissionsDeleted.Inc()
	return nil
}

func (c *Collector) OnRolesAttached(_ context.Context, _ principal.Ref, roleIDs []id.RoleID) error {
	c.count(grant.RelationPrincipalRole, OpAttach, len(roleIDs))
	return nil
}

func (c *Collector) OnRolesDetached(_ context.Context, _ principal.Ref, roleIDs []id.RoleID) error {
	c.count(grant.RelationPrincipalRole, OpDetach, len(roleIDs))
	return nil
}

func (c *Collector) OnPermissionsGranted(_ context.Context, _ principal.Ref, permIDs []id.PermissionID) error {
	c.count(grant.RelationPrincipalPermission, OpAttach, len(permIDs))
	return nil
}

func (c *Collector) OnPermissionsRevoked(_ context.Context, _ principal.Ref, permIDs []id.PermissionID) error {
	c.count(grant.RelationPrincipalPermission, OpDetach, len(permIDs))
	return nil
}

func (c *Collector) OnRolePermissionsAttached(_ context.Context, _ id.RoleID, permIDs []id.PermissionID) error {
	c.count(grant.RelationRolePermission, OpAttach, len(permIDs))
	return nil
}

func (c *Collector) OnRolePermissionsDetached(_ context.Context, _ id.RoleID, permIDs []id.PermissionID) error {
	c.count(grant.RelationRolePermission, OpDetach, len(permIDs))
	return nil
}

func (c *Collector) OnPrincipalVerified(_ context.Context, _ *principal.Principal) error {
	c.principalsVerified.Inc()
	return nil
}

func (c *Collector) count(rel grant.Relation, op string, n int) {
	c.grantMutations.WithLabelValues(string(rel), op).Add(float64(n))
}
