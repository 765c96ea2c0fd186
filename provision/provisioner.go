package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/charter"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
)

// Result summarises what a Run changed.
type Result struct {
	RolesCreated       int `json:"roles_created"`
	PermissionsCreated int `json:"permissions_created"`
	LinksAttached      int `json:"links_attached"`
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithReset wipes the store before seeding.
func WithReset() Option {
	return func(p *Provisioner) { p.reset = true }
}

// WithLogger sets the provisioner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) { p.logger = l }
}

// Provisioner materialises a Config against an engine's store. Running it
// twice with the same config leaves the store unchanged the second time.
type Provisioner struct {
	engine *charter.Engine
	reset  bool
	logger *slog.Logger
}

// New creates a provisioner bound to the engine.
func New(eng *charter.Engine, opts ...Option) *Provisioner {
	p := &Provisioner{engine: eng, logger: eng.Logger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run compiles cfg and applies it. Compilation errors abort before any
// write, including the optional reset.
func (p *Provisioner) Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	plan, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	return p.Apply(ctx, plan)
}

// Apply writes a compiled plan as one store transaction. The optional reset
// shares that transaction, so a failed run leaves the store as it was.
func (p *Provisioner) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	res, err := p.engine.Seed(ctx, plan.catalog(p.reset))
	if err != nil {
		return nil, fmt.Errorf("provision: %w", err)
	}
	if p.reset {
		p.logger.Info("provision: store reset")
	}
	for _, perm := range res.Permissions {
		p.logger.Info("provision: created permission", "permission", perm.Name)
	}
	for _, r := range res.Roles {
		p.logger.Info("provision: created role", "role", r.Name)
	}

	out := &Result{
		RolesCreated:       len(res.Roles),
		PermissionsCreated: len(res.Permissions),
		LinksAttached:      res.LinkCount(),
	}
	p.logger.Info("provision: catalog seeded",
		"roles_created", out.RolesCreated,
		"permissions_created", out.PermissionsCreated,
		"links_attached", out.LinksAttached,
	)
	return out, nil
}

// catalog converts the plan into the store's seeding input.
func (pl *Plan) catalog(reset bool) *store.Catalog {
	cat := &store.Catalog{
		Reset: reset,
		Links: make(map[string][]string),
	}
	for _, pp := range pl.Permissions {
		cat.Permissions = append(cat.Permissions, &permission.Permission{
			Name:        pp.Name,
			DisplayName: pp.DisplayName,
			Description: pp.Description,
			Action:      pp.Action,
			Resource:    pp.Resource,
		})
	}
	for _, rp := range pl.Roles {
		cat.Roles = append(cat.Roles, role.Definition{
			Name:        rp.Name,
			DisplayName: rp.DisplayName,
			Description: rp.Description,
		}.New())
		if len(rp.Permissions) > 0 {
			cat.Links[rp.Name] = rp.Permissions
		}
	}
	return cat
}

// EnsureBootstrapRoles creates the member and admin roles if missing.
func EnsureBootstrapRoles(ctx context.Context, eng *charter.Engine) error {
	_, err := New(eng).Run(ctx, &Config{})
	return err
}
