// Package extension provides a Forge extension entry point for Charter.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/charter"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/provision"
	"github.com/xraph/charter/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "charter"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Identity and role/permission authorization core (RBAC)"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Charter as a Forge extension.
type Extension struct {
	config     Config
	eng        *charter.Engine
	logger     *slog.Logger
	store      store.Store
	engineOpts []charter.Option
	plugins    []plugin.Plugin
}

// Option configures the extension before Register.
type Option func(*Extension)

// WithStore pins the backend. It takes precedence over a store.Store
// resolved from the Forge container.
func WithStore(s store.Store) Option { return func(e *Extension) { e.store = s } }

// WithConfig replaces the whole configuration. Options applied after it
// still adjust individual fields.
func WithConfig(cfg Config) Option { return func(e *Extension) { e.config = cfg } }

// WithLogger sets the logger shared by the engine and the provisioner.
func WithLogger(l *slog.Logger) Option { return func(e *Extension) { e.logger = l } }

// WithPlugin adds a lifecycle hook plugin to the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Extension) { e.plugins = append(e.plugins, x) }
}

// WithEngineOptions passes raw options through to charter.NewEngine. They
// run after the options the extension derives from its config.
func WithEngineOptions(opts ...charter.Option) Option {
	return func(e *Extension) { e.engineOpts = append(e.engineOpts, opts...) }
}

// WithSeed provisions the catalog in path on Start. With reset the store
// is wiped first, in the same transaction as the seed.
func WithSeed(path string, reset bool) Option {
	return func(e *Extension) {
		e.config.SeedFile = path
		e.config.ResetOnSeed = reset
		e.config.DisableSeed = false
	}
}

// WithRoleNames renames the bootstrap roles. The member role also becomes
// the role attached on verification. Empty names keep the defaults.
func WithRoleNames(member, admin string) Option {
	return func(e *Extension) {
		e.config.MemberRole = member
		e.config.AdminRole = admin
	}
}

// WithoutMigrate skips schema migration on Start.
func WithoutMigrate() Option { return func(e *Extension) { e.config.DisableMigrate = true } }

// WithoutSeed skips provisioning on Start, bootstrap roles included.
func WithoutSeed() Option { return func(e *Extension) { e.config.DisableSeed = true } }

// New creates a Charter Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Charter engine.
func (e *Extension) Engine() *charter.Engine { return e.eng }

// Register implements [forge.Extension]. It initializes the engine and
// registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	var resolved store.Store
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		resolved = s
	}
	if err := e.init(resolved); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*charter.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("charter: register engine in container: %w", err)
	}
	return nil
}

// init builds the engine. A store pinned with WithStore wins over the one
// resolved from the container.
func (e *Extension) init(resolved store.Store) error {
	if e.logger == nil {
		e.logger = slog.Default()
	}
	backend := e.store
	if backend == nil {
		backend = resolved
	}

	opts := make([]charter.Option, 0, len(e.engineOpts)+len(e.plugins)+3)
	opts = append(opts, charter.WithLogger(e.logger), charter.WithConfig(e.engineConfig()))
	if backend != nil {
		opts = append(opts, charter.WithStore(backend))
	}
	for _, x := range e.plugins {
		opts = append(opts, charter.WithPlugin(x))
	}
	opts = append(opts, e.engineOpts...)

	eng, err := charter.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("charter: create engine: %w", err)
	}
	e.eng = eng
	return nil
}

func (e *Extension) engineConfig() charter.Config {
	cfg := charter.DefaultConfig()
	if e.config.MemberRole != "" {
		cfg.MemberRole = e.config.MemberRole
		cfg.VerificationRoles = []string{e.config.MemberRole}
	}
	if e.config.AdminRole != "" {
		cfg.AdminRole = e.config.AdminRole
	}
	return cfg
}

// Start runs migrations and seeding unless disabled, then starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("charter: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("charter: migration failed: %w", err)
		}
	}

	if !e.config.DisableSeed {
		if err := e.seed(ctx); err != nil {
			return err
		}
	}

	return e.eng.Start(ctx)
}

func (e *Extension) seed(ctx context.Context) error {
	cfg := &provision.Config{}
	if e.config.SeedFile != "" {
		loaded, err := provision.LoadFile(e.config.SeedFile)
		if err != nil {
			return fmt.Errorf("charter: load seed: %w", err)
		}
		cfg = loaded
	}
	if cfg.Roles == nil {
		cfg.Roles = provision.Structure{}
	}
	for _, name := range []string{e.config.MemberRole, e.config.AdminRole} {
		if _, ok := cfg.Roles[name]; name != "" && !ok {
			cfg.Roles[name] = map[string]string{}
		}
	}

	opts := []provision.Option{provision.WithLogger(e.logger)}
	if e.config.ResetOnSeed {
		opts = append(opts, provision.WithReset())
	}
	if _, err := provision.New(e.eng, opts...).Run(ctx, cfg); err != nil {
		return fmt.Errorf("charter: seed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the charter engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("charter: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}
