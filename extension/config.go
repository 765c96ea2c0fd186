package extension

// Config holds the Charter extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.charter" or "charter" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SeedFile is a provisioning config (role_structure / permissions_map)
	// applied on start. Empty means only the bootstrap roles are ensured.
	SeedFile string `json:"seed_file" mapstructure:"seed_file" yaml:"seed_file"`

	// ResetOnSeed wipes the store before seeding. Destructive.
	ResetOnSeed bool `json:"reset_on_seed" mapstructure:"reset_on_seed" yaml:"reset_on_seed"`

	// DisableSeed skips seeding entirely, including the bootstrap roles.
	DisableSeed bool `json:"disable_seed" mapstructure:"disable_seed" yaml:"disable_seed"`

	// MemberRole overrides the member role name (default: "member").
	MemberRole string `json:"member_role" mapstructure:"member_role" yaml:"member_role"`

	// AdminRole overrides the admin role name (default: "admin").
	AdminRole string `json:"admin_role" mapstructure:"admin_role" yaml:"admin_role"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}
