package charter

import "github.com/xraph/charter/role"

// Config holds configuration for the Charter engine.
type Config struct {
	// MemberRole is the role name IsMember checks. Defaults to "member".
	MemberRole string `json:"member_role,omitempty" yaml:"member_role,omitempty"`

	// AdminRole is the role name IsAdmin checks. Defaults to "admin".
	AdminRole string `json:"admin_role,omitempty" yaml:"admin_role,omitempty"`

	// VerificationRoles are attached when a principal is verified.
	// Defaults to MemberRole alone; admin is never attached automatically.
	VerificationRoles []string `json:"verification_roles,omitempty" yaml:"verification_roles,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MemberRole: role.Member,
		AdminRole:  role.Admin,
	}
}

func (c Config) memberRole() string {
	if c.MemberRole == "" {
		return role.Member
	}
	return c.MemberRole
}

func (c Config) adminRole() string {
	if c.AdminRole == "" {
		return role.Admin
	}
	return c.AdminRole
}

func (c Config) verificationRoles() []string {
	if len(c.VerificationRoles) == 0 {
		return []string{c.memberRole()}
	}
	return c.VerificationRoles
}
