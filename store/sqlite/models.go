package sqlite

import (
	"strings"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/grant"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
)

// ──────────────────────────────────────────────────
// Principal model
// ──────────────────────────────────────────────────

type principalModel struct {
	grove.BaseModel `grove:"table:charter_principals"`
	ID              string     `grove:"id,pk"`
	Kind            string     `grove:"kind,notnull"`
	FirstName       string     `grove:"first_name,notnull"`
	LastName        string     `grove:"last_name,notnull"`
	Email           string     `grove:"email,notnull"`
	Active          bool       `grove:"active,notnull"`
	EmailVerifiedAt *time.Time `grove:"email_verified_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func principalToModel(p *principal.Principal) *principalModel {
	return &principalModel{
		ID:              p.ID.String(),
		Kind:            string(p.Kind),
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		Active:          p.Active,
		EmailVerifiedAt: p.EmailVerifiedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func principalFromModel(m *principalModel) *principal.Principal {
	return &principal.Principal{
		Record:          record(m.ID, m.CreatedAt, m.UpdatedAt),
		Kind:            principal.Kind(m.Kind),
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		Active:          m.Active,
		EmailVerifiedAt: m.EmailVerifiedAt,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:charter_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	Description     string    `grove:"description,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	return &role.Role{
		Record:      record(m.ID, m.CreatedAt, m.UpdatedAt),
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
	}
}

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:charter_permissions"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	DisplayName     string    `grove:"display_name,notnull"`
	Description     string    `grove:"description,notnull"`
	Action          string    `grove:"action,notnull"`
	Resource        string    `grove:"resource,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Action:      p.Action,
		Resource:    p.Resource,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	return &permission.Permission{
		Record:      record(m.ID, m.CreatedAt, m.UpdatedAt),
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Action:      m.Action,
		Resource:    m.Resource,
	}
}

// ──────────────────────────────────────────────────
// Grant models
// ──────────────────────────────────────────────────

type principalRoleModel struct {
	grove.BaseModel `grove:"table:charter_principal_roles"`
	PrincipalID     string    `grove:"principal_id,pk"`
	PrincipalKind   string    `grove:"principal_kind,pk"`
	RoleID          string    `grove:"role_id,pk"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func principalRoleFromModel(m *principalRoleModel) *grant.PrincipalRole {
	return &grant.PrincipalRole{
		PrincipalID:   parseID(m.PrincipalID),
		PrincipalKind: principal.Kind(m.PrincipalKind),
		RoleID:        parseID(m.RoleID),
		CreatedAt:     m.CreatedAt,
	}
}

type principalPermissionModel struct {
	grove.BaseModel `grove:"table:charter_principal_permissions"`
	PrincipalID     string    `grove:"principal_id,pk"`
	PrincipalKind   string    `grove:"principal_kind,pk"`
	PermissionID    string    `grove:"permission_id,pk"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func principalPermissionFromModel(m *principalPermissionModel) *grant.PrincipalPermission {
	return &grant.PrincipalPermission{
		PrincipalID:   parseID(m.PrincipalID),
		PrincipalKind: principal.Kind(m.PrincipalKind),
		PermissionID:  parseID(m.PermissionID),
		CreatedAt:     m.CreatedAt,
	}
}

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:charter_role_permissions"`
	RoleID          string    `grove:"role_id,pk"`
	PermissionID    string    `grove:"permission_id,pk"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func parseID(s string) id.ID {
	v, _ := id.Parse(s) //nolint:errcheck // stored IDs are always valid
	return v
}

func record(rawID string, createdAt, updatedAt time.Time) entity.Record {
	return entity.Record{
		ID:        parseID(rawID),
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
}

func idStrings(ids []id.ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

// inClause renders `col IN (?, ?, ...)` with n placeholders. The drivers
// bind a slice argument as one parameter, so lists are expanded here.
func inClause(col string, n int) string {
	return col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// bind converts values into query arguments for an inClause.
func bind(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
