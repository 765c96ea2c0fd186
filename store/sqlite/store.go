// Package sqlite provides a SQLite implementation of the Charter composite
// store. Dependent grant rows are removed explicitly so cascades do not
// depend on the foreign_keys pragma.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/grant"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/permission"
	"github.com/xraph/charter/principal"
	"github.com/xraph/charter/role"
	"github.com/xraph/charter/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Charter store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	now func() time.Time
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
		now: time.Now,
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("charter/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("charter/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset deletes every row in dependency order inside one transaction.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := resetTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func resetTx(ctx context.Context, tx *sqlitedriver.SqliteTx) error {
	models := []any{
		(*principalRoleModel)(nil),
		(*principalPermissionModel)(nil),
		(*rolePermissionModel)(nil),
		(*roleModel)(nil),
		(*permissionModel)(nil),
		(*principalModel)(nil),
	}
	for _, m := range models {
		if _, err := tx.NewDelete(m).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("charter: reset: %w", err)
		}
	}
	return nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", what, store.ErrUnknownReference)
	}
	return fmt.Errorf("charter: %s: %w", what, err)
}

// affected reports ErrNotFound when a delete touched no rows.
func affected(res sql.Result, what string) error {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil //nolint:nilerr // drivers without row counts skip the check
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Principal operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePrincipal(ctx context.Context, p *principal.Principal) error {
	if err := entity.BeforeCreate(p, s.now()); err != nil {
		return err
	}
	_, err := s.sdb.NewInsert(principalToModel(p)).Exec(ctx)
	return mapError(err, "create principal")
}

func (s *Store) GetPrincipal(ctx context.Context, principalID id.PrincipalID) (*principal.Principal, error) {
	m := new(principalModel)
	err := s.sdb.NewSelect(m).Where("id = ?", principalID.String()).Scan(ctx)
	if err != nil {
		return nil, mapError(err, "principal "+principalID.String())
	}
	return principalFromModel(m), nil
}

func (s *Store) GetPrincipalByEmail(ctx context.Context, kind principal.Kind, email string) (*principal.Principal, error) {
	m := new(principalModel)
	err := s.sdb.NewSelect(m).
		Where("kind = ?", string(kind)).
		Where("LOWER(email) = LOWER(?)", email).
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("principal email %q", email))
	}
	return principalFromModel(m), nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, p *principal.Principal) error {
	old, err := s.GetPrincipal(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := principal.CheckActivation(old, p); err != nil {
		return err
	}
	if err := entity.BeforeUpdate(old, p, s.now()); err != nil {
		return err
	}
	_, err = s.sdb.NewUpdate(principalToModel(p)).WherePK().Exec(ctx)
	return mapError(err, "update principal")
}

func (s *Store) DeletePrincipal(ctx context.Context, principalID id.PrincipalID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	pid := principalID.String()
	if _, err := tx.NewDelete((*principalRoleModel)(nil)).Where("principal_id = ?", pid).Exec(ctx); err != nil {
		return mapError(err, "delete principal roles")
	}
	if _, err := tx.NewDelete((*principalPermissionModel)(nil)).Where("principal_id = ?", pid).Exec(ctx); err != nil {
		return mapError(err, "delete principal permissions")
	}
	res, err := tx.NewDelete((*principalModel)(nil)).Where("id = ?", pid).Exec(ctx)
	if err != nil {
		return mapError(err, "delete principal")
	}
	if err := affected(res, "principal "+pid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListPrincipals(ctx context.Context, filter *principal.ListFilter) ([]*principal.Principal, error) {
	var models []principalModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(first_name || ' ' || last_name || ' ' || email) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError(err, "list principals")
	}
	result := make([]*principal.Principal, len(models))
	for i := range models {
		result[i] = principalFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountPrincipals(ctx context.Context, filter *principal.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*principalModel)(nil))
	if filter != nil {
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(first_name || ' ' || last_name || ' ' || email) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, mapError(err, "count principals")
	}
	return count, nil
}

// ActivatePrincipal sets the activation flag and attaches roleIDs in one
// transaction.
func (s *Store) ActivatePrincipal(ctx context.Context, ref principal.Ref, verifiedAt time.Time, roleIDs []id.RoleID) error {
	roleIDs = grant.Dedupe(roleIDs)
	now := entity.Now(s.now())
	verified := entity.Now(verifiedAt)

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	m := new(principalModel)
	err = tx.NewSelect(m).
		Where("id = ?", ref.ID.String()).
		Where("kind = ?", string(ref.Kind)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("principal %s: %w", ref, store.ErrUnknownReference)
		}
		return mapError(err, "activate principal")
	}

	if len(roleIDs) > 0 {
		n, err := tx.NewSelect((*roleModel)(nil)).
			Where(inClause("id", len(roleIDs)), bind(idStrings(roleIDs))...).
			Count(ctx)
		if err != nil {
			return mapError(err, "activate principal")
		}
		if int(n) != len(roleIDs) {
			return fmt.Errorf("roles %v: %w", roleIDs, store.ErrUnknownReference)
		}
	}

	m.Active = true
	m.EmailVerifiedAt = &verified
	m.UpdatedAt = now
	if _, err := tx.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return mapError(err, "activate principal")
	}

	if len(roleIDs) > 0 {
		links := principalRoleModels(ref, roleIDs, now)
		_, err := tx.NewInsert(&links).
			OnConflict("(principal_id, principal_kind, role_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return mapError(err, "activate principal")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	if err := entity.BeforeCreate(r, s.now()); err != nil {
		return err
	}
	_, err := s.sdb.NewInsert(roleToModel(r)).Exec(ctx)
	return mapError(err, "create role")
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		return nil, mapError(err, "role "+roleID.String())
	}
	return roleFromModel(m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("role %q", name))
	}
	return roleFromModel(m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	old, err := s.GetRole(ctx, r.ID)
	if err != nil {
		return err
	}
	if err := entity.BeforeUpdate(old, r, s.now()); err != nil {
		return err
	}
	_, err = s.sdb.NewUpdate(roleToModel(r)).WherePK().Exec(ctx)
	return mapError(err, "update role")
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	rid := roleID.String()
	if _, err := tx.NewDelete((*principalRoleModel)(nil)).Where("role_id = ?", rid).Exec(ctx); err != nil {
		return mapError(err, "delete role holders")
	}
	if _, err := tx.NewDelete((*rolePermissionModel)(nil)).Where("role_id = ?", rid).Exec(ctx); err != nil {
		return mapError(err, "delete role permissions")
	}
	res, err := tx.NewDelete((*roleModel)(nil)).Where("id = ?", rid).Exec(ctx)
	if err != nil {
		return mapError(err, "delete role")
	}
	if err := affected(res, "role "+rid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if len(filter.Names) > 0 {
			q = q.Where(inClause("name", len(filter.Names)), bind(filter.Names)...)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name || ' ' || display_name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError(err, "list roles")
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if len(filter.Names) > 0 {
			q = q.Where(inClause("name", len(filter.Names)), bind(filter.Names)...)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name || ' ' || display_name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, mapError(err, "count roles")
	}
	return count, nil
}

func (s *Store) ListRolesForPrincipal(ctx context.Context, ref principal.Ref) ([]*role.Role, error) {
	var models []roleModel
	err := s.sdb.NewSelect(&models).
		Column("charter_roles.*").
		Join("JOIN", "charter_principal_roles AS pr", "pr.role_id = charter_roles.id").
		Where("pr.principal_id = ?", ref.ID.String()).
		Where("pr.principal_kind = ?", string(ref.Kind)).
		OrderExpr("charter_roles.created_at ASC, charter_roles.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list roles for principal")
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	err := s.sdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list role permissions")
	}
	result := make([]id.PermissionID, 0, len(models))
	for _, m := range models {
		result = append(result, parseID(m.PermissionID))
	}
	return result, nil
}

func (s *Store) AttachRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	now := entity.Now(s.now())

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	n, err := tx.NewSelect((*roleModel)(nil)).Where("id = ?", roleID.String()).Count(ctx)
	if err != nil {
		return mapError(err, "attach role permissions")
	}
	if n == 0 {
		return fmt.Errorf("role %s: %w", roleID, store.ErrUnknownReference)
	}
	n, err = tx.NewSelect((*permissionModel)(nil)).Where(inClause("id", len(permIDs)), bind(idStrings(permIDs))...).Count(ctx)
	if err != nil {
		return mapError(err, "attach role permissions")
	}
	if int(n) != len(permIDs) {
		return fmt.Errorf("permissions %v: %w", permIDs, store.ErrUnknownReference)
	}

	links := rolePermissionModels(roleID, permIDs, now)
	_, err = tx.NewInsert(&links).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return mapError(err, "attach role permissions")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DetachRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	_, err := s.sdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where(inClause("permission_id", len(permIDs)), bind(idStrings(permIDs))...).
		Exec(ctx)
	return mapError(err, "detach role permissions")
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	now := entity.Now(s.now())

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	n, err := tx.NewSelect((*roleModel)(nil)).Where("id = ?", roleID.String()).Count(ctx)
	if err != nil {
		return mapError(err, "set role permissions")
	}
	if n == 0 {
		return fmt.Errorf("role %s: %w", roleID, store.ErrUnknownReference)
	}

	// Keep surviving links so their creation time is preserved.
	q := tx.NewDelete((*rolePermissionModel)(nil)).Where("role_id = ?", roleID.String())
	if len(permIDs) > 0 {
		q = q.Where("NOT "+inClause("permission_id", len(permIDs)), bind(idStrings(permIDs))...)
	}
	if _, err := q.Exec(ctx); err != nil {
		return mapError(err, "clear role permissions")
	}

	if len(permIDs) > 0 {
		n, err := tx.NewSelect((*permissionModel)(nil)).Where(inClause("id", len(permIDs)), bind(idStrings(permIDs))...).Count(ctx)
		if err != nil {
			return mapError(err, "set role permissions")
		}
		if int(n) != len(permIDs) {
			return fmt.Errorf("permissions %v: %w", permIDs, store.ErrUnknownReference)
		}
		links := rolePermissionModels(roleID, permIDs, now)
		_, err = tx.NewInsert(&links).
			OnConflict("(role_id, permission_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return mapError(err, "set role permissions")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	if err := entity.BeforeCreate(p, s.now()); err != nil {
		return err
	}
	_, err := s.sdb.NewInsert(permissionToModel(p)).Exec(ctx)
	return mapError(err, "create permission")
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.sdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		return nil, mapError(err, "permission "+permID.String())
	}
	return permissionFromModel(m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("permission %q", name))
	}
	return permissionFromModel(m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	old, err := s.GetPermission(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := entity.BeforeUpdate(old, p, s.now()); err != nil {
		return err
	}
	_, err = s.sdb.NewUpdate(permissionToModel(p)).WherePK().Exec(ctx)
	return mapError(err, "update permission")
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	pid := permID.String()
	if _, err := tx.NewDelete((*principalPermissionModel)(nil)).Where("permission_id = ?", pid).Exec(ctx); err != nil {
		return mapError(err, "delete permission grants")
	}
	if _, err := tx.NewDelete((*rolePermissionModel)(nil)).Where("permission_id = ?", pid).Exec(ctx); err != nil {
		return mapError(err, "delete permission links")
	}
	res, err := tx.NewDelete((*permissionModel)(nil)).Where("id = ?", pid).Exec(ctx)
	if err != nil {
		return mapError(err, "delete permission")
	}
	if err := affected(res, "permission "+pid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if len(filter.Names) > 0 {
			q = q.Where(inClause("name", len(filter.Names)), bind(filter.Names)...)
		}
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name || ' ' || display_name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError(err, "list permissions")
	}
	return permissionsFromModels(models), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*permissionModel)(nil))
	if filter != nil {
		if len(filter.Names) > 0 {
			q = q.Where(inClause("name", len(filter.Names)), bind(filter.Names)...)
		}
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name || ' ' || display_name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, mapError(err, "count permissions")
	}
	return count, nil
}

func (s *Store) ListPermissionsByRole(ctx context.Context, roleID id.RoleID) ([]*permission.Permission, error) {
	var models []permissionModel
	err := s.sdb.NewSelect(&models).
		Column("charter_permissions.*").
		Join("JOIN", "charter_role_permissions AS rp", "rp.permission_id = charter_permissions.id").
		Where("rp.role_id = ?", roleID.String()).
		OrderExpr("charter_permissions.created_at ASC, charter_permissions.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list permissions by role")
	}
	return permissionsFromModels(models), nil
}

func (s *Store) ListPermissionsForPrincipal(ctx context.Context, ref principal.Ref) ([]*permission.Permission, error) {
	var models []permissionModel
	err := s.sdb.NewSelect(&models).
		Column("charter_permissions.*").
		Join("JOIN", "charter_principal_permissions AS pp", "pp.permission_id = charter_permissions.id").
		Where("pp.principal_id = ?", ref.ID.String()).
		Where("pp.principal_kind = ?", string(ref.Kind)).
		OrderExpr("charter_permissions.created_at ASC, charter_permissions.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list permissions for principal")
	}
	return permissionsFromModels(models), nil
}

func permissionsFromModels(models []permissionModel) []*permission.Permission {
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) AttachPrincipalRoles(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error {
	roleIDs = grant.Dedupe(roleIDs)
	if len(roleIDs) == 0 {
		return nil
	}
	now := entity.Now(s.now())

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	n, err := tx.NewSelect((*principalModel)(nil)).
		Where("id = ?", ref.ID.String()).
		Where("kind = ?", string(ref.Kind)).
		Count(ctx)
	if err != nil {
		return mapError(err, "attach principal roles")
	}
	if n == 0 {
		return fmt.Errorf("principal %s: %w", ref, store.ErrUnknownReference)
	}
	n, err = tx.NewSelect((*roleModel)(nil)).Where(inClause("id", len(roleIDs)), bind(idStrings(roleIDs))...).Count(ctx)
	if err != nil {
		return mapError(err, "attach principal roles")
	}
	if int(n) != len(roleIDs) {
		return fmt.Errorf("roles %v: %w", roleIDs, store.ErrUnknownReference)
	}

	links := principalRoleModels(ref, roleIDs, now)
	_, err = tx.NewInsert(&links).
		OnConflict("(principal_id, principal_kind, role_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return mapError(err, "attach principal roles")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DetachPrincipalRoles(ctx context.Context, ref principal.Ref, roleIDs []id.RoleID) error {
	roleIDs = grant.Dedupe(roleIDs)
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := s.sdb.NewDelete((*principalRoleModel)(nil)).
		Where("principal_id = ?", ref.ID.String()).
		Where("principal_kind = ?", string(ref.Kind)).
		Where(inClause("role_id", len(roleIDs)), bind(idStrings(roleIDs))...).
		Exec(ctx)
	return mapError(err, "detach principal roles")
}

func (s *Store) AttachPrincipalPermissions(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	now := entity.Now(s.now())

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	n, err := tx.NewSelect((*principalModel)(nil)).
		Where("id = ?", ref.ID.String()).
		Where("kind = ?", string(ref.Kind)).
		Count(ctx)
	if err != nil {
		return mapError(err, "attach principal permissions")
	}
	if n == 0 {
		return fmt.Errorf("principal %s: %w", ref, store.ErrUnknownReference)
	}
	n, err = tx.NewSelect((*permissionModel)(nil)).Where(inClause("id", len(permIDs)), bind(idStrings(permIDs))...).Count(ctx)
	if err != nil {
		return mapError(err, "attach principal permissions")
	}
	if int(n) != len(permIDs) {
		return fmt.Errorf("permissions %v: %w", permIDs, store.ErrUnknownReference)
	}

	links := make([]principalPermissionModel, len(permIDs))
	for i, pid := range permIDs {
		links[i] = principalPermissionModel{
			PrincipalID:   ref.ID.String(),
			PrincipalKind: string(ref.Kind),
			PermissionID:  pid.String(),
			CreatedAt:     now,
		}
	}
	_, err = tx.NewInsert(&links).
		OnConflict("(principal_id, principal_kind, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return mapError(err, "attach principal permissions")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DetachPrincipalPermissions(ctx context.Context, ref principal.Ref, permIDs []id.PermissionID) error {
	permIDs = grant.Dedupe(permIDs)
	if len(permIDs) == 0 {
		return nil
	}
	_, err := s.sdb.NewDelete((*principalPermissionModel)(nil)).
		Where("principal_id = ?", ref.ID.String()).
		Where("principal_kind = ?", string(ref.Kind)).
		Where(inClause("permission_id", len(permIDs)), bind(idStrings(permIDs))...).
		Exec(ctx)
	return mapError(err, "detach principal permissions")
}

func (s *Store) ListPrincipalRoles(ctx context.Context, ref principal.Ref) ([]*grant.PrincipalRole, error) {
	var models []principalRoleModel
	err := s.sdb.NewSelect(&models).
		Where("principal_id = ?", ref.ID.String()).
		Where("principal_kind = ?", string(ref.Kind)).
		OrderExpr("created_at ASC, role_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list principal roles")
	}
	result := make([]*grant.PrincipalRole, len(models))
	for i := range models {
		result[i] = principalRoleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListPrincipalPermissions(ctx context.Context, ref principal.Ref) ([]*grant.PrincipalPermission, error) {
	var models []principalPermissionModel
	err := s.sdb.NewSelect(&models).
		Where("principal_id = ?", ref.ID.String()).
		Where("principal_kind = ?", string(ref.Kind)).
		OrderExpr("created_at ASC, permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list principal permissions")
	}
	result := make([]*grant.PrincipalPermission, len(models))
	for i := range models {
		result[i] = principalPermissionFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRoleHolders(ctx context.Context, roleID id.RoleID) ([]principal.Ref, error) {
	var models []principalRoleModel
	err := s.sdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("principal_kind ASC, principal_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err, "list role holders")
	}
	result := make([]principal.Ref, len(models))
	for i := range models {
		result[i] = principalRoleFromModel(&models[i]).Principal()
	}
	return result, nil
}

func principalRoleModels(ref principal.Ref, roleIDs []id.RoleID, now time.Time) []principalRoleModel {
	links := make([]principalRoleModel, len(roleIDs))
	for i, rid := range roleIDs {
		links[i] = principalRoleModel{
			PrincipalID:   ref.ID.String(),
			PrincipalKind: string(ref.Kind),
			RoleID:        rid.String(),
			CreatedAt:     now,
		}
	}
	return links
}

func rolePermissionModels(roleID id.RoleID, permIDs []id.PermissionID, now time.Time) []rolePermissionModel {
	links := make([]rolePermissionModel, len(permIDs))
	for i, pid := range permIDs {
		links[i] = rolePermissionModel{
			RoleID:       roleID.String(),
			PermissionID: pid.String(),
			CreatedAt:    now,
		}
	}
	return links
}
