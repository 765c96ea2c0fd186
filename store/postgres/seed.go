package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/charter/entity"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/store"
)

// Seed applies cat in one transaction. Entities are matched by name, and
// only missing rows and links are inserted.
func (s *Store) Seed(ctx context.Context, cat *store.Catalog) (*store.SeedResult, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("charter: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if cat.Reset {
		if err := resetTx(ctx, tx); err != nil {
			return nil, err
		}
	}

	now := s.now()
	res := &store.SeedResult{Links: make(map[id.RoleID][]id.PermissionID)}
	permIDs := make(map[string]string, len(cat.Permissions))
	roleIDs := make(map[string]string, len(cat.Roles))

	for _, p := range cat.Permissions {
		existing, err := permissionIDByName(ctx, tx, p.Name)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			permIDs[p.Name] = existing
			continue
		}
		if err := entity.BeforeCreate(p, now); err != nil {
			return nil, err
		}
		if _, err := tx.NewInsert(permissionToModel(p)).Exec(ctx); err != nil {
			return nil, mapError(err, fmt.Sprintf("seed permission %q", p.Name))
		}
		permIDs[p.Name] = p.ID.String()
		res.Permissions = append(res.Permissions, p)
	}

	for _, r := range cat.Roles {
		existing, err := roleIDByName(ctx, tx, r.Name)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			roleIDs[r.Name] = existing
			continue
		}
		if err := entity.BeforeCreate(r, now); err != nil {
			return nil, err
		}
		if _, err := tx.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
			return nil, mapError(err, fmt.Sprintf("seed role %q", r.Name))
		}
		roleIDs[r.Name] = r.ID.String()
		res.Roles = append(res.Roles, r)
	}

	linkedAt := entity.Now(now)
	for _, roleName := range slices.Sorted(maps.Keys(cat.Links)) {
		rid, ok := roleIDs[roleName]
		if !ok {
			if rid, err = roleIDByName(ctx, tx, roleName); err != nil {
				return nil, err
			}
			if rid == "" {
				return nil, fmt.Errorf("role name %q: %w", roleName, store.ErrUnknownReference)
			}
		}

		var current []rolePermissionModel
		if err := tx.NewSelect(&current).Where("role_id = ?", rid).Scan(ctx); err != nil {
			return nil, mapError(err, "seed role permissions")
		}
		held := make(map[string]struct{}, len(current))
		for _, l := range current {
			held[l.PermissionID] = struct{}{}
		}

		var missing []rolePermissionModel
		for _, permName := range cat.Links[roleName] {
			pid, ok := permIDs[permName]
			if !ok {
				if pid, err = permissionIDByName(ctx, tx, permName); err != nil {
					return nil, err
				}
				if pid == "" {
					return nil, fmt.Errorf("permission name %q: %w", permName, store.ErrUnknownReference)
				}
			}
			if _, ok := held[pid]; ok {
				continue
			}
			held[pid] = struct{}{}
			missing = append(missing, rolePermissionModel{RoleID: rid, PermissionID: pid, CreatedAt: linkedAt})
		}
		if len(missing) == 0 {
			continue
		}
		insert := tx.NewInsert(&missing).OnConflict("(role_id, permission_id) DO NOTHING")
		if _, err := insert.Exec(ctx); err != nil {
			return nil, mapError(err, "seed role permissions")
		}
		for _, l := range missing {
			res.Links[parseID(rid)] = append(res.Links[parseID(rid)], parseID(l.PermissionID))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("charter: commit tx: %w", err)
	}
	return res, nil
}

// roleIDByName returns "" when no role has the name.
func roleIDByName(ctx context.Context, tx *pgdriver.PgTx, name string) (string, error) {
	m := new(roleModel)
	err := tx.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapError(err, fmt.Sprintf("role %q", name))
	}
	return m.ID, nil
}

// permissionIDByName returns "" when no permission has the name.
func permissionIDByName(ctx context.Context, tx *pgdriver.PgTx, name string) (string, error) {
	m := new(permissionModel)
	err := tx.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapError(err, fmt.Sprintf("permission %q", name))
	}
	return m.ID, nil
}
