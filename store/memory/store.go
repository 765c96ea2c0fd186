// Package memory provides an in-memory implementation of the Charter
// composite store. It is intended for testing and development.
//
// Every batch operation validates all of its references before applying
// any change, so a failed call leaves the store exactly as it was.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

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

// Store is a thread-safe in-memory store for all Charter entities.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	principals  map[id.PrincipalID]*principal.Principal
	roles       map[id.RoleID]*role.Role
	permissions map[id.PermissionID]*permission.Permission

	principalRoles       map[principal.Ref]map[id.RoleID]time.Time
	principalPermissions map[principal.Ref]map[id.PermissionID]time.Time
	rolePermissions      map[id.RoleID]map[id.PermissionID]time.Time
}

// Option configures the memory store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.principals = make(map[id.PrincipalID]*principal.Principal)
	s.roles = make(map[id.RoleID]*role.Role)
	s.permissions = make(map[id.PermissionID]*permission.Permission)
	s.principalRoles = make(map[principal.Ref]map[id.RoleID]time.Time)
	s.principalPermissions = make(map[principal.Ref]map[id.PermissionID]time.Time)
	s.rolePermissions = make(map[id.RoleID]map[id.PermissionID]time.Time)
}

// Reset drops every entity and grant.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Seed applies cat under the write lock. The maps are snapshotted first and
// restored if any step fails.
func (s *Store) Seed(_ context.Context, cat *store.Catalog) (*store.SeedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	res, err := s.seed(cat)
	if err != nil {
		s.restore(snap)
		return nil, err
	}
	return res, nil
}

func (s *Store) seed(cat *store.Catalog) (*store.SeedResult, error) {
	if cat.Reset {
		s.reset()
	}
	now := s.now()
	res := &store.SeedResult{Links: make(map[id.RoleID][]id.PermissionID)}

	for _, p := range cat.Permissions {
		if s.findPermissionByName(p.Name) != nil {
			continue
		}
		if err := entity.BeforeCreate(p, now); err != nil {
			return nil, err
		}
		s.permissions[p.ID] = copyPermission(p)
		res.Permissions = append(res.Permissions, copyPermission(p))
	}
	for _, r := range cat.Roles {
		if s.findRoleByName(r.Name) != nil {
			continue
		}
		if err := entity.BeforeCreate(r, now); err != nil {
			return nil, err
		}
		s.roles[r.ID] = copyRole(r)
		res.Roles = append(res.Roles, copyRole(r))
	}

	linkedAt := entity.Now(now)
	for _, roleName := range slices.Sorted(maps.Keys(cat.Links)) {
		r := s.findRoleByName(roleName)
		if r == nil {
			return nil, fmt.Errorf("role name %q: %w", roleName, store.ErrUnknownReference)
		}
		for _, permName := range cat.Links[roleName] {
			p := s.findPermissionByName(permName)
			if p == nil {
				return nil, fmt.Errorf("permission name %q: %w", permName, store.ErrUnknownReference)
			}
			held := s.rolePermissions[r.ID]
			if _, ok := held[p.ID]; ok {
				continue
			}
			if held == nil {
				held = make(map[id.PermissionID]time.Time)
				s.rolePermissions[r.ID] = held
			}
			held[p.ID] = linkedAt
			res.Links[r.ID] = append(res.Links[r.ID], p.ID)
		}
	}
	return res, nil
}

type snapshot struct {
	principals           map[id.PrincipalID]*principal.Principal
	roles                map[id.RoleID]*role.Role
	permissions          map[id.PermissionID]*permission.Permission
	principalRoles       map[principal.Ref]map[id.RoleID]time.Time
	principalPermissions map[principal.Ref]map[id.PermissionID]time.Time
	rolePermissions      map[id.RoleID]map[id.PermissionID]time.Time
}

// snapshot copies every map. Entities are stored as private copies and
// replaced rather than mutated, so the values can be shared.
func (s *Store) snapshot() snapshot {
	return snapshot{
		principals:           maps.Clone(s.principals),
		roles:                maps.Clone(s.roles),
		permissions:          maps.Clone(s.permissions),
		principalRoles:       cloneNested(s.principalRoles),
		principalPermissions: cloneNested(s.principalPermissions),
		rolePermissions:      cloneNested(s.rolePermissions),
	}
}

func (s *Store) restore(snap snapshot) {
	s.principals = snap.principals
	s.roles = snap.roles
	s.permissions = snap.permissions
	s.principalRoles = snap.principalRoles
	s.principalPermissions = snap.principalPermissions
	s.rolePermissions = snap.rolePermissions
}

func cloneNested[K, V comparable](m map[K]map[V]time.Time) map[K]map[V]time.Time {
	out := make(map[K]map[V]time.Time, len(m))
	for k, inner := range m {
		out[k] = maps.Clone(inner)
	}
	return out
}

// ──────────────────────────────────────────────────
// Principal Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePrincipal(_ context.Context, p *principal.Principal) error {
	if err := entity.BeforeCreate(p, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.principals[p.ID]; ok {
		return fmt.Errorf("principal %s: %w", p.ID, store.ErrDuplicate)
	}
	if p.Email != "" && s.findPrincipalByEmail(p.Kind, p.Email) != nil {
		return fmt.Errorf("principal email %q: %w", p.Email, store.ErrDuplicate)
	}
	s.principals[p.ID] = copyPrincipal(p)
	return nil
}

func (s *Store) GetPrincipal(_ context.Context, principalID id.PrincipalID) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", principalID, store.ErrNotFound)
	}
	return copyPrincipal(p), nil
}

func (s *Store) GetPrincipalByEmail(_ context.Context, kind principal.Kind, email string) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.findPrincipalByEmail(kind, email); p != nil {
		return copyPrincipal(p), nil
	}
	return nil, fmt.Errorf("principal email %q: %w", email, store.ErrNotFound)
}

func (s *Store) findPrincipalByEmail(kind principal.Kind, email string) *principal.Principal {
	for _, p := range s.principals {
		if p.Kind == kind && strings.EqualFold(p.Email, email) {
			return p
		}
	}
	return nil
}

func (s *Store) UpdatePrincipal(_ context.Context, p *principal.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.principals[p.ID]
	if !ok {
		return fmt.Errorf("principal %s: %w", p.ID, store.ErrNotFound)
	}
	if err := principal.CheckActivation(old, p); err != nil {
		return err
	}
	if err := entity.BeforeUpdate(old, p, s.now()); err != nil {
		return err
	}
	if p.Email != "" {
		if other := s.findPrincipalByEmail(p.Kind, p.Email); other != nil && other.ID != p.ID {
			return fmt.Errorf("principal email %q: %w", p.Email, store.ErrDuplicate)
		}
	}
	s.principals[p.ID] = copyPrincipal(p)
	return nil
}

func (s *Store) DeletePrincipal(_ context.Context, principalID id.PrincipalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return fmt.Errorf("principal %s: %w", principalID, store.ErrNotFound)
	}
	ref := p.Ref()
	delete(s.principalRoles, ref)
	delete(s.principalPermissions, ref)
	delete(s.principals, principalID)
	return nil
}

func (s *Store) ListPrincipals(_ context.Context, filter *principal.ListFilter) ([]*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*principal.Principal, 0, len(s.principals))
	for _, p := range s.principals {
		if filter != nil {
			if filter.Kind != "" && p.Kind != filter.Kind {
				continue
			}
			if filter.Active != nil && p.Active != *filter.Active {
				continue
			}
			if filter.Search != "" && !containsFold(p.FullName()+" "+p.Email, filter.Search) {
				continue
			}
		}
		result = append(result, copyPrincipal(p))
	}
	sortByCreation(result, func(p *principal.Principal) *entity.Record { return &p.Record })
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountPrincipals(ctx context.Context, filter *principal.ListFilter) (int64, error) {
	list, err := s.ListPrincipals(ctx, unpaged(filter))
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ActivatePrincipal(_ context.Context, ref principal.Ref, verifiedAt time.Time, roleIDs []id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePrincipal(ref)
	if err != nil {
		return err
	}
	roleIDs = grant.Dedupe(roleIDs)
	if err := s.requireRoles(roleIDs); err != nil {
		return err
	}

	now := entity.Now(s.now())
	verified := entity.Now(verifiedAt)
	updated := copyPrincipal(p)
	updated.Active = true
	updated.EmailVerifiedAt = &verified
	updated.UpdatedAt = now
	s.principals[p.ID] = updated
	s.addPrincipalRoles(ref, roleIDs, now)
	return nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	if err := entity.BeforeCreate(r, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrDuplicate)
	}
	if s.findRoleByName(r.Name) != nil {
		return fmt.Errorf("role name %q: %w", r.Name, store.ErrDuplicate)
	}
	s.roles[r.ID] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.findRoleByName(name); r != nil {
		return copyRole(r), nil
	}
	return nil, fmt.Errorf("role name %q: %w", name, store.ErrNotFound)
}

func (s *Store) findRoleByName(name string) *role.Role {
	for _, r := range s.roles {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.roles[r.ID]
	if !ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	if err := entity.BeforeUpdate(old, r, s.now()); err != nil {
		return err
	}
	s.roles[r.ID] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	delete(s.roles, roleID)
	delete(s.rolePermissions, roleID)
	for ref, held := range s.principalRoles {
		delete(held, roleID)
		if len(held) == 0 {
			delete(s.principalRoles, ref)
		}
	}
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if len(filter.Names) > 0 && !slices.Contains(filter.Names, r.Name) {
				continue
			}
			if filter.Search != "" && !containsFold(r.Name+" "+r.DisplayName, filter.Search) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sortByCreation(result, func(r *role.Role) *entity.Record { return &r.Record })
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	var f *role.ListFilter
	if filter != nil {
		c := *filter
		c.Limit, c.Offset = 0, 0
		f = &c
	}
	list, err := s.ListRoles(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListRolesForPrincipal(_ context.Context, ref principal.Ref) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.principalRoles[ref]
	result := make([]*role.Role, 0, len(held))
	for rid := range held {
		if r, ok := s.roles[rid]; ok {
			result = append(result, copyRole(r))
		}
	}
	sortByCreation(result, func(r *role.Role) *entity.Record { return &r.Record })
	return result, nil
}

func (s *Store) ListRolePermissions(_ context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms := s.rolePermissions[roleID]
	result := make([]id.PermissionID, 0, len(perms))
	for pid := range perms {
		result = append(result, pid)
	}
	slices.SortFunc(result, compareIDs)
	return result, nil
}

func (s *Store) AttachRolePermissions(_ context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrUnknownReference)
	}
	permIDs = grant.Dedupe(permIDs)
	if err := s.requirePermissions(permIDs); err != nil {
		return err
	}
	now := entity.Now(s.now())
	held := s.rolePermissions[roleID]
	if held == nil {
		held = make(map[id.PermissionID]time.Time, len(permIDs))
		s.rolePermissions[roleID] = held
	}
	for _, pid := range permIDs {
		if _, ok := held[pid]; !ok {
			held[pid] = now
		}
	}
	return nil
}

func (s *Store) DetachRolePermissions(_ context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.rolePermissions[roleID]
	if !ok {
		return nil
	}
	for _, pid := range permIDs {
		delete(held, pid)
	}
	if len(held) == 0 {
		delete(s.rolePermissions, roleID)
	}
	return nil
}

func (s *Store) SetRolePermissions(_ context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrUnknownReference)
	}
	permIDs = grant.Dedupe(permIDs)
	if err := s.requirePermissions(permIDs); err != nil {
		return err
	}
	now := entity.Now(s.now())
	prev := s.rolePermissions[roleID]
	next := make(map[id.PermissionID]time.Time, len(permIDs))
	for _, pid := range permIDs {
		if at, ok := prev[pid]; ok {
			next[pid] = at
			continue
		}
		next[pid] = now
	}
	s.rolePermissions[roleID] = next
	return nil
}

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	if err := entity.BeforeCreate(p, s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID]; ok {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrDuplicate)
	}
	if s.findPermissionByName(p.Name) != nil {
		return fmt.Errorf("permission name %q: %w", p.Name, store.ErrDuplicate)
	}
	s.permissions[p.ID] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByName(_ context.Context, name string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.findPermissionByName(name); p != nil {
		return copyPermission(p), nil
	}
	return nil, fmt.Errorf("permission name %q: %w", name, store.ErrNotFound)
}

func (s *Store) findPermissionByName(name string) *permission.Permission {
	for _, p := range s.permissions {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.permissions[p.ID]
	if !ok {
		return fmt.Errorf("permission %s: %w", p.ID, store.ErrNotFound)
	}
	if err := entity.BeforeUpdate(old, p, s.now()); err != nil {
		return err
	}
	s.permissions[p.ID] = copyPermission(p)
	return nil
}

func (s *Store) DeletePermission(_ context.Context, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[permID]; !ok {
		return fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	delete(s.permissions, permID)
	for rid, held := range s.rolePermissions {
		delete(held, permID)
		if len(held) == 0 {
			delete(s.rolePermissions, rid)
		}
	}
	for ref, held := range s.principalPermissions {
		delete(held, permID)
		if len(held) == 0 {
			delete(s.principalPermissions, ref)
		}
	}
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if len(filter.Names) > 0 && !slices.Contains(filter.Names, p.Name) {
				continue
			}
			if filter.Resource != "" && p.Resource != filter.Resource {
				continue
			}
			if filter.Action != "" && p.Action != filter.Action {
				continue
			}
			if filter.Search != "" && !containsFold(p.Name+" "+p.DisplayName, filter.Search) {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sortByCreation(result, func(p *permission.Permission) *entity.Record { return &p.Record })
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	var f *permission.ListFilter
	if filter != nil {
		c := *filter
		c.Limit, c.Offset = 0, 0
		f = &c
	}
	list, err := s.ListPermissions(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListPermissionsByRole(_ context.Context, roleID id.RoleID) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectPermissions(s.rolePermissions[roleID]), nil
}

func (s *Store) ListPermissionsForPrincipal(_ context.Context, ref principal.Ref) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectPermissions(s.principalPermissions[ref]), nil
}

func (s *Store) collectPermissions(held map[id.PermissionID]time.Time) []*permission.Permission {
	result := make([]*permission.Permission, 0, len(held))
	for pid := range held {
		if p, ok := s.permissions[pid]; ok {
			result = append(result, copyPermission(p))
		}
	}
	sortByCreation(result, func(p *permission.Permission) *entity.Record { return &p.Record })
	return result
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) AttachPrincipalRoles(_ context.Context, ref principal.Ref, roleIDs []id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requirePrincipal(ref); err != nil {
		return err
	}
	roleIDs = grant.Dedupe(roleIDs)
	if err := s.requireRoles(roleIDs); err != nil {
		return err
	}
	s.addPrincipalRoles(ref, roleIDs, entity.Now(s.now()))
	return nil
}

func (s *Store) addPrincipalRoles(ref principal.Ref, roleIDs []id.RoleID, now time.Time) {
	if len(roleIDs) == 0 {
		return
	}
	held := s.principalRoles[ref]
	if held == nil {
		held = make(map[id.RoleID]time.Time, len(roleIDs))
		s.principalRoles[ref] = held
	}
	for _, rid := range roleIDs {
		if _, ok := held[rid]; !ok {
			held[rid] = now
		}
	}
}

func (s *Store) DetachPrincipalRoles(_ context.Context, ref principal.Ref, roleIDs []id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.principalRoles[ref]
	if !ok {
		return nil
	}
	for _, rid := range roleIDs {
		delete(held, rid)
	}
	if len(held) == 0 {
		delete(s.principalRoles, ref)
	}
	return nil
}

func (s *Store) AttachPrincipalPermissions(_ context.Context, ref principal.Ref, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requirePrincipal(ref); err != nil {
		return err
	}
	permIDs = grant.Dedupe(permIDs)
	if err := s.requirePermissions(permIDs); err != nil {
		return err
	}
	if len(permIDs) == 0 {
		return nil
	}
	now := entity.Now(s.now())
	held := s.principalPermissions[ref]
	if held == nil {
		held = make(map[id.PermissionID]time.Time, len(permIDs))
		s.principalPermissions[ref] = held
	}
	for _, pid := range permIDs {
		if _, ok := held[pid]; !ok {
			held[pid] = now
		}
	}
	return nil
}

func (s *Store) DetachPrincipalPermissions(_ context.Context, ref principal.Ref, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.principalPermissions[ref]
	if !ok {
		return nil
	}
	for _, pid := range permIDs {
		delete(held, pid)
	}
	if len(held) == 0 {
		delete(s.principalPermissions, ref)
	}
	return nil
}

func (s *Store) ListPrincipalRoles(_ context.Context, ref principal.Ref) ([]*grant.PrincipalRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.principalRoles[ref]
	result := make([]*grant.PrincipalRole, 0, len(held))
	for rid, at := range held {
		result = append(result, &grant.PrincipalRole{
			PrincipalID:   ref.ID,
			PrincipalKind: ref.Kind,
			RoleID:        rid,
			CreatedAt:     at,
		})
	}
	slices.SortFunc(result, func(a, b *grant.PrincipalRole) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), compareIDs(a.RoleID, b.RoleID))
	})
	return result, nil
}

func (s *Store) ListPrincipalPermissions(_ context.Context, ref principal.Ref) ([]*grant.PrincipalPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.principalPermissions[ref]
	result := make([]*grant.PrincipalPermission, 0, len(held))
	for pid, at := range held {
		result = append(result, &grant.PrincipalPermission{
			PrincipalID:   ref.ID,
			PrincipalKind: ref.Kind,
			PermissionID:  pid,
			CreatedAt:     at,
		})
	}
	slices.SortFunc(result, func(a, b *grant.PrincipalPermission) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), compareIDs(a.PermissionID, b.PermissionID))
	})
	return result, nil
}

func (s *Store) ListRoleHolders(_ context.Context, roleID id.RoleID) ([]principal.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []principal.Ref
	for ref, held := range s.principalRoles {
		if _, ok := held[roleID]; ok {
			result = append(result, ref)
		}
	}
	slices.SortFunc(result, func(a, b principal.Ref) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), compareIDs(a.ID, b.ID))
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Reference checks (caller holds the write lock)
// ──────────────────────────────────────────────────

func (s *Store) requirePrincipal(ref principal.Ref) (*principal.Principal, error) {
	p, ok := s.principals[ref.ID]
	if !ok || p.Kind != ref.Kind {
		return nil, fmt.Errorf("principal %s: %w", ref, store.ErrUnknownReference)
	}
	return p, nil
}

func (s *Store) requireRoles(roleIDs []id.RoleID) error {
	for _, rid := range roleIDs {
		if _, ok := s.roles[rid]; !ok {
			return fmt.Errorf("role %s: %w", rid, store.ErrUnknownReference)
		}
	}
	return nil
}

func (s *Store) requirePermissions(permIDs []id.PermissionID) error {
	for _, pid := range permIDs {
		if _, ok := s.permissions[pid]; !ok {
			return fmt.Errorf("permission %s: %w", pid, store.ErrUnknownReference)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyPrincipal(p *principal.Principal) *principal.Principal {
	c := *p
	if p.EmailVerifiedAt != nil {
		t := *p.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	return &c
}

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	return &c
}

func compareIDs(a, b id.ID) int {
	return strings.Compare(a.String(), b.String())
}

func sortByCreation[T any](items []*T, rec func(*T) *entity.Record) {
	slices.SortFunc(items, func(a, b *T) int {
		ra, rb := rec(a), rec(b)
		return cmp.Or(ra.CreatedAt.Compare(rb.CreatedAt), compareIDs(ra.ID, rb.ID))
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func unpaged(f *principal.ListFilter) *principal.ListFilter {
	if f == nil {
		return nil
	}
	c := *f
	c.Limit, c.Offset = 0, 0
	return &c
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
