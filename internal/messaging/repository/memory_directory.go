package repository

import (
	"context"
	"sort"
	"sync"

	"daycare_messaging_service/internal/messaging/domain"
)

// MemoryDirectory in-process Directory, placement changes apply to the next lookup
type MemoryDirectory struct {
	mu       sync.RWMutex
	// keys are tenant|id
	users    map[string]domain.User
	groups   map[string]domain.Group
	children map[string]string
	parents  map[string][]string
}

// NewMemoryDirectory create an empty MemoryDirectory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:    make(map[string]domain.User),
		groups:   make(map[string]domain.Group),
		children: make(map[string]string),
		parents:  make(map[string][]string),
	}
}

func dirKey(tenantID, id string) string {
	return tenantID + "|" + id
}

// AddUser add or replace a user
func (d *MemoryDirectory) AddUser(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[dirKey(u.TenantID, u.ID)] = u
}

// AddGroup add or replace a group
func (d *MemoryDirectory) AddGroup(g domain.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[dirKey(g.TenantID, g.ID)] = g
}

// PlaceChild move a child into groupID, empty groupID removes it from any group
func (d *MemoryDirectory) PlaceChild(tenantID, childID, groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children[dirKey(tenantID, childID)] = groupID
}

// LinkParent attach a parent to a child
func (d *MemoryDirectory) LinkParent(tenantID, childID, parentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := dirKey(tenantID, childID)
	d.parents[k] = append(d.parents[k], parentID)
}

// GetUser see Directory
func (d *MemoryDirectory) GetUser(_ context.Context, tenantID, userID string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[dirKey(tenantID, userID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// GetUsers see Directory
func (d *MemoryDirectory) GetUsers(_ context.Context, tenantID string, ids []string) (map[string]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users[dirKey(tenantID, id)]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *MemoryDirectory) usersWhere(tenantID string, match func(domain.User) bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	for _, u := range d.users {
		if u.TenantID == tenantID && match(u) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// StaffIDs see Directory
func (d *MemoryDirectory) StaffIDs(_ context.Context, tenantID string) ([]string, error) {
	return d.usersWhere(tenantID, func(u domain.User) bool { return u.Role.IsStaff() }), nil
}

// ParentIDs see Directory
func (d *MemoryDirectory) ParentIDs(_ context.Context, tenantID string) ([]string, error) {
	return d.usersWhere(tenantID, func(u domain.User) bool { return u.Role.IsParent() }), nil
}

// GetGroup see Directory
func (d *MemoryDirectory) GetGroup(_ context.Context, tenantID, groupID string) (*domain.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	g, ok := d.groups[dirKey(tenantID, groupID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

// ListGroups see Directory
func (d *MemoryDirectory) ListGroups(_ context.Context, tenantID string) ([]domain.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var groups []domain.Group
	for _, g := range d.groups {
		if g.TenantID == tenantID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// GroupIDsOfParent see Directory
func (d *MemoryDirectory) GroupIDsOfParent(_ context.Context, tenantID, parentID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	for childKey, parents := range d.parents {
		groupID := d.children[childKey]
		if groupID == "" || !hasPrefixKey(childKey, tenantID) {
			continue
		}
		for _, p := range parents {
			if p == parentID {
				seen[groupID] = struct{}{}
			}
		}
	}
	return sortedKeys(seen), nil
}

// ParentIDsOfGroup see Directory
func (d *MemoryDirectory) ParentIDsOfGroup(_ context.Context, tenantID, groupID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	for childKey, g := range d.children {
		if g != groupID || !hasPrefixKey(childKey, tenantID) {
			continue
		}
		for _, p := range d.parents[childKey] {
			seen[p] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func hasPrefixKey(key, tenantID string) bool {
	prefix := tenantID + "|"
	return len(key) > len(prefix) && key[:len(prefix)] == prefix
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
