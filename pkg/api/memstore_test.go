package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// memStore is an in-memory identity.Store used to exercise the HTTP surface
// end to end without a database. It mirrors the persistent store's error
// contract: classified errors with the same messages.
type memStore struct {
	mu          sync.Mutex
	nextUser    int64
	nextGroup   int64
	nextPerm    int64
	users       map[int64]*identity.User
	groups      map[int64]*identity.Group
	permissions map[int64]*identity.Permission
	memberships map[int64][]int64 // user id -> group ids
}

func newMemStore() *memStore {
	return &memStore{
		nextUser:    1,
		nextGroup:   1,
		nextPerm:    1,
		users:       make(map[int64]*identity.User),
		groups:      make(map[int64]*identity.Group),
		permissions: make(map[int64]*identity.Permission),
		memberships: make(map[int64][]int64),
	}
}

func (m *memStore) userWithGroups(user *identity.User) *identity.User {
	out := *user
	out.Groups = []identity.Group{}
	for _, gid := range m.memberships[user.ID] {
		out.Groups = append(out.Groups, *m.groups[gid])
	}
	return &out
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return m.GetUser(ctx, identity.ByName(email))
}

func (m *memStore) GetUser(_ context.Context, ident identity.Identifier) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident.IsID() {
		if user, ok := m.users[ident.ID()]; ok {
			return m.userWithGroups(user), nil
		}
		return nil, identity.Errorf(identity.CodeNotFound, "User with ID %d not found", ident.ID())
	}
	for _, user := range m.users {
		if user.Email == ident.Name() {
			return m.userWithGroups(user), nil
		}
	}
	return nil, identity.Errorf(identity.CodeNotFound, "User with email '%s' not found", ident.Name())
}

func (m *memStore) ListUsers(_ context.Context, filter identity.UserFilter, page identity.Page) (int64, []identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []identity.User{}
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		user := m.users[id]
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		if filter.IsAdmin != nil && user.IsAdmin != *filter.IsAdmin {
			continue
		}
		matched = append(matched, *m.userWithGroups(user))
	}
	total := int64(len(matched))
	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return total, matched[start:end], nil
}

func (m *memStore) CreateUser(_ context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return nil, identity.NewError(identity.CodeConflict, "A user with this email is already registered")
		}
	}
	user := &identity.User{
		ID:             m.nextUser,
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       isActive,
		IsAdmin:        isAdmin,
		Created:        time.Now(),
	}
	m.users[user.ID] = user
	m.nextUser++
	return m.userWithGroups(user), nil
}

func (m *memStore) UpdateUser(ctx context.Context, id int64, update identity.UserUpdate) (*identity.User, error) {
	var groupIDs []int64
	if update.Groups != nil {
		groups, err := m.GetGroupsByNames(ctx, *update.Groups)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			groupIDs = append(groupIDs, g.ID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, identity.Errorf(identity.CodeNotFound, "User with ID %d not found", id)
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
	}
	if update.IsAdmin != nil {
		user.IsAdmin = *update.IsAdmin
	}
	if update.Groups != nil {
		m.memberships[id] = groupIDs
	}
	return m.userWithGroups(user), nil
}

func (m *memStore) SetUserPassword(_ context.Context, id int64, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return identity.Errorf(identity.CodeNotFound, "User with ID %d not found", id)
	}
	user.HashedPassword = hashedPassword
	return nil
}

func (m *memStore) TouchLastLogin(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		now := time.Now()
		user.LastLogin = &now
	}
	return nil
}

func (m *memStore) GetGroup(_ context.Context, ident identity.Identifier) (*identity.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident.IsID() {
		if group, ok := m.groups[ident.ID()]; ok {
			out := *group
			return &out, nil
		}
		return nil, identity.Errorf(identity.CodeNotFound, "Group with ID %d not found", ident.ID())
	}
	for _, group := range m.groups {
		if group.Name == ident.Name() {
			out := *group
			return &out, nil
		}
	}
	return nil, identity.Errorf(identity.CodeNotFound, "Group with name '%s' not found", ident.Name())
}

func (m *memStore) ListGroups(_ context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []identity.Group{}
	ids := make([]int64, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		group := m.groups[id]
		if filter.Name != "" && !strings.Contains(strings.ToLower(group.Name), strings.ToLower(filter.Name)) {
			continue
		}
		matched = append(matched, *group)
	}
	total := int64(len(matched))
	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return total, matched[start:end], nil
}

func (m *memStore) CreateGroup(ctx context.Context, name string, permissionNames []string) (*identity.Group, error) {
	perms, err := m.GetPermissionsByNames(ctx, permissionNames)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, group := range m.groups {
		if group.Name == name {
			return nil, identity.NewError(identity.CodeConflict, "A group with this name already exists")
		}
	}
	group := &identity.Group{
		ID:          m.nextGroup,
		Name:        name,
		Created:     time.Now(),
		Permissions: perms,
	}
	m.groups[group.ID] = group
	m.nextGroup++
	out := *group
	return &out, nil
}

func (m *memStore) UpdateGroup(ctx context.Context, id int64, update identity.GroupUpdate) (*identity.Group, error) {
	var perms []identity.Permission
	if update.Permissions != nil {
		var err error
		perms, err = m.GetPermissionsByNames(ctx, *update.Permissions)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[id]
	if !ok {
		return nil, identity.Errorf(identity.CodeNotFound, "Group with ID %d not found", id)
	}
	if update.Name != nil {
		for otherID, other := range m.groups {
			if otherID != id && other.Name == *update.Name {
				return nil, identity.NewError(identity.CodeConflict, "A group with this name already exists")
			}
		}
		group.Name = *update.Name
	}
	if update.Permissions != nil {
		group.Permissions = perms
	}
	out := *group
	return &out, nil
}

func (m *memStore) GetGroupsByNames(_ context.Context, names []string) ([]identity.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := []identity.Group{}
	found := []string{}
	for _, name := range names {
		for _, group := range m.groups {
			if group.Name == name {
				groups = append(groups, *group)
				found = append(found, group.Name)
				break
			}
		}
	}
	if len(groups) < len(names) {
		return nil, identity.Errorf(identity.CodeInvalid,
			"One or more Groups not found, found: %s", strings.Join(found, ", "))
	}
	return groups, nil
}

func (m *memStore) GetPermission(_ context.Context, ident identity.Identifier) (*identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident.IsID() {
		if perm, ok := m.permissions[ident.ID()]; ok {
			out := *perm
			return &out, nil
		}
		return nil, identity.Errorf(identity.CodeNotFound, "Permission with ID %d not found", ident.ID())
	}
	for _, perm := range m.permissions {
		if perm.Name == ident.Name() {
			out := *perm
			return &out, nil
		}
	}
	return nil, identity.Errorf(identity.CodeNotFound, "Permission with name '%s' not found", ident.Name())
}

func (m *memStore) ListPermissions(_ context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []identity.Permission{}
	ids := make([]int64, 0, len(m.permissions))
	for id := range m.permissions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		perm := m.permissions[id]
		if filter.Name != "" && !strings.Contains(strings.ToLower(perm.Name), strings.ToLower(filter.Name)) {
			continue
		}
		matched = append(matched, *perm)
	}
	total := int64(len(matched))
	start := page.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return total, matched[start:end], nil
}

func (m *memStore) CreatePermission(_ context.Context, name string) (*identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, perm := range m.permissions {
		if perm.Name == name {
			return nil, identity.NewError(identity.CodeConflict, "A permission with this name already exists")
		}
	}
	perm := &identity.Permission{ID: m.nextPerm, Name: name, Created: time.Now()}
	m.permissions[perm.ID] = perm
	m.nextPerm++
	out := *perm
	return &out, nil
}

func (m *memStore) GetPermissionsByNames(_ context.Context, names []string) ([]identity.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perms := []identity.Permission{}
	found := []string{}
	for _, name := range names {
		for _, perm := range m.permissions {
			if perm.Name == name {
				perms = append(perms, *perm)
				found = append(found, perm.Name)
				break
			}
		}
	}
	if len(perms) < len(names) {
		return nil, identity.Errorf(identity.CodeInvalid,
			"One or more Permissions not found, found: %s", strings.Join(found, ", "))
	}
	return perms, nil
}
