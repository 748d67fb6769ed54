package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// getByIDOrName is the shared id-vs-name dispatch for named entity kinds.
// Zero rows is NotFound; more than one row for a name means the uniqueness
// constraint was violated at the storage layer and is reported as an
// integrity anomaly. Kinds without a name column reject name identifiers.
func (s *Store) getByIDOrName(ctx context.Context, ident identity.Identifier,
	kind, table, columns, nameColumn string, scan func(interface{ Scan(...interface{}) error }) error) error {

	if ident.IsID() {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, table)
		err := scan(s.conn().QueryRowContext(ctx, query, ident.ID()))
		if err == sql.ErrNoRows {
			return identity.Errorf(identity.CodeNotFound, "%s with ID %d not found", kind, ident.ID())
		}
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", strings.ToLower(kind), err)
		}
		return nil
	}

	if nameColumn == "" {
		return identity.Errorf(identity.CodeBadRequest, "Can only query %s with an integer ID", kind)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", columns, table, nameColumn)
	rows, err := s.conn().QueryContext(ctx, query, ident.Name())
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", strings.ToLower(kind), err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			return identity.Errorf(identity.CodeIntegrity, "Multiple %ss found for name '%s'", kind, ident.Name())
		}
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", strings.ToLower(kind), err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate %ss: %w", strings.ToLower(kind), err)
	}
	if count == 0 {
		return identity.Errorf(identity.CodeNotFound, "%s with name '%s' not found", kind, ident.Name())
	}
	return nil
}

// GetGroup fetches a group by ID or exact name, permissions included
func (s *Store) GetGroup(ctx context.Context, ident identity.Identifier) (*identity.Group, error) {
	group := &identity.Group{Permissions: []identity.Permission{}}
	err := s.getByIDOrName(ctx, ident, "Group", "groups", "id, name, created", "name",
		func(row interface{ Scan(...interface{}) error }) error {
			return row.Scan(&group.ID, &group.Name, &group.Created)
		})
	if err != nil {
		return nil, err
	}

	groups := map[int64]*identity.Group{group.ID: group}
	if err := s.loadGroupPermissions(ctx, groups, []int64{group.ID}); err != nil {
		return nil, err
	}

	return group, nil
}

// ListGroups returns the filtered total and the requested page. The name
// filter is case-insensitive substring match.
func (s *Store) ListGroups(ctx context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Group, error) {
	where := ""
	args := []interface{}{}
	argPos := 1

	if filter.Name != "" {
		where = fmt.Sprintf(" WHERE name ILIKE $%d", argPos)
		args = append(args, "%"+filter.Name+"%")
		argPos++
	}

	var total int64
	if err := s.conn().QueryRowContext(ctx, "SELECT COUNT(id) FROM groups"+where, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count groups: %w", err)
	}

	query := fmt.Sprintf("SELECT id, name, created FROM groups%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, page.OrderBy, page.OrderDir, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	result := []identity.Group{}
	byID := make(map[int64]*identity.Group)
	ids := []int64{}
	for rows.Next() {
		group := identity.Group{Permissions: []identity.Permission{}}
		if err := rows.Scan(&group.ID, &group.Name, &group.Created); err != nil {
			return 0, nil, fmt.Errorf("failed to scan group: %w", err)
		}
		result = append(result, group)
		ids = append(ids, group.ID)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for i := range result {
		byID[result[i].ID] = &result[i]
	}
	if err := s.loadGroupPermissions(ctx, byID, ids); err != nil {
		return 0, nil, err
	}

	return total, result, nil
}

// CreateGroup inserts a group referencing the named permissions. The name
// pre-check gives an early Conflict; the unique constraint is the backstop.
func (s *Store) CreateGroup(ctx context.Context, name string, permissionNames []string) (*identity.Group, error) {
	var existing int
	if err := s.conn().QueryRowContext(ctx, "SELECT COUNT(id) FROM groups WHERE name = $1", name).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check existing group: %w", err)
	}
	if existing > 0 {
		return nil, identity.NewError(identity.CodeConflict, "A group with this name already exists")
	}

	perms, err := s.GetPermissionsByNames(ctx, permissionNames)
	if err != nil {
		return nil, err
	}

	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group := &identity.Group{Name: name, Permissions: perms}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO groups (name) VALUES ($1) RETURNING id, created", name).
		Scan(&group.ID, &group.Created)
	if isUniqueViolation(err) {
		return nil, identity.Errorf(identity.CodeConflict, "group with name '%s' already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	for _, perm := range perms {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2)",
			group.ID, perm.ID); err != nil {
			return nil, fmt.Errorf("failed to assign permission %q: %w", perm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	return group, nil
}

// UpdateGroup applies the non-nil fields. When Permissions is set the full
// permission set is replaced with the named permissions.
func (s *Store) UpdateGroup(ctx context.Context, id int64, update identity.GroupUpdate) (*identity.Group, error) {
	if _, err := s.GetGroup(ctx, identity.ByID(id)); err != nil {
		return nil, err
	}

	var perms []identity.Permission
	if update.Permissions != nil {
		var err error
		perms, err = s.GetPermissionsByNames(ctx, *update.Permissions)
		if err != nil {
			return nil, err
		}
	}

	if update.Name != nil {
		var existing int
		err := s.conn().QueryRowContext(ctx,
			"SELECT COUNT(id) FROM groups WHERE name = $1 AND id != $2", *update.Name, id).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing group: %w", err)
		}
		if existing > 0 {
			return nil, identity.NewError(identity.CodeConflict, "A group with this name already exists")
		}
	}

	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.Name != nil {
		_, err := tx.ExecContext(ctx, "UPDATE groups SET name = $1 WHERE id = $2", *update.Name, id)
		if isUniqueViolation(err) {
			return nil, identity.Errorf(identity.CodeConflict, "group with name '%s' already exists", *update.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to rename group: %w", err)
		}
	}

	if update.Permissions != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM group_permissions WHERE group_id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to clear group permissions: %w", err)
		}
		for _, perm := range perms {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2)",
				id, perm.ID); err != nil {
				return nil, fmt.Errorf("failed to assign permission %q: %w", perm.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group update: %w", err)
	}

	return s.GetGroup(ctx, identity.ByID(id))
}

// GetGroupsByNames fetches groups by exact names. If any name is missing the
// error lists the names that were found; callers must not assume order.
func (s *Store) GetGroupsByNames(ctx context.Context, names []string) ([]identity.Group, error) {
	groups, found, err := s.groupsByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(groups) < len(names) {
		return nil, identity.Errorf(identity.CodeInvalid,
			"One or more Groups not found, found: %s", strings.Join(found, ", "))
	}
	return groups, nil
}

func (s *Store) groupsByNames(ctx context.Context, names []string) ([]identity.Group, []string, error) {
	if len(names) == 0 {
		return []identity.Group{}, []string{}, nil
	}

	rows, err := s.conn().QueryContext(ctx,
		"SELECT id, name, created FROM groups WHERE name = ANY($1) ORDER BY id", pq.Array(names))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get groups by names: %w", err)
	}
	defer rows.Close()

	groups := []identity.Group{}
	found := []string{}
	ids := []int64{}
	for rows.Next() {
		group := identity.Group{Permissions: []identity.Permission{}}
		if err := rows.Scan(&group.ID, &group.Name, &group.Created); err != nil {
			return nil, nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
		found = append(found, group.Name)
		ids = append(ids, group.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	byID := make(map[int64]*identity.Group)
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}
	if err := s.loadGroupPermissions(ctx, byID, ids); err != nil {
		return nil, nil, err
	}

	return groups, found, nil
}
