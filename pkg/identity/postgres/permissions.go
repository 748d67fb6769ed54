package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// GetPermission fetches a permission by ID or exact name
func (s *Store) GetPermission(ctx context.Context, ident identity.Identifier) (*identity.Permission, error) {
	perm := &identity.Permission{}
	err := s.getByIDOrName(ctx, ident, "Permission", "permissions", "id, name, created", "name",
		func(row interface{ Scan(...interface{}) error }) error {
			return row.Scan(&perm.ID, &perm.Name, &perm.Created)
		})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// ListPermissions returns the filtered total and the requested page. The
// name filter is case-insensitive substring match.
func (s *Store) ListPermissions(ctx context.Context, filter identity.NameFilter, page identity.Page) (int64, []identity.Permission, error) {
	where := ""
	args := []interface{}{}
	argPos := 1

	if filter.Name != "" {
		where = fmt.Sprintf(" WHERE name ILIKE $%d", argPos)
		args = append(args, "%"+filter.Name+"%")
		argPos++
	}

	var total int64
	if err := s.conn().QueryRowContext(ctx, "SELECT COUNT(id) FROM permissions"+where, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count permissions: %w", err)
	}

	query := fmt.Sprintf("SELECT id, name, created FROM permissions%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, page.OrderBy, page.OrderDir, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	perms := []identity.Permission{}
	for rows.Next() {
		var perm identity.Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Created); err != nil {
			return 0, nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return total, perms, nil
}

// CreatePermission adds a permission to the shared pool. Only reachable via
// the admin CLI; the HTTP permission surface is read-only.
func (s *Store) CreatePermission(ctx context.Context, name string) (*identity.Permission, error) {
	var existing int
	if err := s.conn().QueryRowContext(ctx, "SELECT COUNT(id) FROM permissions WHERE name = $1", name).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check existing permission: %w", err)
	}
	if existing > 0 {
		return nil, identity.NewError(identity.CodeConflict, "A permission with this name already exists")
	}

	perm := &identity.Permission{Name: name}
	err := s.conn().QueryRowContext(ctx,
		"INSERT INTO permissions (name) VALUES ($1) RETURNING id, created", name).
		Scan(&perm.ID, &perm.Created)
	if isUniqueViolation(err) {
		return nil, identity.Errorf(identity.CodeConflict, "permission with name '%s' already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return perm, nil
}

// GetPermissionsByNames fetches permissions by exact names. If any name is
// missing the error lists the names that were found.
func (s *Store) GetPermissionsByNames(ctx context.Context, names []string) ([]identity.Permission, error) {
	if len(names) == 0 {
		return []identity.Permission{}, nil
	}

	rows, err := s.conn().QueryContext(ctx,
		"SELECT id, name, created FROM permissions WHERE name = ANY($1) ORDER BY id", pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions by names: %w", err)
	}
	defer rows.Close()

	perms := []identity.Permission{}
	found := []string{}
	for rows.Next() {
		var perm identity.Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Created); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
		found = append(found, perm.Name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	if len(perms) < len(names) {
		return nil, identity.Errorf(identity.CodeInvalid,
			"One or more Permissions not found, found: %s", strings.Join(found, ", "))
	}

	return perms, nil
}
