package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
// The constraint is the backstop for the check-then-insert pre-checks: two
// concurrent creates can both pass the pre-check, but only one insert lands.
const uniqueViolation = "23505"

// Store implements identity.Store on PostgreSQL
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewStore creates a store over an injected connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Reset swaps the underlying connection pool. Used for test isolation; the
// old pool is not closed.
func (s *Store) Reset(db *sql.DB) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

func (s *Store) conn() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const userColumns = "id, email, hashed_password, is_active, is_admin, last_login, created"

func scanUser(row interface{ Scan(...interface{}) error }) (*identity.User, error) {
	user := &identity.User{}
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword,
		&user.IsActive, &user.IsAdmin, &user.LastLogin, &user.Created)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail fetches a user by exact email match with groups and
// permissions eagerly loaded
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.getUser(ctx, identity.ByName(email))
}

// GetUser fetches a user by ID or exact email match
func (s *Store) GetUser(ctx context.Context, ident identity.Identifier) (*identity.User, error) {
	return s.getUser(ctx, ident)
}

func (s *Store) getUser(ctx context.Context, ident identity.Identifier) (*identity.User, error) {
	var (
		row         *sql.Row
		notFoundMsg string
	)
	if ident.IsID() {
		query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
		row = s.conn().QueryRowContext(ctx, query, ident.ID())
		notFoundMsg = fmt.Sprintf("User with ID %d not found", ident.ID())
	} else {
		query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
		row = s.conn().QueryRowContext(ctx, query, ident.Name())
		notFoundMsg = fmt.Sprintf("User with email '%s' not found", ident.Name())
	}

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, identity.NewError(identity.CodeNotFound, notFoundMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.loadUserGroups(ctx, []*identity.User{user}); err != nil {
		return nil, err
	}

	return user, nil
}

// loadUserGroups eagerly attaches groups (with permissions) to the given
// users so downstream permission checks need no further queries
func (s *Store) loadUserGroups(ctx context.Context, users []*identity.User) error {
	if len(users) == 0 {
		return nil
	}

	byID := make(map[int64]*identity.User, len(users))
	ids := make([]int64, 0, len(users))
	for _, user := range users {
		user.Groups = []identity.Group{}
		byID[user.ID] = user
		ids = append(ids, user.ID)
	}

	query := `
		SELECT ug.user_id, g.id, g.name, g.created
		FROM user_groups ug
		JOIN groups g ON g.id = ug.group_id
		WHERE ug.user_id = ANY($1)
		ORDER BY g.id
	`
	rows, err := s.conn().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load user groups: %w", err)
	}
	defer rows.Close()

	type membership struct {
		userID  int64
		groupID int64
	}
	groupIDs := make([]int64, 0)
	memberships := make([]membership, 0)
	groups := make(map[int64]*identity.Group)
	for rows.Next() {
		var userID int64
		group := identity.Group{Permissions: []identity.Permission{}}
		if err := rows.Scan(&userID, &group.ID, &group.Name, &group.Created); err != nil {
			return fmt.Errorf("failed to scan group: %w", err)
		}
		if _, seen := groups[group.ID]; !seen {
			groups[group.ID] = &group
			groupIDs = append(groupIDs, group.ID)
		}
		memberships = append(memberships, membership{userID: userID, groupID: group.ID})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate groups: %w", err)
	}

	if err := s.loadGroupPermissions(ctx, groups, groupIDs); err != nil {
		return err
	}

	for _, m := range memberships {
		byID[m.userID].Groups = append(byID[m.userID].Groups, *groups[m.groupID])
	}

	return nil
}

// loadGroupPermissions attaches permission sets to the given groups
func (s *Store) loadGroupPermissions(ctx context.Context, groups map[int64]*identity.Group, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}

	query := `
		SELECT gp.group_id, p.id, p.name, p.created
		FROM group_permissions gp
		JOIN permissions p ON p.id = gp.permission_id
		WHERE gp.group_id = ANY($1)
		ORDER BY p.id
	`
	rows, err := s.conn().QueryContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return fmt.Errorf("failed to load group permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID int64
		var perm identity.Permission
		if err := rows.Scan(&groupID, &perm.ID, &perm.Name, &perm.Created); err != nil {
			return fmt.Errorf("failed to scan permission: %w", err)
		}
		if group, ok := groups[groupID]; ok {
			group.Permissions = append(group.Permissions, perm)
		}
	}
	return rows.Err()
}

// ListUsers returns the filtered total and the requested page, groups included
func (s *Store) ListUsers(ctx context.Context, filter identity.UserFilter, page identity.Page) (int64, []identity.User, error) {
	whereClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.IsActive != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filter.IsActive)
		argPos++
	}
	if filter.IsAdmin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_admin = $%d", argPos))
		args = append(args, *filter.IsAdmin)
		argPos++
	}

	where := ""
	if len(whereClauses) > 0 {
		where = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(id) FROM users" + where
	if err := s.conn().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count users: %w", err)
	}

	// page.OrderBy comes from a closed column map, never from user input
	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		userColumns, where, page.OrderBy, page.OrderDir, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []identity.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	refs := make([]*identity.User, len(users))
	for i := range users {
		refs[i] = &users[i]
	}
	if err := s.loadUserGroups(ctx, refs); err != nil {
		return 0, nil, err
	}

	return total, users, nil
}

// CreateUser inserts a user. The email pre-check gives an early Conflict; the
// unique constraint catches the race and is mapped to a distinct Conflict.
func (s *Store) CreateUser(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*identity.User, error) {
	var existing int
	err := s.conn().QueryRowContext(ctx, "SELECT COUNT(id) FROM users WHERE email = $1", email).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing > 0 {
		return nil, identity.NewError(identity.CodeConflict, "A user with this email is already registered")
	}

	user := &identity.User{
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       isActive,
		IsAdmin:        isAdmin,
		Groups:         []identity.Group{},
	}

	query := `
		INSERT INTO users (email, hashed_password, is_active, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created
	`
	err = s.conn().QueryRowContext(ctx, query, email, hashedPassword, isActive, isAdmin).
		Scan(&user.ID, &user.Created)
	if isUniqueViolation(err) {
		return nil, identity.Errorf(identity.CodeConflict, "user with email '%s' already exists", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// UpdateUser applies the non-nil fields of the update. When Groups is set the
// full membership is replaced with the named groups; unknown names yield a
// validation error listing the names that were found.
func (s *Store) UpdateUser(ctx context.Context, id int64, update identity.UserUpdate) (*identity.User, error) {
	if _, err := s.getUserRow(ctx, id); err != nil {
		return nil, err
	}

	var groups []identity.Group
	if update.Groups != nil {
		var err error
		groups, err = s.GetGroupsByNames(ctx, *update.Groups)
		if err != nil {
			return nil, err
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if update.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *update.IsActive)
		argPos++
	}
	if update.IsAdmin != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_admin = $%d", argPos))
		args = append(args, *update.IsAdmin)
		argPos++
	}

	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(setClauses) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	if update.Groups != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM user_groups WHERE user_id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to clear user groups: %w", err)
		}
		for _, group := range groups {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)", id, group.ID); err != nil {
				return nil, fmt.Errorf("failed to assign group %q: %w", group.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}

	return s.GetUser(ctx, identity.ByID(id))
}

// getUserRow fetches the bare user row without relationships
func (s *Store) getUserRow(ctx context.Context, id int64) (*identity.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	user, err := scanUser(s.conn().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, identity.Errorf(identity.CodeNotFound, "User with ID %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUserPassword replaces the stored hash
func (s *Store) SetUserPassword(ctx context.Context, id int64, hashedPassword string) error {
	result, err := s.conn().ExecContext(ctx,
		"UPDATE users SET hashed_password = $1 WHERE id = $2", hashedPassword, id)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return identity.Errorf(identity.CodeNotFound, "User with ID %d not found", id)
	}
	return nil
}

// TouchLastLogin stamps last_login with the current time
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.conn().ExecContext(ctx,
		"UPDATE users SET last_login = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
