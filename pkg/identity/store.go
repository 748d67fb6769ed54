package identity

import "context"

// Store is the persistence contract for users, groups and permissions.
// Implementations must eagerly load relationships (user groups and group
// permissions) so authorization checks never trigger further queries, and
// must map storage-level unique violations to CodeConflict errors so the
// database constraint backs up the check-then-insert pre-checks.
type Store interface {
	// GetUserByEmail fetches a user by exact email match, groups included
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// GetUser fetches a user by ID or exact email, with a not-found message
	// disambiguated by the identifier tag
	GetUser(ctx context.Context, ident Identifier) (*User, error)
	// ListUsers returns the filtered total and the requested page
	ListUsers(ctx context.Context, filter UserFilter, page Page) (int64, []User, error)
	// CreateUser inserts a user; duplicate emails yield CodeConflict
	CreateUser(ctx context.Context, email, hashedPassword string, isActive, isAdmin bool) (*User, error)
	// UpdateUser applies the non-nil fields; Groups replaces membership
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error)
	// SetUserPassword replaces the stored hash
	SetUserPassword(ctx context.Context, id int64, hashedPassword string) error
	// TouchLastLogin stamps last_login with the current time
	TouchLastLogin(ctx context.Context, id int64) error

	// GetGroup fetches a group by ID or exact name
	GetGroup(ctx context.Context, ident Identifier) (*Group, error)
	// ListGroups returns the filtered total and the requested page
	ListGroups(ctx context.Context, filter NameFilter, page Page) (int64, []Group, error)
	// CreateGroup inserts a group referencing the named permissions
	CreateGroup(ctx context.Context, name string, permissionNames []string) (*Group, error)
	// UpdateGroup applies the non-nil fields; Permissions replaces the set
	UpdateGroup(ctx context.Context, id int64, update GroupUpdate) (*Group, error)
	// GetGroupsByNames fetches groups by exact names; if any are missing the
	// error lists the names that were found
	GetGroupsByNames(ctx context.Context, names []string) ([]Group, error)

	// GetPermission fetches a permission by ID or exact name
	GetPermission(ctx context.Context, ident Identifier) (*Permission, error)
	// ListPermissions returns the filtered total and the requested page
	ListPermissions(ctx context.Context, filter NameFilter, page Page) (int64, []Permission, error)
	// CreatePermission adds a permission to the pool; duplicate names yield
	// CodeConflict. Exposed through the admin CLI only.
	CreatePermission(ctx context.Context, name string) (*Permission, error)
	// GetPermissionsByNames fetches permissions by exact names; if any are
	// missing the error lists the names that were found
	GetPermissionsByNames(ctx context.Context, names []string) ([]Permission, error)
}
