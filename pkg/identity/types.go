package identity

import "time"

// User is an identity with a unique, case-sensitive email. The hashed
// password never serializes. Groups are eagerly loaded so permission checks
// need no further queries.
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"`
	IsActive       bool       `json:"is_active"`
	IsAdmin        bool       `json:"is_admin"`
	LastLogin      *time.Time `json:"last_login"`
	Created        time.Time  `json:"created"`
	Groups         []Group    `json:"groups"`
}

// Group is a named collection of permissions with a unique name
type Group struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Created     time.Time    `json:"created"`
	Permissions []Permission `json:"permissions"`
}

// Permission is a named capability with a unique name. Permissions form a
// shared pool referenced by groups through a join table.
type Permission struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// UserFilter narrows user listings; nil fields match everything
type UserFilter struct {
	IsActive *bool
	IsAdmin  *bool
}

// NameFilter narrows group/permission listings with case-insensitive
// substring matching; the empty string matches everything
type NameFilter struct {
	Name string
}

// UserUpdate mutates a user; nil fields are left unchanged. Groups, when set,
// replaces the full membership with the named groups.
type UserUpdate struct {
	IsActive *bool
	IsAdmin  *bool
	Groups   *[]string
}

// GroupUpdate mutates a group; nil fields are left unchanged. Permissions,
// when set, replaces the full permission set with the named permissions.
type GroupUpdate struct {
	Name        *string
	Permissions *[]string
}
