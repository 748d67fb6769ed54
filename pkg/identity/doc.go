// Package identity defines the domain model for users, groups and permissions,
// the error taxonomy shared across the service, and the Store interface the
// HTTP layer and CLI are written against.
//
// # Data model
//
// User has a unique, case-sensitive email and belongs to any number of
// Groups. Group has a unique name and references any number of Permissions
// through a shared pool (many-to-many). Permission is a named capability
// with a unique name.
//
// A principal's effective permission set is the union of permission names
// across all groups they belong to; admins implicitly satisfy every
// permission check (see pkg/authz).
//
// # Lookups
//
// Entities are addressed by an Identifier, a tagged union of an integer ID or
// an exact-match name, constructed once at the request boundary. Name lookups
// are always exact match; only list filters use substring semantics.
package identity
