// Package authz implements the authorization engine: require-all and
// require-any predicates over a principal's effective permission set.
//
// The effective permission set is the union of permission names across all
// groups the principal belongs to. Admin principals satisfy every check
// unconditionally. Checks are pure functions; groups are eagerly loaded by
// the identity store so no I/O happens here.
package authz

import "github.com/platinummonkey/gatehouse/pkg/identity"

// CheckFunc evaluates a principal against a permission predicate.
// A nil return means the check passed.
type CheckFunc func(user *identity.User) error

func forbidden() error {
	return identity.NewError(identity.CodeForbidden, "User does not have required permissions")
}

// EffectivePermissions computes the union of permission names across the
// principal's groups
func EffectivePermissions(user *identity.User) map[string]struct{} {
	effective := make(map[string]struct{})
	for _, group := range user.Groups {
		for _, perm := range group.Permissions {
			effective[perm.Name] = struct{}{}
		}
	}
	return effective
}

// RequireAll returns a check that passes iff the principal's effective
// permission set contains every named permission. Admins always pass.
func RequireAll(permissions ...string) CheckFunc {
	return func(user *identity.User) error {
		if user.IsAdmin {
			return nil
		}
		effective := EffectivePermissions(user)
		for _, required := range permissions {
			if _, ok := effective[required]; !ok {
				return forbidden()
			}
		}
		return nil
	}
}

// RequireAny returns a check that passes iff the principal's effective
// permission set intersects the named permissions. Admins always pass.
func RequireAny(permissions ...string) CheckFunc {
	return func(user *identity.User) error {
		if user.IsAdmin {
			return nil
		}
		effective := EffectivePermissions(user)
		for _, required := range permissions {
			if _, ok := effective[required]; ok {
				return nil
			}
		}
		return forbidden()
	}
}
