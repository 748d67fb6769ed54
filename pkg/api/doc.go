// Package api wires the HTTP surface: the self-service auth endpoints
// (register, token, whoami, password change) and the admin CRUD endpoints
// for users, groups and permissions.
//
// Every error response is a JSON object with a single "detail" string.
// Domain errors carry a classification that maps one-to-one onto HTTP
// statuses at this boundary; handlers never match on message text.
package api
