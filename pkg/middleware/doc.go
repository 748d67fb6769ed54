// Package middleware provides the HTTP middleware chain: request-scoped
// logging, bearer token authentication and login rate limiting (in-process
// token bucket or Redis-backed for multi-instance deployments).
package middleware
