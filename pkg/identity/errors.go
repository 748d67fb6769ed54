package identity

import (
	"errors"
	"fmt"
)

// Code classifies a domain error so the endpoint boundary can map it to an
// HTTP status without string matching.
type Code int

const (
	// CodeInvalid marks malformed or semantically invalid input (422)
	CodeInvalid Code = iota + 1
	// CodeBadRequest marks request-level failures reported as 400, e.g. a
	// wrong current password or an active-check failure
	CodeBadRequest
	// CodeConflict marks duplicate unique fields (409)
	CodeConflict
	// CodeNotFound marks missing entities (404)
	CodeNotFound
	// CodeUnauthenticated marks bad credentials or bad/missing tokens (401)
	CodeUnauthenticated
	// CodeInactive marks a login attempt against a deactivated account (403).
	// Revealed only after the password has been proven correct.
	CodeInactive
	// CodeNotAdmin marks a failed admin gate. Reported as 401, matching the
	// external contract for admin-only endpoints.
	CodeNotAdmin
	// CodeForbidden marks a failed permission check (403)
	CodeForbidden
	// CodeIntegrity marks a storage-level anomaly such as multiple rows for a
	// unique name (422). Defensive; should not occur when constraints hold.
	CodeIntegrity
	// CodeInternal marks everything else (500)
	CodeInternal
)

// Error is a domain error carrying a classification and a user-facing detail
// message. The message is what eventually lands in the HTTP "detail" body.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a classified domain error
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a classified domain error with a formatted message
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the classification from err, unwrapping as needed.
// Unclassified errors report CodeInternal.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is classified as not-found
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsConflict reports whether err is classified as a conflict
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}
