package api

import (
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// writeError maps a domain error classification onto an HTTP status and
// writes the {"detail": ...} body.
func writeError(w http.ResponseWriter, err error) {
	switch identity.CodeOf(err) {
	case identity.CodeInvalid, identity.CodeIntegrity:
		httputil.WriteUnprocessable(w, err.Error())
	case identity.CodeBadRequest:
		httputil.WriteBadRequest(w, err.Error())
	case identity.CodeConflict:
		httputil.WriteConflict(w, err.Error())
	case identity.CodeNotFound:
		httputil.WriteNotFound(w, err.Error())
	case identity.CodeUnauthenticated:
		httputil.WriteUnauthorized(w, err.Error())
	case identity.CodeNotAdmin:
		httputil.WriteDetail(w, http.StatusUnauthorized, err.Error())
	case identity.CodeInactive, identity.CodeForbidden:
		httputil.WriteForbidden(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
