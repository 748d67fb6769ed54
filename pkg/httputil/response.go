// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// Error responses carry a single human-readable "detail" string; no structured
// error codes are exposed beyond the HTTP status.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body shape for every error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteDetail writes a JSON error response with the given status and detail message
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Detail: detail})
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteUnprocessable writes a validation error response (422 Unprocessable Entity)
func WriteUnprocessable(w http.ResponseWriter, detail string) {
	WriteDetail(w, http.StatusUnprocessableEntity, detail)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteDetail(w, http.StatusBadRequest, detail)
}

// WriteUnauthorized writes an unauthorized error (401) with a WWW-Authenticate
// challenge so clients know bearer tokens are expected
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteDetail(w, http.StatusUnauthorized, detail)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, detail string) {
	WriteDetail(w, http.StatusForbidden, detail)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteDetail(w, http.StatusNotFound, detail)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, detail string) {
	WriteDetail(w, http.StatusConflict, detail)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteDetail(w, http.StatusInternalServerError, err.Error())
}
