// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/creditgate/creditgate/internal/handler/dto"
)

// Error codes returned by the handlers.
const (
	CodeAlreadyRegistered = "ALREADY_REGISTERED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeMissingFields     = "MISSING_FIELDS"
	CodeInvalidJSON       = "INVALID_JSON"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
)

// Handler serves the endpoints that need no dependencies.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Ping is the unauthenticated connectivity check.
// GET /ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "pong"})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody(code, message))
}

func writeResult(w http.ResponseWriter, result dto.Result) {
	writeJSON(w, result.Status, result.Body)
}

func errorBody(code, message string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: message, Code: code}
}

func errorResult(status int, code, message string) dto.Result {
	return dto.Result{Status: status, Body: errorBody(code, message)}
}

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// decodeError maps a body decoding failure to an error result.
func decodeError(err error) dto.Result {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errorResult(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
	}
	return errorResult(http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON body")
}
