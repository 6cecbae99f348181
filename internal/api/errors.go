package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Error is a failure a handler reports with a specific status. Any other
// error returned by a handler becomes a 500 with a generic message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

func authenticationError(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

var (
	errForbidden          = &Error{Status: http.StatusForbidden, Message: "Forbidden"}
	errUnauthorized       = authenticationError("Unauthorized")
	errInvalidCredentials = authenticationError("Invalid credentials")
)

const (
	msgNotFound = "Not Found"
	msgInternal = "Internal Server Error"
)

// errorBody is the standard error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
