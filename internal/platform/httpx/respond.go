// Package httpx provides HTTP response utilities for the JSON API surface.
package httpx

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Envelope is the uniform JSON API response body. Denials and failures carry
// a machine-readable error code plus the request id for correlation; stack
// traces never leave the server.
type Envelope struct {
	OK        bool      `json:"ok"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

// APIError is the structured error part of an Envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a success envelope.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, Envelope{OK: true, Data: data, RequestID: chimw.GetReqID(r.Context())})
}

// Error sends a failure envelope with the given status and error code.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	JSON(w, status, Envelope{
		OK:        false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
