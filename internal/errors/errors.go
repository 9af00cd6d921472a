// ABOUTME: Standardized error response types and helpers for HTTP handlers
// ABOUTME: Maps backend and editor failures onto one JSON error envelope

package errors

import (
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"

	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/editor"
)

// ErrorResponse is the error body of every JSON endpoint the console serves.
//
// Usage:
//
//	WriteError(w, http.StatusBadRequest, "invalid_request", "The request body is malformed")
type ErrorResponse struct {
	Code    string `json:"code"`              // Machine-readable error code (e.g., "invalid_request", "not_found")
	Message string `json:"message"`           // Human-readable error message
	Status  int    `json:"status"`            // HTTP status code
	Field   string `json:"field,omitempty"`   // Optional: field that caused the error (for validation errors)
	Details string `json:"details,omitempty"` // Optional: additional error details
}

// WriteError writes a standardized error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

// WriteErrorWithField writes a standardized error response with a field reference.
// Use this for validation errors where you want to indicate which field caused the error.
//
// Example:
//
//	WriteErrorWithField(w, http.StatusUnprocessableEntity, ErrValidationFailed, "Label is required", "label")
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Field:   field,
	})
}

// WriteErrorWithDetails writes a standardized error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	})
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp)
}

// Classify maps an error to its HTTP status and code.
func Classify(err error) (int, string) {
	var apiErr *api.APIError
	switch {
	case stderrors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized, ErrUnauthorized
	case stderrors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case stderrors.Is(err, api.ErrConflict):
		return http.StatusConflict, ErrConflict
	case stderrors.Is(err, editor.ErrUnknownField), stderrors.Is(err, editor.ErrIndexOutOfRange):
		return http.StatusNotFound, ErrNotFound
	case stderrors.Is(err, editor.ErrRequiredField), stderrors.Is(err, editor.ErrFieldDisabled),
		stderrors.Is(err, editor.ErrWrongFieldType), stderrors.Is(err, editor.ErrUnknownComponent),
		stderrors.Is(err, editor.ErrNotFlat):
		return http.StatusUnprocessableEntity, ErrInvalidOperation
	case stderrors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, ErrUpstream
		}
		return http.StatusBadGateway, ErrUpstream
	}
	return http.StatusInternalServerError, ErrInternal
}

// WriteFromError writes err using the status and code from Classify.
// Upstream messages are passed through verbatim.
func WriteFromError(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	WriteError(w, status, code, err.Error())
}

// CommonErrorCodes defines standard error codes
const (
	// Client errors (4xx)
	ErrInvalidRequest   = "invalid_request"
	ErrInvalidBody      = "invalid_request_body"
	ErrMissingField     = "missing_field"
	ErrValidationFailed = "validation_failed"
	ErrInvalidOperation = "invalid_operation"
	ErrNotFound         = "not_found"
	ErrUnauthorized     = "unauthorized"
	ErrConflict         = "conflict"

	// Server errors (5xx)
	ErrInternal = "internal_error"
	ErrUpstream = "upstream_error"
)
