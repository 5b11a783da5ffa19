// Package apierr defines the error taxonomy shared by the service layer and
// the HTTP API, and the JSON envelope errors are rendered in.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes returned to clients.
const (
	CodeMissingCredential       = "missing_credential"
	CodeInvalidCredentialFormat = "invalid_credential_format"
	CodeInvalidCredential       = "invalid_credential"
	CodeInactiveAccount         = "inactive_account"
	CodeForbidden               = "forbidden"
	CodeNotFound                = "resource_not_found"
	CodeConflict                = "duplicate_resource"
	CodeValidation              = "validation_error"
	CodeRateLimited             = "rate_limited"
	CodeServiceUnavailable      = "service_unavailable"
	CodeInternal                = "internal_error"
)

var statusByCode = map[string]int{
	CodeMissingCredential:       http.StatusUnauthorized,
	CodeInvalidCredentialFormat: http.StatusUnauthorized,
	CodeInvalidCredential:       http.StatusUnauthorized,
	CodeInactiveAccount:         http.StatusForbidden,
	CodeForbidden:               http.StatusForbidden,
	CodeNotFound:                http.StatusNotFound,
	CodeConflict:                http.StatusConflict,
	CodeValidation:              http.StatusBadRequest,
	CodeRateLimited:             http.StatusTooManyRequests,
	CodeServiceUnavailable:      http.StatusServiceUnavailable,
	CodeInternal:                http.StatusInternalServerError,
}

// Error is a categorized error that maps onto an HTTP response.
type Error struct {
	// Code is a machine-readable error code.
	Code string

	// Message is safe to show to clients.
	Message string

	// Details carries structured context such as per-field validation errors.
	Details any

	// Err is the underlying cause. It is logged, never sent to clients.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// MissingCredential is returned when a request carries no API key.
func MissingCredential() *Error {
	return New(CodeMissingCredential, "API key is required")
}

// InvalidCredentialFormat is returned when the Authorization header is not a bearer credential.
func InvalidCredentialFormat() *Error {
	return New(CodeInvalidCredentialFormat, "Invalid API key format")
}

// InvalidCredential is returned when an API key matches no publisher.
func InvalidCredential() *Error {
	return New(CodeInvalidCredential, "Invalid API key")
}

// InactiveAccount is returned when the key belongs to a deactivated publisher.
func InactiveAccount() *Error {
	return New(CodeInactiveAccount, "Publisher account is inactive")
}

// Forbidden is returned when the caller does not own the target resource.
func Forbidden() *Error {
	return New(CodeForbidden, "Not authorized to access this resource")
}

// NotFound is returned when the named resource does not exist.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// Conflict is returned when a uniqueness constraint would be violated.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Validation is returned when request input is rejected.
func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

// ServiceUnavailable is returned when a dependency cannot serve the request.
func ServiceUnavailable(message string, cause error) *Error {
	return &Error{Code: CodeServiceUnavailable, Message: message, Err: cause}
}

// Internal wraps an unexpected failure. The cause is kept for logging.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: "An internal error occurred", Err: cause}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return Internal(err)
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code string) bool {
	var apiErr *Error

	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Body is the error object inside the response envelope.
type Body struct {
	Code      string `json:"code" example:"resource_not_found"`
	Message   string `json:"message" example:"Publisher not found"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty" example:"host/abc-000001"`
}

// Envelope is the standard error response format.
type Envelope struct {
	Error Body `json:"error"`
}

// Write renders err as a JSON error envelope.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := From(err)
	status := apiErr.Status()

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "ApiKey")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	//nolint:errcheck // Response writing errors are not recoverable
	json.NewEncoder(w).Encode(Envelope{Error: Body{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}
