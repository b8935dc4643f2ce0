package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a stable, machine-readable error identifier. Clients branch
// on codes, never on messages, so codes are part of the API contract.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidIssue  ErrorCode = "validation_invalid_issue"
	ErrCodeValidationInvalidStatus ErrorCode = "validation_invalid_status"

	// Patch pipeline
	ErrCodeVersionMismatch ErrorCode = "playbook_version_mismatch"       // 409, recoverable by refetch+resubmit
	ErrCodePathNotAllowed  ErrorCode = "playbook_patch_path_not_allowed" // 422, patch must be corrected
	ErrCodeMalformedPatch  ErrorCode = "malformed_patch"                 // 400, structurally invalid

	// Not Found (404)
	ErrCodeNotFoundPlaybook        ErrorCode = "not_found_playbook"
	ErrCodeNotFoundPlaybookVersion ErrorCode = "not_found_playbook_version"
	ErrCodeNotFoundRecommendation  ErrorCode = "not_found_recommendation"
	ErrCodeNotFoundObservation     ErrorCode = "not_found_observation"

	// Conflict (409)
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictStatus     ErrorCode = "conflict_status_transition"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamWeather     ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus derives the response status from the code's family prefix,
// with the three patch codes mapped individually. Unknown codes default to
// 500 rather than leaking a misleading status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeVersionMismatch:
		return http.StatusConflict
	case ErrCodePathNotAllowed:
		return http.StatusUnprocessableEntity
	case ErrCodeMalformedPatch:
		return http.StatusBadRequest
	}

	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether resubmitting the same request can succeed after
// the caller refetches state. Version mismatches are retryable; path and
// structure errors require a corrected patch.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeVersionMismatch, ErrCodeUpstreamWeather, ErrCodeUpstreamRateLimited, ErrCodeInternalDB:
		return true
	default:
		return false
	}
}

// AppError is the error type crossing package boundaries. Message and
// Details are safe to show clients; Err stays server-side and is reachable
// through errors.As/Is for logging and tests.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy with the given details merged over the
// existing ones. The receiver is not modified.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
