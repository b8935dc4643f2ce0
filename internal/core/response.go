package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"fieldscout/internal/types"
)

// maxRequestBodySize caps request bodies at 1 MB. Patch submissions and
// observation payloads are small; anything larger is a client bug.
const maxRequestBodySize = 1 << 20

// ResponseMeta carries non-blocking warnings alongside a successful payload,
// such as a weather snapshot served from the failover cache.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data any           `json:"data,omitempty"`
	Meta *ResponseMeta `json:"meta,omitempty"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-facing error shape. Details holds structured
// context like per-operation patch validation errors.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A payload that cannot be
// marshalled degrades to a 500 envelope rather than a broken response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, errorEnvelope(
			types.ErrCodeInternalUnexpected,
			"failed to marshal response",
			nil,
			types.GetRequestID(r.Context()),
		))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response. A *types.AppError anywhere in the chain
// supplies the code, message, details, and HTTP status; any other error
// becomes an opaque 500 so internals never leak to clients.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		writeEnvelope(w, http.StatusInternalServerError, errorEnvelope(
			types.ErrCodeInternalUnexpected,
			"an unexpected error occurred",
			nil,
			requestID,
		))
		return
	}

	writeEnvelope(w, appErr.HTTPStatus(), errorEnvelope(
		appErr.Code, appErr.Message, appErr.Details, requestID,
	))
}

func errorEnvelope(code types.ErrorCode, message string, details map[string]any, requestID string) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}}
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// DecodeJSON reads the request body into dst under the size cap, rejecting
// unknown fields and trailing values. Every decode failure comes back as a
// validation_invalid_json AppError so handlers can pass it straight to Error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeFailure(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// decodeFailure classifies a json.Decoder error into a client-actionable
// message.
func decodeFailure(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must not exceed 1MB", err)

	case errors.As(err, &syntaxErr):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"malformed JSON in request body", err)

	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON,
			"invalid value for field", err, map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			})

	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+field, err)

	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON,
		"invalid JSON in request body", err)
}
