package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/reconfile-dashboard/internal/validation"
)

// ErrorType is the machine readable kind carried by an API error body
type ErrorType string

const (
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED_EXCEPTION"
	ErrorTypeBadRequest   ErrorType = "BAD_REQUEST_EXCEPTION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND_EXCEPTION"
	ErrorTypeConflict     ErrorType = "CONFLICT_EXCEPTION"
	ErrorTypeInternal     ErrorType = "INTERNAL_SERVER_ERROR_EXCEPTION"
	// ErrorTypeMalformedResponse marks an error body that did not match the expected shape
	ErrorTypeMalformedResponse ErrorType = "MALFORMED_ERROR_RESPONSE"
)

// APIError is a failed call as reported by the API.
type APIError struct {
	Code     int       `json:"code" validate:"required,min=100,max=599"`
	Type     ErrorType `json:"type" validate:"required"`
	Messages []string  `json:"messages"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Error returns the first message, the human readable summary of the failure
func (e *APIError) Error() string {
	if len(e.Messages) > 0 && e.Messages[0] != "" {
		return e.Messages[0]
	}
	return fmt.Sprintf("api error %d %s", e.Code, e.Type)
}

// IsUnauthorized reports whether the error signals an expired or invalid access token
func (e *APIError) IsUnauthorized() bool {
	return e.Code == http.StatusUnauthorized && e.Type == ErrorTypeUnauthorized
}

// parseAPIError decodes an error body. Anything that does not match the expected
// shape becomes a MALFORMED_ERROR_RESPONSE carrying the HTTP status.
func parseAPIError(status int, body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return malformed(status)
	}
	if err := validation.Struct(env.Error); err != nil {
		return malformed(status)
	}
	return env.Error
}

func malformed(status int) *APIError {
	return &APIError{
		Code:     status,
		Type:     ErrorTypeMalformedResponse,
		Messages: []string{fmt.Sprintf("unexpected error response (HTTP %d)", status)},
	}
}
