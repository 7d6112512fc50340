package bankr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultErrorMessage is used when a failed response carries no usable message.
const DefaultErrorMessage = "API request failed"

// APIError is the single normalized error returned by the gateway, both for
// non-2xx responses and for business failures reported inside a 200.
type APIError struct {
	Status  int    // HTTP status, 200 for in-body failures
	Type    string // backend error type when present, e.g. "NotFound"
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether the backend said the resource does not exist.
func (e *APIError) IsNotFound() bool {
	return strings.Contains(strings.ToLower(e.Message), "not found")
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// errorEnvelope covers every error shape the backend emits:
// {"error":{"type","message"}}, {"error":"..."} and {"message":"..."}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// parseAPIError normalizes a failed response body. Precedence:
// error.message, then error as a string, then message, then the default.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: DefaultErrorMessage}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	if len(env.Error) > 0 {
		var nested struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		var flat string
		switch {
		case json.Unmarshal(env.Error, &nested) == nil:
			apiErr.Type = nested.Type
			if nested.Message != "" {
				apiErr.Message = nested.Message
				return apiErr
			}
		case json.Unmarshal(env.Error, &flat) == nil && flat != "":
			apiErr.Message = flat
			return apiErr
		}
	}

	if env.Message != "" {
		apiErr.Message = env.Message
	}
	return apiErr
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if apiErr, ok := AsAPIError(err); ok {
		return fmt.Sprintf("%d", apiErr.Status)
	}
	return "error"
}
