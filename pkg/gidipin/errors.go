package gidipin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error codes returned by the API in the "error_code" field.
const (
	CodeAPIKeyRequired          = "API_KEY_REQUIRED"
	CodeInvalidAPIKey           = "INVALID_API_KEY"
	CodePermissionDenied        = "PERMISSION_DENIED"
	CodeMissingPIN              = "MISSING_PIN"
	CodeMissingRedirectURI      = "MISSING_REDIRECT_URI"
	CodePINNotFound             = "PIN_NOT_FOUND"
	CodeNotFound                = "NOT_FOUND"
	CodeConsentRequired         = "CONSENT_REQUIRED"
	CodeConsentRequestFailed    = "CONSENT_REQUEST_FAILED"
	CodeConsentExpired          = "CONSENT_EXPIRED"
	CodeConsentAlreadyProcessed = "CONSENT_ALREADY_PROCESSED"
	CodeMissingCode             = "MISSING_CODE"
	CodeInvalidCode             = "INVALID_CODE"
	CodeCodeExpired             = "CODE_EXPIRED"
	CodeCodeAlreadyUsed         = "CODE_ALREADY_USED"
	CodeInternalError           = "INTERNAL_ERROR"
)

var errInvalidJSON = errors.New("invalid JSON response")

// Error is the only error type returned by Client operations.
//
// Transport failures (including unreadable success bodies) carry no Code and
// Err holds the underlying cause. API failures carry the HTTP status and, when
// the server sent one, the "error" message and "error_code"; their Err is nil.
type Error struct {
	Message    string
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gidipin: %s (%s)", e.Message, e.Code)
	}
	return "gidipin: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HasCode reports whether the server supplied an error code.
func (e *Error) HasCode() bool { return e.Code != "" }

// IsTransport reports whether the failure came from the exchange itself rather
// than from an error status returned by the API.
func (e *Error) IsTransport() bool { return e.Err != nil }

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code != "" && apiErr.Code == code
}

// errorFromResponse builds an *Error from a non-2xx response body.
func errorFromResponse(status int, body []byte) *Error {
	out := &Error{
		Message:    fmt.Sprintf("request failed with status %d", status),
		StatusCode: status,
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return out
	}
	rawMsg, ok := payload["error"]
	if !ok {
		return out
	}
	if msg := jsonText(rawMsg); msg != "" {
		out.Message = msg
	}
	if rawCode, ok := payload["error_code"]; ok {
		out.Code = jsonText(rawCode)
	}
	return out
}

// jsonText renders a JSON string as its value and any other JSON value as compact text.
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}
