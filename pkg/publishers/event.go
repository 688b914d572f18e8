package publishers

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the sign-in service.
const (
	EventPINVerified         = "pin.verified"
	EventPINVerifyFailed     = "pin.verify_failed"
	EventProfessionalFetched = "professional.fetched"
	EventSignInInitiated     = "signin.initiated"
	EventSignInCompleted     = "signin.completed"
	EventSignInFailed        = "signin.failed"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event represents the payload published downstream. It never carries tokens.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Outcome      string    `json:"outcome"`
	PIN          string    `json:"pin,omitempty"`
	Professional string    `json:"professional,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEvent constructs an Event of the given type for pin.
func NewEvent(id, typ, pin string) Event {
	return Event{
		ID:         id,
		Type:       typ,
		Outcome:    OutcomeSuccess,
		PIN:        pin,
		OccurredAt: time.Now().UTC(),
	}
}

// WithFailure marks the event as failed with the given API error details.
func (e Event) WithFailure(code, message string) Event {
	e.Outcome = OutcomeFailure
	e.ErrorCode = code
	e.ErrorMessage = message
	return e
}

// attributes returns the routing attributes sent alongside the message body.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"event_type": e.Type,
		"outcome":    e.Outcome,
	}
	if e.ErrorCode != "" {
		attrs["error_code"] = e.ErrorCode
	}
	return attrs
}

func (e Event) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return b, nil
}
