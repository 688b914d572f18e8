package gidipin

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResponseMeta is attached by the API to every successful payload.
type ResponseMeta struct {
	RequestID   string    `json:"request_id"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment,omitempty"`
}

// VerifyResult is the payload of POST /verify.
type VerifyResult struct {
	Verified     bool                  `json:"verified"`
	PIN          string                `json:"pin"`
	Professional *VerifiedProfessional `json:"professional,omitempty"`
	Meta         ResponseMeta          `json:"meta"`
}

// VerifiedProfessional is the summary returned alongside a successful verification.
type VerifiedProfessional struct {
	Name                string    `json:"name"`
	VerifiedStatus      bool      `json:"verified_status"`
	ProfileCompleteness int       `json:"profile_completeness"`
	Badges              []string  `json:"badges"`
	MemberSince         time.Time `json:"member_since"`
}

// ProfessionalProfile is the payload of GET /professional/{pin}. Scoped
// sections are kept raw because their content depends on the consent granted.
type ProfessionalProfile struct {
	PIN      string                     `json:"pin"`
	Basic    json.RawMessage            `json:"basic,omitempty"`
	Sections map[string]json.RawMessage `json:"-"`
	Meta     ResponseMeta               `json:"meta"`
}

// UnmarshalJSON keeps every top-level field besides pin and meta in Sections.
func (p *ProfessionalProfile) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["pin"]; ok {
		if err := json.Unmarshal(raw, &p.PIN); err != nil {
			return fmt.Errorf("pin: %w", err)
		}
		delete(fields, "pin")
	}
	if raw, ok := fields["meta"]; ok {
		if err := json.Unmarshal(raw, &p.Meta); err != nil {
			return fmt.Errorf("meta: %w", err)
		}
		delete(fields, "meta")
	}
	p.Basic = fields["basic"]
	p.Sections = fields
	return nil
}

// SignInInitiation is the payload of POST /signin/initiate. The professional
// approves the request at ConsentURL before ExpiresAt.
type SignInInitiation struct {
	ConsentURL   string              `json:"consent_url"`
	ConsentToken string              `json:"consent_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Professional ProfessionalSummary `json:"professional"`
	Meta         ResponseMeta        `json:"meta"`
}

// TokenGrant is the payload of POST /signin/exchange.
type TokenGrant struct {
	AccessToken  string              `json:"access_token"`
	TokenType    string              `json:"token_type"`
	ExpiresIn    int64               `json:"expires_in"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Scopes       []string            `json:"scopes"`
	Professional ProfessionalSummary `json:"professional"`
	Meta         ResponseMeta        `json:"meta"`
}

// ProfessionalSummary identifies the professional involved in a sign-in.
type ProfessionalSummary struct {
	PIN    string `json:"pin"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
}

// Decode maps raw onto T. Failures are reported as *Error so callers handle a
// single error type.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return out, nil
}
