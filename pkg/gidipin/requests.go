package gidipin

// SignInRequest is the body of POST /signin/initiate.
// State and Scopes are left out of the payload when empty.
type SignInRequest struct {
	PIN         string   `json:"pin"`
	RedirectURI string   `json:"redirect_uri"`
	State       string   `json:"state,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

type verifyRequest struct {
	PIN string `json:"pin"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}
