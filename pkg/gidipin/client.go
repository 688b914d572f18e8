// Package gidipin is a client for the GidiPIN professional identity API.
//
// Every operation returns the server's JSON payload unchanged as a
// json.RawMessage, or an *Error describing either a transport failure or an
// API failure reported by the server:
//
//	c := gidipin.New(os.Getenv("GIDIPIN_API_KEY"))
//	raw, err := c.Verify(ctx, "08012345678")
//	var apiErr *gidipin.Error
//	if errors.As(err, &apiErr) && apiErr.Code == gidipin.CodePINNotFound {
//		// ...
//	}
//
// Use Decode to map a payload onto one of the typed models.
package gidipin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/gidipin-go/pkg/httpclient"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.gidipin.com/api/v1"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	userAgent = "gidipin-go/1.0"
)

// Client calls the GidiPIN API. Configuration is fixed at construction, so a
// Client may be shared between goroutines.
type Client struct {
	apiKey  string
	baseURL string
	headers map[string]string
	http    httpclient.Client
	log     Logger
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	baseURL string
	timeout time.Duration
	http    httpclient.Client
	log     Logger
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout sets the call-level timeout of the default transport.
// It has no effect when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the default resty transport.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *options) { o.http = c }
}

// Logger receives one debug record per API exchange. Headers, request bodies
// and response bodies are never logged.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
}

type discardLogger struct{}

func (discardLogger) DebugObj(string, string, interface{}) {}

// WithLogger receives debug records for every exchange.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	o := options{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.http == nil {
		o.http = httpclient.NewRestyClient(o.timeout)
	}
	if o.log == nil {
		o.log = discardLogger{}
	}

	baseURL := normalizeBaseURL(o.baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		headers: map[string]string{
			"X-API-Key":    apiKey,
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   userAgent,
		},
		http: o.http,
		log:  o.log,
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// Verify checks whether pin belongs to a registered professional.
func (c *Client) Verify(ctx context.Context, pin string) (json.RawMessage, error) {
	return c.dispatch(ctx, http.MethodPost, "/verify", verifyRequest{PIN: pin})
}

// GetProfessional fetches the public details of the professional behind pin.
func (c *Client) GetProfessional(ctx context.Context, pin string) (json.RawMessage, error) {
	return c.dispatch(ctx, http.MethodGet, "/professional/"+url.PathEscape(pin), nil)
}

// InitiateSignIn starts an Instant Sign-In and returns the consent payload.
func (c *Client) InitiateSignIn(ctx context.Context, req SignInRequest) (json.RawMessage, error) {
	return c.dispatch(ctx, http.MethodPost, "/signin/initiate", req)
}

// ExchangeCode trades the authorization code from the consent redirect for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (json.RawMessage, error) {
	return c.dispatch(ctx, http.MethodPost, "/signin/exchange", exchangeRequest{Code: code})
}

func (c *Client) dispatch(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("encode request: %v", err), Err: err}
		}
		payload = raw
	}

	start := time.Now()
	resp, err := c.http.Do(ctx, method, c.baseURL+path, c.headers, payload)
	if err != nil {
		c.log.DebugObj("gidipin request failed", "gidipin_request", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, &Error{Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}

	status := resp.StatusCode()
	c.log.DebugObj("gidipin request completed", "gidipin_request", map[string]any{
		"method":     method,
		"path":       path,
		"status":     status,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, errorFromResponse(status, resp.Body())
	}

	raw := bytes.TrimSpace(resp.Body())
	if !json.Valid(raw) {
		return nil, &Error{
			Message:    "request failed: invalid JSON response",
			StatusCode: status,
			Err:        errInvalidJSON,
		}
	}
	return json.RawMessage(raw), nil
}
