package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Implementations report non-2xx statuses through Response, not as errors.
type Client interface {
	// Do sends method to url. A nil body sends no payload.
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
}
