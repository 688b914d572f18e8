package publishers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/gidipin-go/pkg/httpclient"
)

const maxErrorSnippet = 512

// httpPublisher posts events to a webhook. The configured headers live on
// the client; only the event headers are set per request.
type httpPublisher struct {
	id     string
	method string
	url    string
	client httpclient.Client
	log    Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.HTTP.Headers {
		headers[k] = v
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second

	return &httpPublisher{
		id:     cfg.ID,
		method: cfg.HTTP.Method,
		url:    cfg.HTTP.URL,
		client: httpclient.NewRestyClientWithHeaders(timeout, headers),
		log:    ensureLogger(log),
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := evt.encode()
	if err != nil {
		return err
	}

	headers := map[string]string{
		"X-Event-Type": evt.Type,
		"X-Event-ID":   evt.ID,
	}

	resp, err := h.client.Do(ctx, h.method, h.url, headers, body)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status > 299 {
		return fmt.Errorf("http response status %d: %s", status, snippet(resp.Body()))
	}
	h.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": h.id,
		"event_id":     evt.ID,
		"status":       resp.StatusCode(),
	})
	return nil
}

func snippet(body []byte) string {
	if len(body) > maxErrorSnippet {
		body = body[:maxErrorSnippet]
	}
	return strings.TrimSpace(string(body))
}
