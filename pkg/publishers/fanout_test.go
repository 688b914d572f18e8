package publishers

import (
	"context"
	"errors"
	"testing"
)

type stubPublisher struct {
	id       string
	typ      string
	err      error
	closeErr error
	calls    int
	closed   bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

type closingPublisher struct {
	stubPublisher
}

func (c *closingPublisher) Close() error {
	c.closed = true
	return c.closeErr
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "ok", typ: "http"},
		&stubPublisher{id: "bad", typ: "http", err: errors.New("failed")},
		nil,
	})

	if fanout.Size() != 2 {
		t.Fatalf("expected nil publishers to be dropped, size=%d", fanout.Size())
	}
	count, err := fanout.Publish(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestNilFanoutIsInert(t *testing.T) {
	var fanout *Fanout
	if n, err := fanout.Publish(context.Background(), Event{}); n != 0 || err != nil {
		t.Fatalf("nil fanout Publish = %d, %v", n, err)
	}
	if err := fanout.Close(); err != nil {
		t.Fatalf("nil fanout Close: %v", err)
	}
}

func TestFanoutCloseClosesClosers(t *testing.T) {
	closer := &closingPublisher{stubPublisher{id: "ps", typ: TypeGCPPubSub}}
	failing := &closingPublisher{stubPublisher{id: "ps2", typ: TypeGCPPubSub, closeErr: errors.New("stuck")}}
	fanout := NewFanout([]Publisher{&stubPublisher{id: "plain"}, closer, failing})

	if err := fanout.Close(); err == nil {
		t.Fatalf("expected close error to surface")
	}
	if !closer.closed || !failing.closed {
		t.Fatalf("expected every closer to be closed")
	}
}

func TestBuildRoutesBySubscription(t *testing.T) {
	signin := &stubPublisher{id: "signin", typ: "stub"}
	all := &stubPublisher{id: "all", typ: "stub"}
	builders := Builders{
		"stub": func(_ context.Context, cfg PublisherConfig, _ Logger) (Publisher, error) {
			if cfg.ID == "signin" {
				return signin, nil
			}
			return all, nil
		},
	}

	fanout, err := builders.Build(context.Background(), []PublisherConfig{
		{ID: "signin", Type: "stub", Events: []string{"signin.*"}},
		{ID: "all", Type: "stub"},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if n, err := fanout.Publish(context.Background(), Event{Type: EventPINVerified}); n != 1 || err != nil {
		t.Fatalf("pin event delivered to %d sinks, err=%v", n, err)
	}
	if n, _ := fanout.Publish(context.Background(), Event{Type: EventSignInCompleted}); n != 2 {
		t.Fatalf("signin event delivered to %d sinks", n)
	}
	if signin.calls != 1 || all.calls != 2 {
		t.Fatalf("unexpected call counts signin=%d all=%d", signin.calls, all.calls)
	}
}

func TestBuildWithDefaultBuilders(t *testing.T) {
	fanout, err := DefaultBuilders().Build(context.Background(), []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com", Method: "POST", TimeoutSeconds: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fanout.Size() != 1 {
		t.Fatalf("expected 1 publisher, got %d", fanout.Size())
	}
}

func TestBuildUnknownTypeClosesBuilt(t *testing.T) {
	built := &closingPublisher{stubPublisher{id: "first", typ: "stub"}}
	builders := Builders{
		"stub": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return built, nil },
	}
	_, err := builders.Build(context.Background(), []PublisherConfig{
		{ID: "first", Type: "stub"},
		{ID: "k", Type: "kafka"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown publisher type")
	}
	if !built.closed {
		t.Fatalf("already built publishers should be closed on failure")
	}
}
