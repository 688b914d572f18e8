package publishers

import (
	"context"
	"fmt"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Builders maps sink types to their constructors.
type Builders map[string]Builder

// DefaultBuilders knows every sink type shipped with the package.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:      newHTTPPublisher,
		TypeSQS:       newSQSPublisher,
		TypeSNS:       newSNSPublisher,
		TypeGCPPubSub: newGCPPubSubPublisher,
	}
}

// Build constructs a Fanout routing each event to the sinks subscribed to it.
// Sinks built before a failure are closed.
func (b Builders) Build(ctx context.Context, cfgs []PublisherConfig, log Logger) (*Fanout, error) {
	routes := make([]route, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := b[cfg.Type]
		if !ok {
			closeRoutes(routes)
			return nil, fmt.Errorf("publisher %q: unsupported type %q", cfg.ID, cfg.Type)
		}
		pub, err := build(ctx, cfg, log)
		if err != nil {
			closeRoutes(routes)
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		routes = append(routes, route{pub: pub, accepts: cfg.Accepts})
	}
	return &Fanout{routes: routes}, nil
}
