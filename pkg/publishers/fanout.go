package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

type route struct {
	pub     Publisher
	accepts func(evtType string) bool
}

func (r route) wants(evtType string) bool {
	return r.accepts == nil || r.accepts(evtType)
}

// Fanout dispatches events to every subscribed sink.
type Fanout struct {
	routes []route
}

// NewFanout subscribes every publisher to every event. Nil entries are dropped.
func NewFanout(pubs []Publisher) *Fanout {
	routes := make([]route, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			routes = append(routes, route{pub: p})
		}
	}
	return &Fanout{routes: routes}
}

// Publish forwards the event to the subscribed sinks and returns how many
// accepted it. Failures from individual sinks are joined.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, r := range f.routes {
		if !r.wants(evt.Type) {
			continue
		}
		if err := r.pub.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", r.pub.Type(), r.pub.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.routes)
}

// Close releases sinks holding client connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeRoutes(f.routes)
}

func closeRoutes(routes []route) error {
	var errs []error
	for _, r := range routes {
		c, ok := r.pub.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", r.pub.Type(), r.pub.ID(), err))
		}
	}
	return errors.Join(errs...)
}
