// Package storage keeps the sign-in states issued by this process.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store records issued sign-in states and consumes each one at most once.
type Store interface {
	Close() error
	// PutState records state as issued; it expires after the configured TTL.
	PutState(state string) error
	// ConsumeState reports whether state was issued and is unexpired, and forgets it.
	ConsumeState(state string) (bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	StateTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultStateTTL        = 15 * time.Minute
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "memory":
		return newMemoryStore(opts), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.StateTTL <= 0 {
		opts.StateTTL = defaultStateTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// noopStore disables state verification: every state is accepted.
type noopStore struct{}

func (noopStore) Close() error                      { return nil }
func (noopStore) PutState(string) error             { return nil }
func (noopStore) ConsumeState(string) (bool, error) { return true, nil }
