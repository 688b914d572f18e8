package storage

import (
	"fmt"
	"sync"
	"time"
)

// memoryStore keeps states in process memory; they do not survive a restart.
type memoryStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func newMemoryStore(opts Options) *memoryStore {
	return &memoryStore{
		states: make(map[string]time.Time),
		ttl:    opts.StateTTL,
		now:    time.Now,
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) PutState(state string) error {
	if state == "" {
		return fmt.Errorf("state is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.states {
		if !exp.After(now) {
			delete(m.states, k)
		}
	}
	m.states[state] = now.Add(m.ttl)
	return nil
}

func (m *memoryStore) ConsumeState(state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.states[state]
	if !ok {
		return false, nil
	}
	delete(m.states, state)
	return exp.After(m.now()), nil
}
