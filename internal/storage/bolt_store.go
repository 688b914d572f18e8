package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	stateBucket      = "signin_states"
	expiryValueBytes = 8
	lockTimeout      = 5 * time.Second
)

// boltStore implements a Store backed by BoltDB. The file is opened for each
// operation and closed right after, so a long-running callback server and a
// separate signin command can share one state file.
type boltStore struct {
	path            string
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	stateTTL        time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt prepares the BoltDB file and returns a Store over it.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	store := &boltStore{
		path:            path,
		stateTTL:        opts.StateTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	if err := store.update(func(*bolt.Bucket) error { return nil }); err != nil {
		return nil, err
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close is a no-op: the file is only held open for the length of one call.
func (b *boltStore) Close() error {
	return nil
}

// update runs fn in a write transaction on the state bucket, opening and
// closing the file around it.
func (b *boltStore) update(fn func(bucket *bolt.Bucket) error) error {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("open bbolt db: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		if err != nil {
			return fmt.Errorf("init bucket: %w", err)
		}
		return fn(bucket)
	})
}

// PutState stores state with its expiry.
func (b *boltStore) PutState(state string) error {
	if b == nil {
		return nil
	}
	if state == "" {
		return fmt.Errorf("state is empty")
	}

	now := b.now()
	return b.update(func(bucket *bolt.Bucket) error {
		if err := b.maybeCleanupExpired(bucket, now); err != nil {
			return err
		}
		buf := make([]byte, expiryValueBytes)
		binary.BigEndian.PutUint64(buf, uint64(now.Add(b.stateTTL).Unix()))
		return bucket.Put([]byte(state), buf)
	})
}

// ConsumeState deletes state and reports whether it was still valid.
func (b *boltStore) ConsumeState(state string) (bool, error) {
	if b == nil || state == "" {
		return false, nil
	}

	now := b.now()
	var valid bool
	err := b.update(func(bucket *bolt.Bucket) error {
		if err := b.maybeCleanupExpired(bucket, now); err != nil {
			return err
		}

		key := []byte(state)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value)
		valid = ok && expiry.After(now)
		return bucket.Delete(key)
	})
	return valid, err
}

// maybeCleanupExpired removes expired states on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(bucket *bolt.Bucket, now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	// collect first: deleting under a live cursor skips the following key
	var expired [][]byte
	cursor := bucket.Cursor()
	for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
		expiry, ok := decodeExpiry(v)
		if !ok || !expiry.After(now) {
			expired = append(expired, append([]byte(nil), k...))
		}
	}
	for _, k := range expired {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	b.lastCleanup.Store(now.Unix())
	return nil
}

// count returns the number of stored states, expired or not.
func (b *boltStore) count() (int, error) {
	var n int
	err := b.update(func(bucket *bolt.Bucket) error {
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
