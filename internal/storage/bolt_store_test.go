package storage

import (
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func openTestBolt(t *testing.T, opts Options) (*boltStore, *fakeClock) {
	t.Helper()
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "state", "signin.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store.now = clock.Now
	store.lastCleanup.Store(clock.Now().Unix())
	return store, clock
}

func TestBoltStoreConsumesStateOnce(t *testing.T) {
	store, _ := openTestBolt(t, Options{StateTTL: time.Minute})

	if err := store.PutState("s1"); err != nil {
		t.Fatalf("PutState: %v", err)
	}

	ok, err := store.ConsumeState("s1")
	if err != nil || !ok {
		t.Fatalf("expected first consume to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = store.ConsumeState("s1")
	if err != nil || ok {
		t.Fatalf("expected replayed state to be rejected, ok=%v err=%v", ok, err)
	}
}

func TestBoltStoreRejectsUnknownAndEmptyState(t *testing.T) {
	store, _ := openTestBolt(t, Options{})

	if ok, err := store.ConsumeState("never-issued"); err != nil || ok {
		t.Fatalf("unknown state accepted, ok=%v err=%v", ok, err)
	}
	if ok, _ := store.ConsumeState(""); ok {
		t.Fatalf("empty state accepted")
	}
	if err := store.PutState(""); err == nil {
		t.Fatalf("expected error storing empty state")
	}
}

func TestBoltStoreExpiresStates(t *testing.T) {
	store, clock := openTestBolt(t, Options{StateTTL: time.Minute, CleanupInterval: time.Hour})

	if err := store.PutState("s1"); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	clock.Advance(2 * time.Minute)

	ok, err := store.ConsumeState("s1")
	if err != nil {
		t.Fatalf("ConsumeState: %v", err)
	}
	if ok {
		t.Fatalf("expected expired state to be rejected")
	}
}

func TestBoltStoreCleanupRemovesExpired(t *testing.T) {
	store, clock := openTestBolt(t, Options{StateTTL: time.Minute, CleanupInterval: 10 * time.Minute})

	for _, s := range []string{"a", "b", "c"} {
		if err := store.PutState(s); err != nil {
			t.Fatalf("PutState(%s): %v", s, err)
		}
	}

	clock.Advance(11 * time.Minute)
	if err := store.PutState("fresh"); err != nil {
		t.Fatalf("PutState fresh: %v", err)
	}

	n, err := store.count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the fresh state to remain, got %d", n)
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signin.db")
	opts := normalizeOptions(Options{StateTTL: time.Hour})

	first, err := openBolt(path, opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	if err := first.PutState("persisted"); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := openBolt(path, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if ok, err := second.ConsumeState("persisted"); err != nil || !ok {
		t.Fatalf("expected state to survive reopen, ok=%v err=%v", ok, err)
	}
}

func TestBoltStoreSharedBetweenOpenStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signin.db")

	server, err := NewStore("bbolt", path, Options{StateTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore server: %v", err)
	}
	defer server.Close()

	// a second store on the same file while the first is still open
	cli, err := NewStore("bbolt", path, Options{StateTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore while another store is open: %v", err)
	}
	defer cli.Close()

	if err := cli.PutState("issued-by-cli"); err != nil {
		t.Fatalf("PutState: %v", err)
	}
	if ok, err := server.ConsumeState("issued-by-cli"); err != nil || !ok {
		t.Fatalf("expected state issued by the other store, ok=%v err=%v", ok, err)
	}
	if ok, _ := cli.ConsumeState("issued-by-cli"); ok {
		t.Fatalf("state consumed twice across stores")
	}
}
