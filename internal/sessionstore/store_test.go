package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	testStoreRoundTrip(t, NewInMemoryStore())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()
	testStoreRoundTrip(t, store)
}

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "s1", KeyHistory); err != nil || ok {
		t.Fatalf("Get() on empty session = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(ctx, "s1", KeyHistory, "[]"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "s1", KeyPersona, "Spectra"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := store.Get(ctx, "s1", KeyPersona)
	if err != nil || !ok || v != "Spectra" {
		t.Fatalf("Get() = %q ok=%v err=%v, want %q", v, ok, err, "Spectra")
	}

	// Sessions are isolated by ID.
	if _, ok, _ := store.Get(ctx, "s2", KeyPersona); ok {
		t.Fatalf("Get() leaked value across sessions")
	}

	if err := store.Delete(ctx, "s1", KeyHistory); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1", KeyHistory); ok {
		t.Fatalf("Get() after Delete() still present")
	}

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1", KeyPersona); ok {
		t.Fatalf("Get() after Clear() still present")
	}
}

func TestRedisStoreSetsRetentionTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()

	if err := store.Set(context.Background(), "s1", KeyPersona, "Spectra"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL(sessionHashKey("s1")); ttl != time.Minute {
		t.Fatalf("TTL = %v, want %v", ttl, time.Minute)
	}
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "", "", 0, time.Hour)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() without addr = %T, want *InMemoryStore", store)
	}
}
