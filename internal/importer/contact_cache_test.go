package importer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*ContactCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewContactCache(rdb, time.Hour, nil), mr
}

func TestContactCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "loc-1", "jane@example.com"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	cache.Set(ctx, "loc-1", "jane@example.com", "contact-1")

	got, ok := cache.Get(ctx, "loc-1", "jane@example.com")
	if !ok || got != "contact-1" {
		t.Fatalf("Get() = %q, %v; want contact-1, true", got, ok)
	}

	// Same email under another location is a distinct entry.
	if _, ok := cache.Get(ctx, "loc-2", "jane@example.com"); ok {
		t.Fatal("cache hit leaked across locations")
	}
}

func TestContactCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "loc-1", "bob@example.com", "contact-2")
	mr.FastForward(2 * time.Hour)

	if _, ok := cache.Get(ctx, "loc-1", "bob@example.com"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestContactCacheNilClient(t *testing.T) {
	cache := NewContactCache(nil, time.Hour, nil)
	ctx := context.Background()

	cache.Set(ctx, "loc-1", "x@example.com", "contact-3")
	if _, ok := cache.Get(ctx, "loc-1", "x@example.com"); ok {
		t.Fatal("nil-backed cache returned a hit")
	}
}

func TestContactCacheIgnoresEmptyContactID(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "loc-1", "y@example.com", "")
	if _, ok := cache.Get(ctx, "loc-1", "y@example.com"); ok {
		t.Fatal("empty contact id was cached")
	}
}
