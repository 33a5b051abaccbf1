package application

import (
	"testing"
	"time"
)

func TestAddressCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cache := newAddressCache(time.Minute, func() time.Time { return current })

	original := map[string]struct{}{"Escuela N 12": {}}
	cache.Store(original)

	// Mutating the original map should not affect the cached copy.
	original["Otra"] = struct{}{}

	cached, ok := cache.Get()
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(cached) != 1 {
		t.Fatalf("expected one cached address, got %v", cached)
	}

	delete(cached, "Escuela N 12")
	again, ok := cache.Get()
	if !ok || len(again) != 1 {
		t.Fatalf("expected cache to return independent copy, got %v", again)
	}
}

func TestAddressCacheExpires(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cache := newAddressCache(time.Second, func() time.Time { return current })

	cache.Store(map[string]struct{}{})
	if _, ok := cache.Get(); !ok {
		t.Fatalf("expected an empty set to be cached before expiry")
	}

	current = current.Add(time.Second)
	if _, ok := cache.Get(); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestAddressCacheDisabled(t *testing.T) {
	disabled := newAddressCache(0, time.Now)
	disabled.Store(map[string]struct{}{"a": {}})
	if _, ok := disabled.Get(); ok {
		t.Fatalf("expected zero ttl to disable caching")
	}
}
