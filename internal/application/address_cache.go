package application

import (
	"sync"
	"time"
)

// addressCache keeps the institutional address set between availability
// listings so every request does not repeat the type lookup.
type addressCache struct {
	mu        sync.RWMutex
	now       func() time.Time
	ttl       time.Duration
	addresses map[string]struct{}
	expiresAt time.Time
	loaded    bool
}

func newAddressCache(ttl time.Duration, now func() time.Time) *addressCache {
	if ttl <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &addressCache{now: now, ttl: ttl}
}

func (c *addressCache) Get() (map[string]struct{}, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return cloneAddresses(c.addresses), true
}

func (c *addressCache) Store(addresses map[string]struct{}) {
	if c == nil {
		return
	}
	cloned := cloneAddresses(addresses)

	c.mu.Lock()
	c.addresses = cloned
	c.expiresAt = c.now().Add(c.ttl)
	c.loaded = true
	c.mu.Unlock()
}

func cloneAddresses(addresses map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(addresses))
	for address := range addresses {
		out[address] = struct{}{}
	}
	return out
}
