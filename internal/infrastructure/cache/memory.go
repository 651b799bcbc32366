package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/garyjia/contract-approvals/internal/application/port"
)

// MemoryModelCache keeps model listings in process memory. Expired entries
// read as misses and are evicted by a background loop until Close.
type MemoryModelCache struct {
	items *ttlcache.Cache[string, []string]
}

// NewMemoryModelCache creates an empty in-process cache
func NewMemoryModelCache() *MemoryModelCache {
	items := ttlcache.New[string, []string](
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go items.Start()
	return &MemoryModelCache{items: items}
}

func (c *MemoryModelCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return append([]string(nil), item.Value()...), true, nil
}

func (c *MemoryModelCache) Set(ctx context.Context, key string, models []string, ttl time.Duration) error {
	c.items.Set(key, append([]string(nil), models...), ttl)
	return nil
}

func (c *MemoryModelCache) Delete(ctx context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Close stops the eviction loop
func (c *MemoryModelCache) Close() error {
	c.items.Stop()
	return nil
}

var _ port.ModelCache = (*MemoryModelCache)(nil)
