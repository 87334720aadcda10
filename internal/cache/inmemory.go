package cache

import (
	"context"
	"time"

	"github.com/flexprice/plansync/internal/config"
	"github.com/flexprice/plansync/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 5 * time.Minute

var _ Cache = (*InMemoryCache)(nil)

// InMemoryCache is a process-local Cache backed by go-cache. Every replica keeps
// its own copy, so a hit is an optimization and a miss proves nothing.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) *InMemoryCache {
	log.Infow("initializing in-memory cache", "enabled", cfg.Cache.Enabled)
	return &InMemoryCache{
		cache:   goCache.New(cfg.Billing.DeliveryCacheTTL, cleanupInterval),
		enabled: cfg.Cache.Enabled,
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	c.cache.Set(key, value, expiration)
}
