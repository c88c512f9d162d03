// Package fallback routes generation requests across providers, preferring
// the cheapest candidate and falling back on failure.
package fallback

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"contentforge/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	// DefaultAvailabilityTTL bounds how long a probe result is trusted.
	DefaultAvailabilityTTL = 5 * time.Minute

	availabilityKeyPrefix = "provider:availability:"
)

// AvailabilityCache remembers recent probe results per provider. It keeps an
// in-memory map and optionally mirrors entries to Redis so replicas share
// probe results. An expired or missing entry means availability is unknown
// and the caller must re-probe.
type AvailabilityCache struct {
	mu    sync.RWMutex
	items map[model.ProviderType]*availabilityItem

	redisClient *redis.Client
	ttl         time.Duration
}

type availabilityItem struct {
	available bool
	checkedAt time.Time
	expiresAt time.Time
}

type redisAvailabilityValue struct {
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewAvailabilityCache creates an in-memory cache. Use WithRedis to share
// entries across instances.
func NewAvailabilityCache(ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	cache := &AvailabilityCache{
		items: make(map[model.ProviderType]*availabilityItem),
		ttl:   ttl,
	}
	go cache.cleanup()
	return cache
}

// WithRedis mirrors entries to Redis. The in-memory map remains the fallback
// when Redis is unreachable.
func (c *AvailabilityCache) WithRedis(client *redis.Client) *AvailabilityCache {
	c.redisClient = client
	return c
}

// Get returns the cached availability for a provider. The second return is
// false when no fresh entry exists and the provider must be re-probed.
func (c *AvailabilityCache) Get(provider model.ProviderType) (model.ProviderStatus, bool) {
	if c.redisClient != nil {
		if status, ok := c.getFromRedis(provider); ok {
			return status, true
		}
	}
	return c.getFromMemory(provider)
}

func (c *AvailabilityCache) getFromRedis(provider model.ProviderType) (model.ProviderStatus, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.redisClient.Get(ctx, availabilityKeyPrefix+string(provider)).Bytes()
	if err != nil {
		return model.ProviderStatus{}, false
	}

	var cached redisAvailabilityValue
	if err := json.Unmarshal(data, &cached); err != nil {
		_ = c.redisClient.Del(ctx, availabilityKeyPrefix+string(provider))
		return model.ProviderStatus{}, false
	}

	return model.ProviderStatus{
		Provider:    provider,
		Available:   cached.Available,
		LastChecked: cached.CheckedAt,
	}, true
}

func (c *AvailabilityCache) getFromMemory(provider model.ProviderType) (model.ProviderStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[provider]
	if !ok || time.Now().After(item.expiresAt) {
		return model.ProviderStatus{}, false
	}
	return model.ProviderStatus{
		Provider:    provider,
		Available:   item.available,
		LastChecked: item.checkedAt,
	}, true
}

// Set records a probe result with the cache TTL.
func (c *AvailabilityCache) Set(provider model.ProviderType, available bool) {
	now := time.Now()

	if c.redisClient != nil {
		c.setInRedis(provider, available, now)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[provider] = &availabilityItem{
		available: available,
		checkedAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *AvailabilityCache) setInRedis(provider model.ProviderType, available bool, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(redisAvailabilityValue{Available: available, CheckedAt: now})
	if err != nil {
		return
	}
	_ = c.redisClient.Set(ctx, availabilityKeyPrefix+string(provider), data, c.ttl).Err()
}

// Invalidate drops the entry so the next lookup forces a probe.
func (c *AvailabilityCache) Invalidate(provider model.ProviderType) {
	if c.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.redisClient.Del(ctx, availabilityKeyPrefix+string(provider))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, provider)
}

func (c *AvailabilityCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for provider, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, provider)
			}
		}
		c.mu.Unlock()
	}
}
