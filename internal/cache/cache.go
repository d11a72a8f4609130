// Package cache stores finished comparisons for identical credit-free
// requests. Supports in-memory (single instance) and Redis (distributed)
// backends. Credit-bearing requests bypass the cache so refund accounting
// always reflects real provider calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/promptarena/arena/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CachedComparison is the request-independent part of a finished run.
type CachedComparison struct {
	Results []domain.ProviderResult `json:"results"`
	Report  domain.ComparisonReport `json:"report"`
}

type Cache interface {
	Get(ctx context.Context, key string) (*CachedComparison, bool)
	Set(ctx context.Context, key string, c *CachedComparison, ttl time.Duration) error
}

// Key hashes the prompt, the selected providers in order, and the tool
// context. Selection order matters: it drives ranking tie-breaks.
func Key(prompt string, providers []string, toolContext string) string {
	data, _ := json.Marshal(struct {
		Prompt      string   `json:"prompt"`
		Providers   []string `json:"providers"`
		ToolContext string   `json:"tool_context"`
	}{
		Prompt:      strings.TrimSpace(prompt),
		Providers:   providers,
		ToolContext: toolContext,
	})

	hash := sha256.Sum256(data)
	return "comparison:" + hex.EncodeToString(hash[:])
}

type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
}

type cacheItem struct {
	comparison *CachedComparison
	expiresAt  time.Time
}

func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		items: make(map[string]*cacheItem),
	}
	go c.cleanup()
	return c
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*CachedComparison, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		return nil, false
	}

	return item.comparison, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, comparison *CachedComparison, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		comparison: comparison,
		expiresAt:  time.Now().Add(ttl),
	}

	return nil
}

func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedComparison, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var comparison CachedComparison
	if err := json.Unmarshal(data, &comparison); err != nil {
		return nil, false
	}

	return &comparison, true
}

func (c *RedisCache) Set(ctx context.Context, key string, comparison *CachedComparison, ttl time.Duration) error {
	data, err := json.Marshal(comparison)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
