package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// MemoryRecommendationCache keeps one recommendation per product in memory.
type MemoryRecommendationCache struct {
	mu      sync.RWMutex
	entries map[string]*models.PriceRecommendation
}

func NewMemoryRecommendationCache() *MemoryRecommendationCache {
	return &MemoryRecommendationCache{entries: make(map[string]*models.PriceRecommendation)}
}

func (c *MemoryRecommendationCache) Get(ctx context.Context, productID string) (*models.PriceRecommendation, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.entries[productID]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (c *MemoryRecommendationCache) Put(ctx context.Context, rec *models.PriceRecommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rec.ProductID] = rec.Clone()
	return nil
}

// RedisRecommendationCache stores recommendations as JSON under
// "<prefix><product id>". Entries expire after ttl so abandoned products do
// not accumulate; freshness against the caller's max age is checked on read
// by the pricing service.
type RedisRecommendationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRecommendationCache(addr, password string, db int, ttl time.Duration) *RedisRecommendationCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRecommendationCache{client: rdb, prefix: "dzukou:recommendation:", ttl: ttl}
}

// Ping checks that the server is reachable.
func (c *RedisRecommendationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRecommendationCache) Get(ctx context.Context, productID string) (*models.PriceRecommendation, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+productID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get %s: %w", productID, err)
	}

	var rec models.PriceRecommendation
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("redis cache decode %s: %w", productID, err)
	}
	return &rec, true, nil
}

func (c *RedisRecommendationCache) Put(ctx context.Context, rec *models.PriceRecommendation) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis cache encode %s: %w", rec.ProductID, err)
	}
	if err := c.client.Set(ctx, c.prefix+rec.ProductID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set %s: %w", rec.ProductID, err)
	}
	return nil
}

func (c *RedisRecommendationCache) Close() error {
	return c.client.Close()
}
