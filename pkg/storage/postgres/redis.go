package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheConfig holds Redis cache configuration
type CacheConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// SubscriptionCache caches per-tenant active-subscription lookups in Redis.
// Values are opaque JSON owned by the subscriptions service; the cache is
// best-effort and every miss falls through to Postgres.
type SubscriptionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubscriptionCache creates a Redis-backed subscription cache
func NewSubscriptionCache(config CacheConfig) (*SubscriptionCache, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB >= 0 {
		opts.DB = config.DB
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &SubscriptionCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func subscriptionKey(tenantID int64) string {
	return fmt.Sprintf("tenant:%d:active_subscription", tenantID)
}

// Get retrieves the cached active subscription for a tenant.
// Returns nil bytes on a cache miss.
func (c *SubscriptionCache) Get(ctx context.Context, tenantID int64) ([]byte, error) {
	data, err := c.client.Get(ctx, subscriptionKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set stores the active subscription for a tenant with the configured TTL
func (c *SubscriptionCache) Set(ctx context.Context, tenantID int64, data []byte) error {
	if err := c.client.Set(ctx, subscriptionKey(tenantID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached subscription for a tenant. Called on
// subscription replacement so readers never see a cancelled subscription
// from cache longer than one round trip.
func (c *SubscriptionCache) Invalidate(ctx context.Context, tenantID int64) error {
	if err := c.client.Del(ctx, subscriptionKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection
func (c *SubscriptionCache) Close() error {
	return c.client.Close()
}
