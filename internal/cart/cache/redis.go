package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 15 * time.Minute
	maxJitter  = 5 * time.Minute
	keyPrefix  = "storefront:cart:v1:"
)

// RedisCache stores JSON snapshots of carts. Entries expire after the TTL
// plus a random jitter so carts cached in the same burst do not expire
// together.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

type Option func(*RedisCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewRedisCache(client redis.UniversalClient, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("read cached cart %d: %w", userID, err)
	}

	cart := new(domain.Cart)
	if err := json.Unmarshal(raw, cart); err != nil {
		return nil, fmt.Errorf("decode cached cart %d: %w", userID, err)
	}
	return cart, nil
}

func (c *RedisCache) Set(ctx context.Context, userID int64, cart *domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %d: %w", userID, err)
	}
	expiry := c.ttl + rand.N(maxJitter)
	if err := c.client.Set(ctx, key(userID), raw, expiry).Err(); err != nil {
		return fmt.Errorf("cache cart %d: %w", userID, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("evict cart %d: %w", userID, err)
	}
	return nil
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}
