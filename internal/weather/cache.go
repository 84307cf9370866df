package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"buscast/crowding"
)

// Cache stores daily temperatures by date.
type Cache interface {
	Get(ctx context.Context, date time.Time) (float64, bool, error)
	Set(ctx context.Context, date time.Time, temperature float64) error
}

type MemoryCache struct {
	mu    sync.RWMutex
	temps map[string]float64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{temps: map[string]float64{}}
}

func (c *MemoryCache) Get(_ context.Context, date time.Time) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.temps[date.Format(crowding.DateLayout)]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, date time.Time, temperature float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temps[date.Format(crowding.DateLayout)] = temperature
	return nil
}

const redisKeyPrefix = "buscast:temperature:"

// RedisCache keeps temperatures in Redis. Past temperatures do not change, so
// entries are stored without expiration unless TTL is set.
type RedisCache struct {
	client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// OpenRedisCache connects to addr and checks the server answers.
func OpenRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisCache(client), nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisKey(date time.Time) string {
	return redisKeyPrefix + date.Format(crowding.DateLayout)
}

func (c *RedisCache) Get(ctx context.Context, date time.Time) (float64, bool, error) {
	s, err := c.client.Get(ctx, redisKey(date)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cached temperature %q: %w", s, err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, date time.Time, temperature float64) error {
	return c.client.Set(ctx, redisKey(date), strconv.FormatFloat(temperature, 'f', -1, 64), c.TTL).Err()
}
