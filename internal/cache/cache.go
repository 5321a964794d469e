// Package cache is a small string cache backed by Redis with an in-memory
// fallback when Redis is not configured or not reachable.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// RedisOptions configures the optional Redis backend
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Cache stores string values with a fixed TTL. A zero TTL never expires, as
// in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry

	memCache map[string]cacheItem
	memMutex sync.RWMutex
}

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// New creates a cache. A nil client keeps everything in memory.
func New(client *redis.Client, ttl time.Duration, log *logrus.Entry) *Cache {
	return &Cache{
		client:   client,
		ttl:      ttl,
		log:      log,
		memCache: make(map[string]cacheItem),
	}
}

// Connect opens a Redis client and pings it. It returns nil, without error,
// when no address is configured or Redis does not answer, so callers fall
// back to memory.
func Connect(ctx context.Context, opts RedisOptions, log *logrus.Entry) *redis.Client {
	if opts.Addr == "" {
		return nil
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis connection failed, caching in memory")
		_ = client.Close()
		return nil
	}
	log.WithField("addr", opts.Addr).Info("redis connection established")
	return client
}

// Get returns the cached value for key or ErrMiss
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			c.log.WithField("key", key).Debug("cache hit (redis)")
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.log.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("redis get error, falling back to memory cache")
		}
	}

	c.memMutex.RLock()
	item, exists := c.memCache[key]
	c.memMutex.RUnlock()

	if !exists {
		return "", ErrMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.memMutex.Lock()
		delete(c.memCache, key)
		c.memMutex.Unlock()
		return "", ErrMiss
	}

	c.log.WithField("key", key).Debug("cache hit (memory)")
	return item.value, nil
}

// Set stores value under key for the cache TTL
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if c.client != nil {
		err := c.client.Set(ctx, key, value, c.ttl).Err()
		if err == nil {
			return nil
		}
		c.log.WithFields(logrus.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("redis set error, falling back to memory cache")
	}

	item := cacheItem{value: value}
	if c.ttl > 0 {
		item.expiresAt = time.Now().Add(c.ttl)
	}
	c.memMutex.Lock()
	c.memCache[key] = item
	c.memMutex.Unlock()
	return nil
}

// Delete removes key from both backends
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.client != nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("redis delete error")
		}
	}

	c.memMutex.Lock()
	delete(c.memCache, key)
	c.memMutex.Unlock()
	return nil
}

// Close releases the Redis client, if any
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
