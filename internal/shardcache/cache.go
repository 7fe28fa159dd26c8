// Package shardcache shares decoded shard documents between processes
// through Redis. A Cache wraps any catalog.ShardSource; Redis errors are
// logged and the wrapped source is used instead.
package shardcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"locsearch/internal/catalog"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "locsearch:shard:"

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long a cached shard lives. Zero keeps it forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Stats counts cache outcomes.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Cache is a catalog.ShardSource backed by Redis.
type Cache struct {
	source catalog.ShardSource
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// New wraps source with a Redis cache. The caller owns client.
func New(source catalog.ShardSource, client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		client: client,
		ttl:    time.Hour,
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the Redis key a shard is cached under.
func (c *Cache) Key(kind catalog.ShardKind, key string) string {
	return c.prefix + kind.String() + ":" + key
}

// LoadShard implements catalog.ShardSource. Failed loads are not cached.
func (c *Cache) LoadShard(ctx context.Context, kind catalog.ShardKind, key string) (catalog.Document, error) {
	k := c.Key(kind, key)

	data, err := c.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var doc catalog.Document
		if err := json.Unmarshal(data, &doc); err == nil {
			c.hits.Add(1)
			return doc, nil
		}
		c.failures.Add(1)
		c.logger.Warn("dropping undecodable cached shard", zap.String("key", k))
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return catalog.Document{}, ctxErr
		}
		c.failures.Add(1)
		c.logger.Warn("failed to get cached shard",
			zap.String("key", k),
			zap.Error(err),
		)
	}

	doc, err := c.source.LoadShard(ctx, kind, key)
	if err != nil {
		return catalog.Document{}, err
	}

	if err := c.store(ctx, k, doc); err != nil {
		c.failures.Add(1)
		c.logger.Warn("failed to cache shard",
			zap.String("key", k),
			zap.Error(err),
		)
	}
	return doc, nil
}

func (c *Cache) store(ctx context.Context, key string, doc catalog.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal shard: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache: %w", err)
	}
	return nil
}

// Invalidate deletes every cached shard under the prefix and returns how
// many keys were removed.
func (c *Cache) Invalidate(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("delete cache: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cache: %w", err)
	}

	c.logger.Info("shard cache invalidated", zap.Int("keys", removed))
	return removed, nil
}

// Stats returns the counters since the cache was created.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.failures.Load(),
	}
}
