package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "xingyu"

// JSONCache stores JSON-encoded values in Redis, mirrored into a short-lived
// local copy. All failures are logged and reported as misses.
type JSONCache struct {
	client   *redis.Client
	local    *TTLCache[string, []byte]
	localTTL time.Duration
	log      *zap.Logger
}

func NewJSONCache(client *redis.Client, log *zap.Logger) *JSONCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONCache{
		client:   client,
		local:    NewTTLCache[string, []byte](),
		localTTL: 30 * time.Second,
		log:      log.Named("cache"),
	}
}

// Key joins parts under the service prefix, e.g. xingyu:tarot:spreads:enabled.
func Key(parts ...any) string {
	b := strings.Builder{}
	b.WriteString(keyPrefix)
	for _, part := range parts {
		b.WriteByte(':')
		b.WriteString(fmt.Sprint(part))
	}
	return b.String()
}

func (c *JSONCache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	if raw, ok := c.local.Get(key); ok {
		return c.decode(key, raw, dst)
	}
	if c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if !c.decode(key, raw, dst) {
		return false
	}
	c.local.Set(key, raw, c.localTTLFor(0))
	return true
}

func (c *JSONCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.local.Set(key, raw, c.localTTLFor(ttl))
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *JSONCache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.local.Delete(key)
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *JSONCache) decode(key string, raw []byte, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		c.local.Delete(key)
		return false
	}
	return true
}

// localTTLFor keeps the local copy no longer than the shared entry.
func (c *JSONCache) localTTLFor(ttl time.Duration) time.Duration {
	if c.client == nil && ttl > 0 {
		return ttl
	}
	if ttl > 0 && ttl < c.localTTL {
		return ttl
	}
	return c.localTTL
}
