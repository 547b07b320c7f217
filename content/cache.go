package content

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const checksumSize = 8

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithTTL sets how long cached blobs live. Zero keeps them forever.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) {
		c.ttl = ttl
	}
}

// WithKeyPrefix overrides the "arworld:content:" key prefix.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(log zerolog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.log = log
	}
}

// RedisCache is a read-through cache in front of another Fetcher. Content ids
// name immutable blobs, so entries never need invalidation; each entry is
// prefixed with an xxhash checksum and entries that fail it are refetched.
// Redis errors are logged and the origin is used instead.
type RedisCache struct {
	client redis.Cmdable
	origin Fetcher
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// NewRedisCache wraps origin with a cache stored in client.
func NewRedisCache(client redis.Cmdable, origin Fetcher, opts ...CacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		origin: origin,
		ttl:    24 * time.Hour,
		prefix: "arworld:content:",
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(id ID) string {
	return c.prefix + string(id)
}

func (c *RedisCache) FetchBytes(ctx context.Context, id ID) ([]byte, error) {
	if data, ok := c.lookup(ctx, id); ok {
		return data, nil
	}

	data, err := c.origin.FetchBytes(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, c.key(id), encodeEntry(data), c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("cid", string(id)).Msg("failed to store content in cache")
	}
	return data, nil
}

func (c *RedisCache) lookup(ctx context.Context, id ID) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == redis.Nil:
		return nil, false
	case err != nil:
		c.log.Warn().Err(err).Str("cid", string(id)).Msg("content cache unavailable")
		return nil, false
	}

	data, err := decodeEntry(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("cid", string(id)).Msg("discarding corrupt cache entry")
		return nil, false
	}
	return data, true
}

func encodeEntry(data []byte) []byte {
	entry := make([]byte, checksumSize+len(data))
	binary.BigEndian.PutUint64(entry, xxhash.Sum64(data))
	copy(entry[checksumSize:], data)
	return entry
}

func decodeEntry(entry []byte) ([]byte, error) {
	if len(entry) < checksumSize {
		return nil, eris.Errorf("cache entry too short (%d bytes)", len(entry))
	}
	data := entry[checksumSize:]
	if xxhash.Sum64(data) != binary.BigEndian.Uint64(entry) {
		return nil, eris.New("cache entry checksum mismatch")
	}
	return data, nil
}
