package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/chainguard-dev/clog"
	"github.com/redis/go-redis/v9"
)

// Cache stores vectors by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key, text string, vector []float64) error
}

// CacheKey derives the cache key for a model and text.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embeddings-%s:{%s}", model, hex.EncodeToString(sum[:]))
}

// Cached wraps an Embedder with a Cache. Cache failures are logged and
// fall through to the wrapped embedder.
type Cached struct {
	inner Embedder
	cache Cache
}

var _ Embedder = (*Cached)(nil)

// NewCached returns an Embedder that consults cache before calling inner.
func NewCached(inner Embedder, cache Cache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

// Embed returns the cached vector for text or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	key := CacheKey(c.inner.Model(), text)
	log := clog.FromContext(ctx).With("model", c.inner.Model())

	vector, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warnf("embedding cache read failed: %v", err)
	} else if ok {
		return vector, nil
	}

	vector, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, text, vector); err != nil {
		log.Warnf("embedding cache write failed: %v", err)
	}
	return vector, nil
}

// Model returns the wrapped embedder's model.
func (c *Cached) Model() string {
	return c.inner.Model()
}

// RedisCache keeps vectors in Redis hashes: the source text plus the
// embedding as little-endian float64 bytes.
type RedisCache struct {
	rc *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rc := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisCache{rc: rc}, nil
}

// Get returns the vector stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	raw, err := c.rc.HGet(ctx, key, "embedding").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vector, err := bytesLEToFloat64(raw)
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// Set stores vector and its source text under key.
func (c *RedisCache) Set(ctx context.Context, key, text string, vector []float64) error {
	return c.rc.HSet(ctx, key, map[string]any{
		"text":      text,
		"embedding": float64ToBytesLE(vector),
	}).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rc.Close()
}

func float64ToBytesLE(floats []float64) []byte {
	bytes := make([]byte, 0, len(floats)*8)
	for _, f := range floats {
		bits := math.Float64bits(f)
		bytes = append(bytes,
			byte(bits),
			byte(bits>>8),
			byte(bits>>16),
			byte(bits>>24),
			byte(bits>>32),
			byte(bits>>40),
			byte(bits>>48),
			byte(bits>>56),
		)
	}
	return bytes
}

func bytesLEToFloat64(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("cached embedding has %d bytes, not a multiple of 8", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		b := raw[i*8 : i*8+8]
		bits := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}
