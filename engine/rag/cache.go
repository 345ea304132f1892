package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Querier is anything that answers queries; *Service and *CachedService both
// qualify.
type Querier interface {
	Query(ctx context.Context, query string) Answer
}

// AnswerCache stores answered queries by key.
type AnswerCache interface {
	Get(ctx context.Context, key string) (Answer, bool, error)
	Set(ctx context.Context, key string, a Answer) error
}

// CacheKey folds case and surrounding space so the canned topic queries and
// their retyped variants share an entry.
func CacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return "advisor:answer:" + hex.EncodeToString(sum[:])
}

// CachedService serves repeated queries from an AnswerCache. Only answered
// queries are stored, so a transient failure is never replayed. Cache
// errors are logged and the query falls through to the wrapped service.
type CachedService struct {
	next   Querier
	cache  AnswerCache
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Querier, cache AnswerCache, logger *slog.Logger) *CachedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedService{next: next, cache: cache, logger: logger}
}

func (c *CachedService) Query(ctx context.Context, query string) Answer {
	key := CacheKey(query)
	a, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("answer cache read failed", "err", err)
	case ok:
		a.Query = query
		a.Cached = true
		return a
	}

	a = c.next.Query(ctx, query)
	if a.OK() {
		if err := c.cache.Set(context.WithoutCancel(ctx), key, a); err != nil {
			c.logger.Warn("answer cache write failed", "err", err)
		}
	}
	return a
}

// redisKV is the slice of the go-redis client the cache uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisAnswerCache keeps answers as JSON strings with a TTL.
type RedisAnswerCache struct {
	rdb redisKV
	ttl time.Duration
}

// NewRedisAnswerCache stores entries for ttl; 0 keeps them until evicted.
func NewRedisAnswerCache(rdb redisKV, ttl time.Duration) *RedisAnswerCache {
	return &RedisAnswerCache{rdb: rdb, ttl: ttl}
}

func (r *RedisAnswerCache) Get(ctx context.Context, key string) (Answer, bool, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Answer{}, false, nil
	}
	if err != nil {
		return Answer{}, false, fmt.Errorf("rag: cache get: %w", err)
	}
	var a Answer
	if err := json.Unmarshal(data, &a); err != nil {
		return Answer{}, false, fmt.Errorf("rag: cache decode: %w", err)
	}
	return a, true, nil
}

func (r *RedisAnswerCache) Set(ctx context.Context, key string, a Answer) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("rag: cache encode: %w", err)
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("rag: cache set: %w", err)
	}
	return nil
}
