// Package feedcache keeps the last downloaded feed payload in Redis for a
// short TTL so that bursts of live (non-persisting) queries do not each hit
// the upstream feed.
package feedcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-meteo-warnings/internal/adapter/imgw"
	"github.com/tbourn/go-meteo-warnings/internal/domain"
)

// DefaultKey is the Redis key holding the cached payload.
const DefaultKey = "meteo:feed:live"

// ErrMiss reports that the store holds no payload.
var ErrMiss = errors.New("feedcache: miss")

// RawFetcher downloads the undecoded feed payload.
type RawFetcher interface {
	FetchRaw(ctx context.Context) ([]byte, error)
}

// Store is the subset of a key-value store the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cached serves feed payloads from Store, refilling it from the upstream
// fetcher on a miss. Store failures are logged and bypassed; they never fail
// a fetch that the upstream can answer.
type Cached struct {
	inner  RawFetcher
	store  Store
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// New wraps inner with a TTL cache in store.
func New(inner RawFetcher, store Store, ttl time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{inner: inner, store: store, key: DefaultKey, ttl: ttl, logger: logger}
}

// Fetch returns the decoded feed, from the cache when fresh.
func (c *Cached) Fetch(ctx context.Context) ([]domain.FeedRecord, error) {
	body, err := c.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	return imgw.Decode(body)
}

// FetchRaw returns the cached payload or downloads and stores a fresh one.
func (c *Cached) FetchRaw(ctx context.Context) ([]byte, error) {
	body, err := c.store.Get(ctx, c.key)
	switch {
	case err == nil && len(body) > 0:
		return body, nil
	case err != nil && !errors.Is(err, ErrMiss):
		c.logger.Warn().Err(err).Msg("feed cache read failed")
	}

	body, err = c.inner.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	// Only well-formed payloads are cached.
	if _, derr := imgw.Decode(body); derr != nil {
		return body, nil
	}
	if err := c.store.Set(ctx, c.key, body, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("feed cache write failed")
	}
	return body, nil
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore wraps rdb.
func NewRedisStore(rdb redis.Cmdable) *RedisStore { return &RedisStore{rdb: rdb} }

// Get returns the value at key or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// Set stores val at key with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

// OpenRedis builds a client for addr. The connection is lazy; Ping reports
// reachability.
func OpenRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
