package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"fotos/internal/logging"
	"fotos/internal/metrics"
)

const keyPrefix = "fotos:"

// Cache stores JSON-encoded values with a time to live.
type Cache interface {
	// Get decodes the value stored under key into dest. It reports false,
	// without error, when the key is absent or expired.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	// Flush drops every entry this cache owns.
	Flush(ctx context.Context) error
	Backend() string
	Close() error
}

// Memory is a process-local cache.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates an in-memory cache that purges expired entries every
// cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	v, ok := m.store.Get(keyPrefix + key)
	if !ok {
		metrics.ResponseCacheMisses.WithLabelValues(m.Backend()).Inc()
		return false, nil
	}
	metrics.ResponseCacheHits.WithLabelValues(m.Backend()).Inc()
	return true, json.Unmarshal(v.([]byte), dest)
}

func (m *Memory) Set(_ context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.store.Set(keyPrefix+key, data, ttl)
	return nil
}

func (m *Memory) Flush(context.Context) error {
	m.store.Flush()
	return nil
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Close() error { return nil }

// Redis is a cache shared by every instance pointing at the same server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the server at a redis:// URL.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ResponseCacheMisses.WithLabelValues(r.Backend()).Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.ResponseCacheHits.WithLabelValues(r.Backend()).Inc()
	return true, json.Unmarshal(val, dest)
}

func (r *Redis) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// Flush deletes the keys under this cache's prefix only.
func (r *Redis) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Close() error { return r.client.Close() }

// New returns a Redis cache when redisURL is set and reachable, and an
// in-memory cache otherwise.
func New(ctx context.Context, redisURL string) Cache {
	if redisURL == "" {
		logging.Info("Response cache: in-memory (REDIS_URL not set)")
		return NewMemory(10 * time.Minute)
	}

	rc, err := NewRedis(ctx, redisURL)
	if err != nil {
		logging.Warn("Response cache: Redis connect failed (%v), falling back to memory", err)
		return NewMemory(10 * time.Minute)
	}
	logging.Info("Response cache: Redis")
	return rc
}
