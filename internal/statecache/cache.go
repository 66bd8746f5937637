package statecache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Keys the engine mirrors for dashboards.
const (
	KeyRLStats     = "stratcore:rl_stats"
	KeyConfidence  = "stratcore:confidence"
	KeyAllocations = "stratcore:allocations"
)

// Cache is the live stats mirror: latest JSON payloads by key with TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

type memory struct {
	mu sync.Mutex
	m  map[string]entry
}
type entry struct {
	b   []byte
	exp time.Time
}

// New returns an in-process cache.
func New() Cache { return &memory{m: make(map[string]entry)} }

func (c *memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// redisCache mirrors into Redis so dashboards outside the process can read
// the latest state.
type redisCache struct{ r *redis.Client }

// NewAuto returns a Redis-backed cache when REDIS_ADDR is set, memory
// otherwise.
func NewAuto() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		log.Info().Str("addr", addr).Msg("state cache mirroring to redis")
		return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
	}
	return New()
}

// NewRedis wraps an existing client, mainly for tests.
func NewRedis(client *redis.Client) Cache {
	return &redisCache{r: client}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := r.r.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("state cache set failed")
	}
}

// PutJSON marshals v and stores it under key. Marshal failures are logged
// and dropped; the mirror is best effort by design.
func PutJSON(c Cache, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("state cache marshal failed")
		return
	}
	c.Set(key, data, ttl)
}
