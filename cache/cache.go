/*
Package cache holds computed leaderboard views between ledger changes.

PURPOSE:
  Top-N boards and statistics are read on every dashboard load but only
  change when an approval moves points. Views are cached per fiscal year
  and dropped as a whole when any entry of that year changes.

KEYS (Redis):
  rewards:lb:<fiscal year>:gen         generation counter
  rewards:lb:<fiscal year>:<gen>:<key> JSON view, expires after TTL

  Invalidate bumps the generation, so stale views become unreachable
  without a SCAN and expire on their own.

FAILURE MODE:
  Caching is best-effort. Errors are logged and reads fall through to the
  store.
*/
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// Leaderboard caches views by fiscal year.
type Leaderboard interface {
	// Get decodes the view into dst and reports whether it was present.
	Get(ctx context.Context, fiscalYear, key string, dst any) bool
	Set(ctx context.Context, fiscalYear, key string, v any)
	// Invalidate drops every view of the fiscal year.
	Invalidate(ctx context.Context, fiscalYear string)
}

// =============================================================================
// REDIS
// =============================================================================

const keyPrefix = "rewards:lb:"

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewRedisClient connects to addr and pings it. Returns nil when the
// server is unreachable so callers can run without a cache.
func NewRedisClient(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil
	}
	return client
}

func NewRedis(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log.Named("cache")}
}

func genKey(fiscalYear string) string {
	return keyPrefix + fiscalYear + ":gen"
}

func viewKey(fiscalYear string, gen int64, key string) string {
	return keyPrefix + fiscalYear + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *Redis) generation(ctx context.Context, fiscalYear string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey(fiscalYear)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *Redis) Get(ctx context.Context, fiscalYear, key string, dst any) bool {
	gen, err := c.generation(ctx, fiscalYear)
	if err != nil {
		c.log.Warn("cache generation read failed", zap.Error(err))
		return false
	}
	bs, err := c.rdb.Get(ctx, viewKey(fiscalYear, gen, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(bs, dst); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Redis) Set(ctx context.Context, fiscalYear, key string, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	gen, err := c.generation(ctx, fiscalYear)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, viewKey(fiscalYear, gen, key), bs, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Redis) Invalidate(ctx context.Context, fiscalYear string) {
	if err := c.rdb.Incr(ctx, genKey(fiscalYear)).Err(); err != nil {
		c.log.Warn("cache invalidation failed", zap.String("fiscal_year", fiscalYear), zap.Error(err))
	}
}

// =============================================================================
// IN-PROCESS
// =============================================================================

type memItem struct {
	value   []byte
	expires time.Time
}

// Memory is a process-local cache with the same semantics as Redis.
type Memory struct {
	mu    sync.Mutex
	items map[string]map[string]memItem // fiscal year -> key
	ttl   time.Duration
	clock generic.Clock
}

func NewMemory(ttl time.Duration, clock generic.Clock) *Memory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Memory{items: make(map[string]map[string]memItem), ttl: ttl, clock: clock}
}

func (m *Memory) Get(_ context.Context, fiscalYear, key string, dst any) bool {
	m.mu.Lock()
	it, ok := m.items[fiscalYear][key]
	m.mu.Unlock()
	if !ok || !m.clock.Now().Before(it.expires) {
		return false
	}
	return json.Unmarshal(it.value, dst) == nil
}

func (m *Memory) Set(_ context.Context, fiscalYear, key string, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[fiscalYear] == nil {
		m.items[fiscalYear] = make(map[string]memItem)
	}
	m.items[fiscalYear][key] = memItem{value: bs, expires: m.clock.Now().Add(m.ttl)}
}

func (m *Memory) Invalidate(_ context.Context, fiscalYear string) {
	m.mu.Lock()
	delete(m.items, fiscalYear)
	m.mu.Unlock()
}

// =============================================================================
// NOP
// =============================================================================

type Nop struct{}

func (Nop) Get(context.Context, string, string, any) bool { return false }
func (Nop) Set(context.Context, string, string, any)      {}
func (Nop) Invalidate(context.Context, string)            {}

var (
	_ Leaderboard = (*Redis)(nil)
	_ Leaderboard = (*Memory)(nil)
	_ Leaderboard = Nop{}
)
