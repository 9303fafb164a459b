package debounce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// observeScript performs the whole sighting update server side so concurrent
// scanners sharing one Redis agree on a route's state.
// KEYS[1] route hash; ARGV: now ms, hold ms, ttl ms.
var observeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local first = redis.call('HGET', KEYS[1], 'first')
if not first then
  redis.call('HSET', KEYS[1], 'first', now, 'fired', 0)
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {0, now, 0}
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
first = tonumber(first)
local fired = tonumber(redis.call('HGET', KEYS[1], 'fired') or '0')
if fired == 1 then
  return {0, first, 1}
end
if now - first >= tonumber(ARGV[2]) then
  return {1, first, 0}
end
return {0, first, 0}
`)

// RedisCache shares debounce state through Redis hashes that expire after
// the TTL, so a route that stops qualifying is forgotten by the server.
type RedisCache struct {
	client *redis.Client
	prefix string
	hold   time.Duration
	ttl    time.Duration
}

// RedisOptions locate the Redis server and key namespace.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, opts RedisOptions, hold, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return newRedisCache(client, opts.Prefix, hold, ttl), nil
}

func newRedisCache(client *redis.Client, prefix string, hold, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "triflow:route"
	}
	return &RedisCache{client: client, prefix: prefix, hold: hold, ttl: ttl}
}

func (c *RedisCache) key(route string) string {
	return c.prefix + ":" + route
}

func (c *RedisCache) Observe(ctx context.Context, route string, now time.Time) (Decision, error) {
	res, err := observeScript.Run(ctx, c.client, []string{c.key(route)},
		now.UnixMilli(), c.hold.Milliseconds(), c.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("observe route %s: %w", route, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("observe route %s: unexpected reply %v", route, res)
	}
	return Decision{
		Ready:     res[0] == 1,
		FirstSeen: time.UnixMilli(res[1]).UTC(),
		Fired:     res[2] == 1,
	}, nil
}

func (c *RedisCache) MarkFired(ctx context.Context, route string, now time.Time) error {
	key := c.key(route)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "first", strconv.FormatInt(now.UnixMilli(), 10))
		pipe.HSet(ctx, key, "fired", 1)
		pipe.PExpire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark route %s fired: %w", route, err)
	}
	return nil
}

// Sweep is a no-op: Redis expires idle routes itself.
func (c *RedisCache) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
