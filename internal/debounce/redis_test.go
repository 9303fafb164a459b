package debounce

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T, hold, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := newRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", hold, ttl)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 2*time.Second, time.Minute)
	route := "USDT->BTC->ETH->USDT"
	t0 := time.UnixMilli(1_700_000_000_000).UTC()

	d, err := c.Observe(ctx, route, t0)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if d.Ready || d.Fired || !d.FirstSeen.Equal(t0) {
		t.Fatalf("first sighting: %+v", d)
	}
	if !mr.Exists("triflow:route:" + route) {
		t.Fatal("route key not written")
	}

	d, _ = c.Observe(ctx, route, t0.Add(time.Second))
	if d.Ready || !d.FirstSeen.Equal(t0) {
		t.Fatalf("inside hold: %+v", d)
	}

	d, _ = c.Observe(ctx, route, t0.Add(2*time.Second))
	if !d.Ready || d.Fired {
		t.Fatalf("expected ready after hold: %+v", d)
	}

	if err := c.MarkFired(ctx, route, t0.Add(2*time.Second)); err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	if got := mr.HGet("triflow:route:"+route, "fired"); got != "1" {
		t.Fatalf("fired field = %q", got)
	}
	d, _ = c.Observe(ctx, route, t0.Add(10*time.Second))
	if d.Ready || !d.Fired {
		t.Fatalf("fired route should stay disarmed: %+v", d)
	}

	mr.FastForward(time.Minute + time.Second)
	if mr.Exists("triflow:route:" + route) {
		t.Fatal("route key should expire after ttl")
	}
	t1 := t0.Add(2 * time.Minute)
	d, _ = c.Observe(ctx, route, t1)
	if d.Ready || d.Fired || !d.FirstSeen.Equal(t1) {
		t.Fatalf("expected fresh run after ttl: %+v", d)
	}
}

func TestRedisCacheMarkFiredUnseenRoute(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t, 0, time.Minute)
	t0 := time.UnixMilli(1_700_000_000_000).UTC()

	if err := c.MarkFired(ctx, "r", t0); err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	if ttl := mr.TTL("triflow:route:r"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	d, _ := c.Observe(ctx, "r", t0.Add(time.Second))
	if d.Ready || !d.Fired || !d.FirstSeen.Equal(t0) {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

// TestRedisCacheLive runs against a real server named by TRIFLOW_TEST_REDIS.
func TestRedisCacheLive(t *testing.T) {
	addr := os.Getenv("TRIFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("TRIFLOW_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr, Prefix: "triflow-test"}, 2*time.Second, time.Minute)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	route := uuid.NewString()
	defer c.client.Del(ctx, c.key(route))

	t0 := time.UnixMilli(time.Now().UnixMilli())
	d, err := c.Observe(ctx, route, t0)
	if err != nil || d.Ready {
		t.Fatalf("first sighting: %+v %v", d, err)
	}
	d, _ = c.Observe(ctx, route, t0.Add(2*time.Second))
	if !d.Ready {
		t.Fatalf("expected ready: %+v", d)
	}
	if err := c.MarkFired(ctx, route, t0.Add(2*time.Second)); err != nil {
		t.Fatalf("mark fired: %v", err)
	}
	d, _ = c.Observe(ctx, route, t0.Add(10*time.Second))
	if d.Ready || !d.Fired {
		t.Fatalf("fired route should stay disarmed: %+v", d)
	}
}

func TestRedisCacheKey(t *testing.T) {
	c := newRedisCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", time.Second, time.Minute)
	defer c.Close()
	if got := c.key("abc"); got != "triflow:route:abc" {
		t.Fatalf("key = %s", got)
	}
}
