package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T) (*RedisFixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFixedWindowLimiter(client, "rl:test"), mr
}

func TestRedisFixedWindowLimiterCountsPerKey(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("fourth request must be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retry after out of range: %v", retryAfter)
	}

	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.2", 3, time.Minute); !allowed {
		t.Fatal("another key must have its own counter")
	}
}

func TestRedisFixedWindowLimiterWindowExpiry(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()
	window := 30 * time.Second

	if allowed, _, _ := limiter.Allow(ctx, "k", 1, window); !allowed {
		t.Fatal("first request must pass")
	}
	if allowed, _, _ := limiter.Allow(ctx, "k", 1, window); allowed {
		t.Fatal("second request in the window must be denied")
	}

	mr.FastForward(window + time.Second)
	if allowed, _, _ := limiter.Allow(ctx, "k", 1, window); !allowed {
		t.Fatal("counter must reset after the window expires")
	}
}

func TestRedisFixedWindowLimiterBackendDown(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	mr.Close()

	_, _, err := limiter.Allow(context.Background(), "k", 1, time.Minute)
	if err == nil {
		t.Fatal("a dead backend must surface an error for the failure mode to act on")
	}
}

func TestRedisFixedWindowLimiterNilClient(t *testing.T) {
	limiter := NewRedisFixedWindowLimiter(nil, "")
	if _, _, err := limiter.Allow(context.Background(), "k", 1, time.Minute); err == nil {
		t.Fatal("nil client must error")
	}
}

func TestRedisFixedWindowLimiterEmptyKey(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	if allowed, _, err := limiter.Allow(context.Background(), "", 1, time.Minute); err != nil || !allowed {
		t.Fatalf("empty key: allowed=%v err=%v", allowed, err)
	}
	if !mr.Exists("rl:test:unknown") {
		t.Fatal("empty keys must be bucketed under a fallback key")
	}
}
