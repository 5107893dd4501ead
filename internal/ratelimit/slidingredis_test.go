package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "test:"}
}

func TestLimiterCountsWithinWindow(t *testing.T) {
	limiter := newTestLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "submitter", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected event %d to be allowed", i)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "submitter", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected event over the limit to be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Limiter{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := time.Second

	if allowed, _, _, err := limiter.Allow(ctx, "k", window, 1); err != nil || !allowed {
		t.Fatalf("first event: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, _, _ := limiter.Allow(ctx, "k", window, 1); allowed {
		t.Fatal("expected second event inside the window to be rejected")
	}

	mr.FastForward(window)

	if allowed, _, _, err := limiter.Allow(ctx, "k", window, 1); err != nil || !allowed {
		t.Fatalf("event after window: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	limiter := Limiter{}
	allowed, _, _, err := limiter.Allow(context.Background(), "k", time.Second, 1)
	if err != nil || !allowed {
		t.Fatalf("expected pass-through, allowed=%v err=%v", allowed, err)
	}
}
