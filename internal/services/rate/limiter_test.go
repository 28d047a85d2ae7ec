package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/numaken/genpost-sub001/internal/repo/redis"
)

func TestLimiterBlocksOnBurstWindow(t *testing.T) {
	mr, limiter := newLimiter(t, "checkout", CheckoutWindows(100, 2)...)
	ctx := context.Background()
	userID := "buyer@example.com"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.Allow(ctx, userID)
		if err != nil {
			t.Fatalf("allow checkout #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, userID)
	if err != nil {
		t.Fatalf("allow checkout #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third action in 10s window")
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Fatalf("expected retry_after within the burst window, got %d", retryAfter)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.Allow(ctx, userID)
	if err != nil {
		t.Fatalf("allow checkout after 10s window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterReportsLongestBlockingWindow(t *testing.T) {
	_, limiter := newLimiter(t, "checkout", CheckoutWindows(3, 100)...)
	ctx := context.Background()
	userID := "other@example.com"

	for i := 0; i < 3; i++ {
		if _, allowed, err := limiter.Allow(ctx, userID); err != nil || !allowed {
			t.Fatalf("allow #%d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, userID)
	if err != nil {
		t.Fatalf("allow checkout #4: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on fourth action in minute window")
	}
	if retryAfter <= 10 || retryAfter > 60 {
		t.Fatalf("expected minute-scale retry_after, got %d", retryAfter)
	}
}

func TestLimiterKeepsActionsApart(t *testing.T) {
	_, checkout := newLimiter(t, "checkout", Window{Name: "1m", Span: time.Minute, Limit: 1})
	verify := NewLimiter(checkout.store, "verify", Window{Name: "1m", Span: time.Minute, Limit: 1})

	ctx := context.Background()
	if _, allowed, err := checkout.Allow(ctx, "buyer@example.com"); err != nil || !allowed {
		t.Fatalf("first checkout should pass: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := verify.Allow(ctx, "buyer@example.com"); err != nil || !allowed {
		t.Fatalf("verify must not share the checkout window: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := checkout.Allow(ctx, "buyer@example.com"); err != nil || allowed {
		t.Fatalf("second checkout should be blocked: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterWithoutWindowsAllowsEverything(t *testing.T) {
	_, limiter := newLimiter(t, "checkout", CheckoutWindows(0, 0)...)
	for i := 0; i < 50; i++ {
		if _, allowed, err := limiter.Allow(context.Background(), "u1"); err != nil || !allowed {
			t.Fatalf("attempt %d: allowed=%v err=%v", i, allowed, err)
		}
	}
}

func TestCeilSeconds(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		59 * time.Second:        59,
	}
	for in, want := range cases {
		if got := ceilSeconds(in); got != want {
			t.Fatalf("ceilSeconds(%s) = %d, want %d", in, got, want)
		}
	}
}

func newLimiter(t *testing.T, action string, windows ...Window) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, NewLimiter(redrepo.NewRateRepo(client), action, windows...)
}
