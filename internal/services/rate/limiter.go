package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, span time.Duration) (int64, time.Duration, error)
}

// Window is one fixed counting window. A zero Limit disables it.
type Window struct {
	Name  string
	Span  time.Duration
	Limit int
}

// CheckoutWindows is the burst plus sustained pair used for checkout.
func CheckoutWindows(perMinute, per10Sec int) []Window {
	return []Window{
		{Name: "10s", Span: 10 * time.Second, Limit: per10Sec},
		{Name: "1m", Span: time.Minute, Limit: perMinute},
	}
}

// Limiter counts attempts of one named action per user across every
// configured window. An attempt is refused when any window is over its limit.
type Limiter struct {
	store   WindowStore
	action  string
	windows []Window
}

func NewLimiter(store WindowStore, action string, windows ...Window) *Limiter {
	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Limit > 0 && w.Span > 0 {
			active = append(active, w)
		}
	}
	return &Limiter{
		store:   store,
		action:  strings.TrimSpace(action),
		windows: active,
	}
}

// Allow records the attempt. When refused it returns the seconds until the
// longest blocking window resets.
func (l *Limiter) Allow(ctx context.Context, userID string) (int64, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter time.Duration
	for _, w := range l.windows {
		count, ttl, err := l.store.IncrementWindow(ctx, l.key(w, userID), w.Span)
		if err != nil {
			return 0, false, fmt.Errorf("count %s window: %w", w.Name, err)
		}
		if count > int64(w.Limit) && ttl > retryAfter {
			retryAfter = ttl
		}
	}

	if retryAfter > 0 {
		return ceilSeconds(retryAfter), false, nil
	}
	return 0, true, nil
}

func (l *Limiter) key(w Window, userID string) string {
	return "rate:" + l.action + ":" + w.Name + ":" + userID
}

func ceilSeconds(d time.Duration) int64 {
	sec := int64((d + time.Second - 1) / time.Second)
	if sec < 1 {
		return 1
	}
	return sec
}
