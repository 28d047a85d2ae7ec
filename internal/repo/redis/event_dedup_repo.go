package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const webhookEventPrefix = "webhook:event:"

// EventDedupRepo remembers provider event ids that were already applied.
type EventDedupRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewEventDedupRepo(client *goredis.Client, ttl time.Duration) *EventDedupRepo {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &EventDedupRepo{client: client, ttl: ttl}
}

func (r *EventDedupRepo) Seen(ctx context.Context, eventID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(eventID) == "" {
		return false, nil
	}

	n, err := r.client.Exists(ctx, webhookEventKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check webhook event marker: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed sets the marker and reports whether this call set it.
func (r *EventDedupRepo) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(eventID) == "" {
		return false, fmt.Errorf("event id is required")
	}

	ok, err := r.client.SetNX(ctx, webhookEventKey(eventID), time.Now().UTC().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set webhook event marker: %w", err)
	}
	return ok, nil
}

func webhookEventKey(eventID string) string {
	return webhookEventPrefix + eventID
}
