package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultIntentTTL = 24 * time.Hour

type intentExpirer interface {
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job moves checkout intents that never completed to expired. Expired
// intents are kept for the admin view; nothing is deleted.
type Job struct {
	intents   intentExpirer
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewIntentCleanupJob(intents intentExpirer, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = defaultIntentTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		intents:   intents,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) (int64, error) {
	if j.intents == nil {
		return 0, nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.intents.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire stale checkout intents: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup stale checkout intents completed",
			zap.Int64("expired", rows),
			zap.Time("cutoff", cutoff),
		)
	}
	return rows, nil
}
