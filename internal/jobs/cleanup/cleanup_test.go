package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	sqliterepo "github.com/numaken/genpost-sub001/internal/repo/sqlite"
)

func TestRunExpiresIntentsOlderThanRetention(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	db, err := sqliterepo.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	intents := sqliterepo.NewIntentRepo(db)

	for _, seed := range []struct {
		session string
		created time.Time
	}{
		{"cs_old", now.Add(-25 * time.Hour)},
		{"cs_fresh", now.Add(-23 * time.Hour)},
	} {
		if _, err := intents.Create(ctx, model.CheckoutIntent{
			UserID:            "u1",
			ItemID:            "seo-basic-01",
			ProviderSessionID: seed.session,
			CreatedAt:         seed.created,
		}); err != nil {
			t.Fatalf("seed intent: %v", err)
		}
	}

	job := NewIntentCleanupJob(intents, 24*time.Hour, nil)
	job.now = func() time.Time { return now }

	expired, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected one expired intent, got %d", expired)
	}

	old, err := intents.FindBySessionID(ctx, "cs_old")
	if err != nil {
		t.Fatalf("find old: %v", err)
	}
	if old.Status != enums.IntentStatusExpired {
		t.Fatalf("expected old intent expired, got %s", old.Status)
	}
	fresh, err := intents.FindBySessionID(ctx, "cs_fresh")
	if err != nil {
		t.Fatalf("find fresh: %v", err)
	}
	if fresh.Status != enums.IntentStatusPending {
		t.Fatalf("expected fresh intent pending, got %s", fresh.Status)
	}

	again, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != 0 {
		t.Fatalf("second run should expire nothing, got %d", again)
	}
}

func TestRunSurfacesStoreError(t *testing.T) {
	job := NewIntentCleanupJob(failingExpirer{}, 0, nil)
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestRunWithoutStoreIsNoop(t *testing.T) {
	job := NewIntentCleanupJob(nil, time.Hour, nil)
	if n, err := job.Run(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected noop, got %d %v", n, err)
	}
}

type failingExpirer struct{}

func (failingExpirer) ExpirePendingBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}
