package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

// newTestPool connects to POSTGRES_TEST_DSN and applies the schema. Tests are
// skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{DSN: dsn, MaxConns: 8})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func testUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	userID := "pgtest-" + uuid.NewString() + "@example.com"
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM user_prompts WHERE user_id = $1`, userID)
	})
	return userID
}

func TestPurchaseRepoUpsertActiveIsIdempotent(t *testing.T) {
	pool := newTestPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()
	userID := testUser(t, pool)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, created, err := repo.UpsertActive(ctx, userID, "seo-basic-01", enums.PurchaseSourceWebhook, at)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	second, created, err := repo.UpsertActive(ctx, userID, "seo-basic-01", enums.PurchaseSourceVerify, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("second upsert must return the existing row: first=%d second=%d created=%v", first.ID, second.ID, created)
	}
	if !second.PurchasedAt.Equal(at) || second.Source != enums.PurchaseSourceWebhook {
		t.Fatalf("existing row must be unchanged: %+v", second)
	}
}

func TestPurchaseRepoConcurrentUpsertsKeepOneActiveRow(t *testing.T) {
	pool := newTestPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()
	userID := testUser(t, pool)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[int64]struct{}{}
		errs    []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, ok, err := repo.UpsertActive(ctx, userID, "seo-basic-01", enums.PurchaseSourceWebhook, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				created++
			}
			ids[record.ID] = struct{}{}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("concurrent upserts failed: %v", errs)
	}
	if created != 1 || len(ids) != 1 {
		t.Fatalf("expected one insert and one row, got created=%d ids=%v", created, ids)
	}
	rows, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %+v", rows)
	}
}

func TestPurchaseRepoUpdateItemIDMapsUniqueViolation(t *testing.T) {
	pool := newTestPool(t)
	repo := NewPurchaseRepo(pool)
	ctx := context.Background()
	userID := testUser(t, pool)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, _, err := repo.UpsertActive(ctx, userID, "seo-basic-01", enums.PurchaseSourceWebhook, at); err != nil {
		t.Fatalf("seed canonical: %v", err)
	}
	legacy, _, err := repo.UpsertActive(ctx, userID, "42", enums.PurchaseSourceLegacy, at)
	if err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	if err := repo.UpdateItemID(ctx, legacy.ID, "seo-basic-01"); !errors.Is(err, model.ErrActivePurchaseExists) {
		t.Fatalf("expected ErrActivePurchaseExists, got %v", err)
	}

	if err := repo.Deactivate(ctx, legacy.ID, "seo-basic-01"); err != nil {
		t.Fatalf("deactivate duplicate: %v", err)
	}
	if _, _, err := repo.UpsertActive(ctx, userID, "seo-basic-01", enums.PurchaseSourceWebhook, at); err != nil {
		t.Fatalf("upsert after deactivate: %v", err)
	}
	rows, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, row := range rows {
		if row.IsActive {
			active++
		}
	}
	if len(rows) != 2 || active != 1 {
		t.Fatalf("expected one active and one inactive row, got %+v", rows)
	}
}
