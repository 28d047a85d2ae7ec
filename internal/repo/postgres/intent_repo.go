package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const intentColumns = `id, user_id, item_id, provider_session_id, status, created_at, updated_at`

type IntentRepo struct {
	pool *pgxpool.Pool
}

func NewIntentRepo(pool *pgxpool.Pool) *IntentRepo {
	return &IntentRepo{pool: pool}
}

func (r *IntentRepo) Create(ctx context.Context, intent model.CheckoutIntent) (model.CheckoutIntent, error) {
	if r.pool == nil {
		return model.CheckoutIntent{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(intent.UserID) == "" || strings.TrimSpace(intent.ItemID) == "" || strings.TrimSpace(intent.ProviderSessionID) == "" {
		return model.CheckoutIntent{}, fmt.Errorf("invalid checkout intent payload")
	}

	id, err := uuid.Parse(intent.ID)
	if err != nil {
		id = uuid.New()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}

	created, err := scanIntent(r.pool.QueryRow(ctx, `
INSERT INTO checkout_intents (id, user_id, item_id, provider_session_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'pending', $5, $5)
ON CONFLICT (provider_session_id) DO UPDATE SET updated_at = checkout_intents.updated_at
RETURNING `+intentColumns+`
`, id, intent.UserID, intent.ItemID, intent.ProviderSessionID, intent.CreatedAt.UTC()))
	if err != nil {
		return model.CheckoutIntent{}, fmt.Errorf("create checkout intent: %w", err)
	}
	return created, nil
}

func (r *IntentRepo) FindBySessionID(ctx context.Context, sessionID string) (model.CheckoutIntent, error) {
	if r.pool == nil {
		return model.CheckoutIntent{}, fmt.Errorf("postgres pool is nil")
	}

	intent, err := scanIntent(r.pool.QueryRow(ctx, `
SELECT `+intentColumns+`
FROM checkout_intents
WHERE provider_session_id = $1
LIMIT 1
`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CheckoutIntent{}, model.ErrNotFound
		}
		return model.CheckoutIntent{}, fmt.Errorf("find checkout intent: %w", err)
	}
	return intent, nil
}

// MarkCompleted moves a pending or expired intent to completed. A payment can
// land after the cleanup job expired its intent, and the payment wins.
func (r *IntentRepo) MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE checkout_intents
SET status = 'completed',
	updated_at = $2
WHERE provider_session_id = $1
  AND status <> 'completed'
`, sessionID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("mark checkout intent completed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *IntentRepo) ListPendingByUser(ctx context.Context, userID string) ([]model.CheckoutIntent, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+intentColumns+`
FROM checkout_intents
WHERE user_id = $1
  AND status = 'pending'
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	defer rows.Close()

	out := make([]model.CheckoutIntent, 0, 4)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout intent: %w", err)
		}
		out = append(out, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout intents: %w", err)
	}
	return out, nil
}

func (r *IntentRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE checkout_intents
SET status = 'expired',
	updated_at = NOW()
WHERE status = 'pending'
  AND created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending intents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanIntent(row pgx.Row) (model.CheckoutIntent, error) {
	var (
		intent model.CheckoutIntent
		id     uuid.UUID
		status string
	)
	if err := row.Scan(
		&id,
		&intent.UserID,
		&intent.ItemID,
		&intent.ProviderSessionID,
		&status,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	); err != nil {
		return model.CheckoutIntent{}, err
	}
	intent.ID = id.String()
	intent.Status = enums.IntentStatus(status)
	return intent, nil
}
