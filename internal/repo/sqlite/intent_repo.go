package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const intentColumns = `id, user_id, item_id, provider_session_id, status, created_at, updated_at`

type IntentRepo struct {
	db *sql.DB
}

func NewIntentRepo(db *sql.DB) *IntentRepo {
	return &IntentRepo{db: db}
}

func (r *IntentRepo) Create(ctx context.Context, intent model.CheckoutIntent) (model.CheckoutIntent, error) {
	if r.db == nil {
		return model.CheckoutIntent{}, fmt.Errorf("sqlite db is nil")
	}
	if strings.TrimSpace(intent.UserID) == "" || strings.TrimSpace(intent.ItemID) == "" || strings.TrimSpace(intent.ProviderSessionID) == "" {
		return model.CheckoutIntent{}, fmt.Errorf("invalid checkout intent payload")
	}
	if _, err := uuid.Parse(intent.ID); err != nil {
		intent.ID = uuid.NewString()
	}

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	ts := toUnix(intent.CreatedAt)
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO checkout_intents (id, user_id, item_id, provider_session_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'pending', ?, ?)
ON CONFLICT (provider_session_id) DO NOTHING`,
		intent.ID, intent.UserID, intent.ItemID, intent.ProviderSessionID, ts, ts); err != nil {
		return model.CheckoutIntent{}, fmt.Errorf("create checkout intent: %w", err)
	}

	return r.FindBySessionID(ctx, intent.ProviderSessionID)
}

func (r *IntentRepo) FindBySessionID(ctx context.Context, sessionID string) (model.CheckoutIntent, error) {
	if r.db == nil {
		return model.CheckoutIntent{}, fmt.Errorf("sqlite db is nil")
	}

	intent, err := scanIntent(r.db.QueryRowContext(ctx, `
SELECT `+intentColumns+` FROM checkout_intents WHERE provider_session_id = ? LIMIT 1`, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CheckoutIntent{}, model.ErrNotFound
		}
		return model.CheckoutIntent{}, fmt.Errorf("find checkout intent: %w", err)
	}
	return intent, nil
}

func (r *IntentRepo) MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("sqlite db is nil")
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE checkout_intents SET status = 'completed', updated_at = ?
WHERE provider_session_id = ? AND status <> 'completed'`, toUnix(at), sessionID)
	if err != nil {
		return false, fmt.Errorf("mark checkout intent completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *IntentRepo) ListPendingByUser(ctx context.Context, userID string) ([]model.CheckoutIntent, error) {
	if r.db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+intentColumns+` FROM checkout_intents
WHERE user_id = ? AND status = 'pending'
ORDER BY created_at DESC`, userID)
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
	if r.db == nil {
		return 0, fmt.Errorf("sqlite db is nil")
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE checkout_intents SET status = 'expired', updated_at = ?
WHERE status = 'pending' AND created_at < ?`, toUnix(time.Now()), toUnix(cutoff))
	if err != nil {
		return 0, fmt.Errorf("expire pending intents: %w", err)
	}
	return res.RowsAffected()
}

func scanIntent(row rowScanner) (model.CheckoutIntent, error) {
	var (
		intent    model.CheckoutIntent
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&intent.ID,
		&intent.UserID,
		&intent.ItemID,
		&intent.ProviderSessionID,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.CheckoutIntent{}, err
	}
	intent.Status = enums.IntentStatus(status)
	intent.CreatedAt = fromUnix(createdAt)
	intent.UpdatedAt = fromUnix(updatedAt)
	return intent, nil
}
