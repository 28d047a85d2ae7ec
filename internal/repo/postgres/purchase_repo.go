package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const purchaseColumns = `id, user_id, prompt_id, source, purchased_at, is_active`

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) FindActive(ctx context.Context, userID, itemID string) (model.PurchaseRecord, error) {
	if r.pool == nil {
		return model.PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM user_prompts
WHERE user_id = $1
  AND prompt_id = $2
  AND is_active
LIMIT 1
`, userID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PurchaseRecord{}, model.ErrNotFound
		}
		return model.PurchaseRecord{}, fmt.Errorf("find active purchase: %w", err)
	}
	return record, nil
}

// UpsertActive inserts an active row unless one already exists for the pair.
// The partial unique index settles concurrent inserts; the loser reads the
// winner's row back. created reports whether this call inserted the row.
func (r *PurchaseRepo) UpsertActive(ctx context.Context, userID, itemID string, source enums.PurchaseSource, at time.Time) (model.PurchaseRecord, bool, error) {
	if r.pool == nil {
		return model.PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(itemID) == "" {
		return model.PurchaseRecord{}, false, fmt.Errorf("invalid purchase upsert payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO user_prompts (user_id, prompt_id, source, purchased_at, is_active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (user_id, prompt_id) WHERE is_active DO NOTHING
RETURNING `+purchaseColumns+`
`, userID, itemID, string(source), at.UTC()))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.PurchaseRecord{}, false, fmt.Errorf("upsert active purchase: %w", err)
	}

	existing, err := r.FindActive(ctx, userID, itemID)
	if err != nil {
		return model.PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// ListByUser returns every row for the user, inactive ones included.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM user_prompts
WHERE user_id = $1
ORDER BY purchased_at DESC, id DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases by user: %w", err)
	}
	defer rows.Close()

	out := make([]model.PurchaseRecord, 0, 8)
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return out, nil
}

// ListUsersWithNumericItems returns users owning at least one row whose item
// id is made only of digits.
func (r *PurchaseRepo) ListUsersWithNumericItems(ctx context.Context) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT user_id
FROM user_prompts
WHERE prompt_id ~ '^[0-9]+$'
ORDER BY user_id
`)
	if err != nil {
		return nil, fmt.Errorf("list users with numeric items: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 16)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return out, nil
}

func (r *PurchaseRepo) UpdateItemID(ctx context.Context, recordID int64, newItemID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if recordID <= 0 || strings.TrimSpace(newItemID) == "" {
		return fmt.Errorf("invalid item id update payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE user_prompts
SET prompt_id = $2
WHERE id = $1
`, recordID, newItemID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrActivePurchaseExists
		}
		return fmt.Errorf("update purchase item id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Deactivate soft-disables a row and rewrites its item id in the same
// statement, so an inactive duplicate never keeps the numeric form.
func (r *PurchaseRepo) Deactivate(ctx context.Context, recordID int64, itemID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if recordID <= 0 || strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("invalid deactivate payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE user_prompts
SET is_active = FALSE,
	prompt_id = $2
WHERE id = $1
`, recordID, itemID)
	if err != nil {
		return fmt.Errorf("deactivate purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PurchaseRepo) KeepEarliestPurchasedAt(ctx context.Context, recordID int64, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE user_prompts
SET purchased_at = $2
WHERE id = $1
  AND purchased_at > $2
`, recordID, at.UTC()); err != nil {
		return fmt.Errorf("keep earliest purchased_at: %w", err)
	}
	return nil
}

func scanPurchase(row pgx.Row) (model.PurchaseRecord, error) {
	var (
		record model.PurchaseRecord
		source string
	)
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ItemID,
		&source,
		&record.PurchasedAt,
		&record.IsActive,
	); err != nil {
		return model.PurchaseRecord{}, err
	}
	record.Source = enums.PurchaseSource(source)
	record.PurchasedAt = record.PurchasedAt.UTC()
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
