package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const purchaseColumns = `id, user_id, prompt_id, source, purchased_at, is_active`

type PurchaseRepo struct {
	db *sql.DB
}

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

func (r *PurchaseRepo) FindActive(ctx context.Context, userID, itemID string) (model.PurchaseRecord, error) {
	if r.db == nil {
		return model.PurchaseRecord{}, fmt.Errorf("sqlite db is nil")
	}

	record, err := scanPurchase(r.db.QueryRowContext(ctx, `
SELECT `+purchaseColumns+`
FROM user_prompts
WHERE user_id = ? AND prompt_id = ? AND is_active = 1
LIMIT 1`, userID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PurchaseRecord{}, model.ErrNotFound
		}
		return model.PurchaseRecord{}, fmt.Errorf("find active purchase: %w", err)
	}
	return record, nil
}

// UpsertActive relies on the partial unique index: a second active insert for
// the same pair is dropped and the existing row is returned instead.
func (r *PurchaseRepo) UpsertActive(ctx context.Context, userID, itemID string, source enums.PurchaseSource, at time.Time) (model.PurchaseRecord, bool, error) {
	if r.db == nil {
		return model.PurchaseRecord{}, false, fmt.Errorf("sqlite db is nil")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(itemID) == "" {
		return model.PurchaseRecord{}, false, fmt.Errorf("invalid purchase upsert payload")
	}

	record, err := scanPurchase(r.db.QueryRowContext(ctx, `
INSERT INTO user_prompts (user_id, prompt_id, source, purchased_at, is_active)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT DO NOTHING
RETURNING `+purchaseColumns, userID, itemID, string(source), toUnix(at)))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.PurchaseRecord{}, false, fmt.Errorf("upsert active purchase: %w", err)
	}

	existing, err := r.FindActive(ctx, userID, itemID)
	if err != nil {
		return model.PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+purchaseColumns+`
FROM user_prompts
WHERE user_id = ?
ORDER BY purchased_at DESC, id DESC`, userID)
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

func (r *PurchaseRepo) ListUsersWithNumericItems(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT user_id
FROM user_prompts
WHERE prompt_id <> '' AND prompt_id NOT GLOB '*[^0-9]*'
ORDER BY user_id`)
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
	if r.db == nil {
		return fmt.Errorf("sqlite db is nil")
	}
	if recordID <= 0 || strings.TrimSpace(newItemID) == "" {
		return fmt.Errorf("invalid item id update payload")
	}

	res, err := r.db.ExecContext(ctx, `UPDATE user_prompts SET prompt_id = ? WHERE id = ?`, newItemID, recordID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrActivePurchaseExists
		}
		return fmt.Errorf("update purchase item id: %w", err)
	}
	return requireAffected(res)
}

func (r *PurchaseRepo) Deactivate(ctx context.Context, recordID int64, itemID string) error {
	if r.db == nil {
		return fmt.Errorf("sqlite db is nil")
	}
	if recordID <= 0 || strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("invalid deactivate payload")
	}

	res, err := r.db.ExecContext(ctx, `UPDATE user_prompts SET is_active = 0, prompt_id = ? WHERE id = ?`, itemID, recordID)
	if err != nil {
		return fmt.Errorf("deactivate purchase: %w", err)
	}
	return requireAffected(res)
}

func (r *PurchaseRepo) KeepEarliestPurchasedAt(ctx context.Context, recordID int64, at time.Time) error {
	if r.db == nil {
		return fmt.Errorf("sqlite db is nil")
	}

	ts := toUnix(at)
	if _, err := r.db.ExecContext(ctx, `
UPDATE user_prompts SET purchased_at = ?
WHERE id = ? AND purchased_at > ?`, ts, recordID, ts); err != nil {
		return fmt.Errorf("keep earliest purchased_at: %w", err)
	}
	return nil
}

// InsertRaw writes a row as-is, bypassing the upsert. It exists for seeding
// legacy data and for tests.
func (r *PurchaseRepo) InsertRaw(ctx context.Context, record model.PurchaseRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("sqlite db is nil")
	}

	source := record.Source
	if source == "" {
		source = enums.PurchaseSourceLegacy
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO user_prompts (user_id, prompt_id, source, purchased_at, is_active)
VALUES (?, ?, ?, ?, ?)`, record.UserID, record.ItemID, string(source), toUnix(record.PurchasedAt), record.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrActivePurchaseExists
		}
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (model.PurchaseRecord, error) {
	var (
		record      model.PurchaseRecord
		source      string
		purchasedAt int64
	)
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ItemID,
		&source,
		&purchasedAt,
		&record.IsActive,
	); err != nil {
		return model.PurchaseRecord{}, err
	}
	record.Source = enums.PurchaseSource(source)
	record.PurchasedAt = fromUnix(purchasedAt)
	return record, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
