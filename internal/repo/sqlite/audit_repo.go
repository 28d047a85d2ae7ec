package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) AppendBatch(ctx context.Context, entries []model.ReconcileAuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if r.db == nil {
		return fmt.Errorf("sqlite db is nil")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO reconcile_audit (run_id, record_id, user_id, from_item_id, to_item_id, outcome, detail, dry_run, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		if _, err := stmt.ExecContext(ctx,
			entry.RunID, entry.RecordID, entry.UserID, entry.FromItemID, entry.ToItemID,
			string(entry.Outcome), entry.Detail, entry.DryRun, toUnix(entry.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert audit entry #%d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByRun returns the entries of one run in insertion order.
func (r *AuditRepo) ListByRun(ctx context.Context, runID string) ([]model.ReconcileAuditEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, record_id, user_id, from_item_id, to_item_id, outcome, detail, dry_run, created_at
FROM reconcile_audit WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.ReconcileAuditEntry, 0, 8)
	for rows.Next() {
		var (
			entry     model.ReconcileAuditEntry
			outcome   string
			createdAt int64
		)
		if err := rows.Scan(&entry.RunID, &entry.RecordID, &entry.UserID, &entry.FromItemID, &entry.ToItemID,
			&outcome, &entry.Detail, &entry.DryRun, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Outcome = enums.ReconcileOutcome(outcome)
		entry.CreatedAt = fromUnix(createdAt)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
