package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// AppendBatch writes all entries of a run in one transaction.
func (r *AuditRepo) AppendBatch(ctx context.Context, entries []model.ReconcileAuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, entry := range entries {
			runID, err := uuid.Parse(entry.RunID)
			if err != nil {
				return fmt.Errorf("parse audit run id: %w", err)
			}
			batch.Queue(`
INSERT INTO reconcile_audit (run_id, record_id, user_id, from_item_id, to_item_id, outcome, detail, dry_run, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, runID, entry.RecordID, entry.UserID, entry.FromItemID, entry.ToItemID, string(entry.Outcome), entry.Detail, entry.DryRun, entry.CreatedAt.UTC())
		}

		results := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert reconcile audit: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close audit batch: %w", err)
		}
		return nil
	})
}
