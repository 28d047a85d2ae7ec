package model

import (
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
)

type ReconcileAuditEntry struct {
	RunID      string                 `json:"run_id"`
	RecordID   int64                  `json:"record_id"`
	UserID     string                 `json:"user_id"`
	FromItemID string                 `json:"from_item_id"`
	ToItemID   string                 `json:"to_item_id,omitempty"`
	Outcome    enums.ReconcileOutcome `json:"outcome"`
	Detail     string                 `json:"detail,omitempty"`
	DryRun     bool                   `json:"dry_run"`
	CreatedAt  time.Time              `json:"created_at"`
}
