package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

var ErrScopeRequired = errors.New("either a user or all users must be selected")

type PurchaseStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error)
	ListUsersWithNumericItems(ctx context.Context) ([]string, error)
	FindActive(ctx context.Context, userID, itemID string) (model.PurchaseRecord, error)
	UpdateItemID(ctx context.Context, recordID int64, newItemID string) error
	Deactivate(ctx context.Context, recordID int64, itemID string) error
	KeepEarliestPurchasedAt(ctx context.Context, recordID int64, at time.Time) error
}

type Catalog interface {
	GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error)
}

type AuditStore interface {
	AppendBatch(ctx context.Context, entries []model.ReconcileAuditEntry) error
}

type ReportSink interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

type Dependencies struct {
	Purchases PurchaseStore
	Catalog   Catalog
	Audit     AuditStore
	Reports   ReportSink
	Logger    *zap.Logger
}

type Options struct {
	UserID string
	All    bool
	DryRun bool
}

type RowResult struct {
	RecordID   int64                  `json:"record_id"`
	UserID     string                 `json:"user_id"`
	FromItemID string                 `json:"from_item_id"`
	ToItemID   string                 `json:"to_item_id,omitempty"`
	Outcome    enums.ReconcileOutcome `json:"outcome"`
	Detail     string                 `json:"detail,omitempty"`
}

type Summary struct {
	RunID       string      `json:"run_id"`
	DryRun      bool        `json:"dry_run"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Users       int         `json:"users"`
	Scanned     int         `json:"scanned"`
	Repaired    int         `json:"repaired"`
	Deactivated int         `json:"deactivated"`
	Unfixed     int         `json:"unfixed"`
	Failed      int         `json:"failed"`
	Rows        []RowResult `json:"rows"`
	AuditSaved  bool        `json:"audit_saved"`
	ReportKey   string      `json:"report_key,omitempty"`
}

// Job rewrites purchase rows whose item id was stored as the catalog's
// numeric row id. It only touches numeric-shaped rows, so it can run next to
// live fulfillment writes. Each row is independent; a failing row is counted
// and the run moves on.
type Job struct {
	purchases PurchaseStore
	catalog   Catalog
	audit     AuditStore
	reports   ReportSink
	logger    *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

func New(deps Dependencies) *Job {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		purchases: deps.Purchases,
		catalog:   deps.Catalog,
		audit:     deps.Audit,
		reports:   deps.Reports,
		logger:    logger,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

func (j *Job) Run(ctx context.Context, opts Options) (Summary, error) {
	if j.purchases == nil || j.catalog == nil {
		return Summary{}, fmt.Errorf("reconcile dependencies are not configured")
	}
	userID := rules.NormalizeUserID(opts.UserID)
	if userID == "" && !opts.All {
		return Summary{}, ErrScopeRequired
	}

	summary := Summary{
		RunID:     j.newRunID(),
		DryRun:    opts.DryRun,
		StartedAt: j.now().UTC(),
		Rows:      []RowResult{},
	}
	logger := j.logger.With(zap.String("run_id", summary.RunID), zap.Bool("dry_run", opts.DryRun))

	users := []string{userID}
	if userID == "" {
		listed, err := j.purchases.ListUsersWithNumericItems(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("list users with numeric items: %w", err)
		}
		users = listed
	}
	summary.Users = len(users)

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		j.reconcileUser(ctx, logger, user, opts.DryRun, &summary)
	}

	summary.FinishedAt = j.now().UTC()
	j.saveAudit(ctx, logger, &summary)
	j.saveReport(ctx, logger, &summary)

	logger.Info("reconcile run finished",
		zap.Int("users", summary.Users),
		zap.Int("scanned", summary.Scanned),
		zap.Int("repaired", summary.Repaired),
		zap.Int("deactivated", summary.Deactivated),
		zap.Int("unfixed", summary.Unfixed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (j *Job) reconcileUser(ctx context.Context, logger *zap.Logger, userID string, dryRun bool, summary *Summary) {
	records, err := j.purchases.ListByUser(ctx, userID)
	if err != nil {
		j.add(logger, summary, RowResult{
			UserID:  userID,
			Outcome: enums.ReconcileOutcomeFailed,
			Detail:  fmt.Sprintf("list purchases: %v", err),
		})
		return
	}

	for _, record := range records {
		if !rules.IsNumericItemID(record.ItemID) {
			continue
		}
		summary.Scanned++
		j.add(logger, summary, j.reconcileRow(ctx, record, dryRun))
	}
}

func (j *Job) reconcileRow(ctx context.Context, record model.PurchaseRecord, dryRun bool) RowResult {
	res := RowResult{
		RecordID:   record.ID,
		UserID:     record.UserID,
		FromItemID: record.ItemID,
	}

	internalID, ok := rules.ParseInternalID(record.ItemID)
	if !ok {
		res.Outcome = enums.ReconcileOutcomeUnfixed
		res.Detail = "item id out of range"
		return res
	}
	item, err := j.catalog.GetByInternalID(ctx, internalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			res.Outcome = enums.ReconcileOutcomeUnfixed
			res.Detail = "no catalog item with this internal id"
			return res
		}
		return failed(res, "lookup catalog item", err)
	}
	res.ToItemID = item.CanonicalID

	// Inactive rows never collide with the active-only unique index.
	if !record.IsActive {
		if !dryRun {
			if err := j.purchases.UpdateItemID(ctx, record.ID, item.CanonicalID); err != nil {
				return failed(res, "update item id", err)
			}
		}
		res.Outcome = enums.ReconcileOutcomeRepaired
		return res
	}

	existing, err := j.purchases.FindActive(ctx, record.UserID, item.CanonicalID)
	switch {
	case err == nil && existing.ID != record.ID:
		return j.deactivate(ctx, res, record, existing, dryRun)
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return failed(res, "lookup canonical purchase", err)
	}

	if dryRun {
		res.Outcome = enums.ReconcileOutcomeRepaired
		return res
	}
	err = j.purchases.UpdateItemID(ctx, record.ID, item.CanonicalID)
	if err == nil {
		res.Outcome = enums.ReconcileOutcomeRepaired
		return res
	}
	if !errors.Is(err, model.ErrActivePurchaseExists) {
		return failed(res, "update item id", err)
	}

	// A canonical row was written between the lookup and the update.
	existing, err = j.purchases.FindActive(ctx, record.UserID, item.CanonicalID)
	if err != nil {
		return failed(res, "lookup canonical purchase after conflict", err)
	}
	return j.deactivate(ctx, res, record, existing, dryRun)
}

// deactivate retires the legacy duplicate and carries its purchase time over
// to the surviving row when it is earlier.
func (j *Job) deactivate(ctx context.Context, res RowResult, record, survivor model.PurchaseRecord, dryRun bool) RowResult {
	res.Outcome = enums.ReconcileOutcomeDeactivated
	res.Detail = fmt.Sprintf("active canonical row %d already exists", survivor.ID)
	if dryRun {
		return res
	}

	if err := j.purchases.Deactivate(ctx, record.ID, res.ToItemID); err != nil {
		return failed(res, "deactivate duplicate", err)
	}
	if record.PurchasedAt.Before(survivor.PurchasedAt) {
		if err := j.purchases.KeepEarliestPurchasedAt(ctx, survivor.ID, record.PurchasedAt); err != nil {
			res.Detail += fmt.Sprintf("; keep earliest purchased_at: %v", err)
		}
	}
	return res
}

func (j *Job) add(logger *zap.Logger, summary *Summary, res RowResult) {
	switch res.Outcome {
	case enums.ReconcileOutcomeRepaired:
		summary.Repaired++
	case enums.ReconcileOutcomeDeactivated:
		summary.Deactivated++
	case enums.ReconcileOutcomeUnfixed:
		summary.Unfixed++
	case enums.ReconcileOutcomeFailed:
		summary.Failed++
	}
	summary.Rows = append(summary.Rows, res)

	fields := []zap.Field{
		zap.Int64("record_id", res.RecordID),
		zap.String("user_id", res.UserID),
		zap.String("from_item_id", res.FromItemID),
		zap.String("to_item_id", res.ToItemID),
		zap.String("outcome", string(res.Outcome)),
	}
	if res.Detail != "" {
		fields = append(fields, zap.String("detail", res.Detail))
	}
	if res.Outcome == enums.ReconcileOutcomeFailed {
		logger.Warn("reconcile row failed", fields...)
		return
	}
	logger.Info("reconcile row", fields...)
}

func (j *Job) saveAudit(ctx context.Context, logger *zap.Logger, summary *Summary) {
	if j.audit == nil || len(summary.Rows) == 0 {
		return
	}

	entries := make([]model.ReconcileAuditEntry, 0, len(summary.Rows))
	for _, row := range summary.Rows {
		entries = append(entries, model.ReconcileAuditEntry{
			RunID:      summary.RunID,
			RecordID:   row.RecordID,
			UserID:     row.UserID,
			FromItemID: row.FromItemID,
			ToItemID:   row.ToItemID,
			Outcome:    row.Outcome,
			Detail:     row.Detail,
			DryRun:     summary.DryRun,
			CreatedAt:  summary.FinishedAt,
		})
	}
	if err := j.audit.AppendBatch(ctx, entries); err != nil {
		logger.Error("save reconcile audit failed", zap.Error(err))
		return
	}
	summary.AuditSaved = true
}

func (j *Job) saveReport(ctx context.Context, logger *zap.Logger, summary *Summary) {
	if j.reports == nil {
		return
	}

	key := fmt.Sprintf("reconcile/%s/%s.json", summary.StartedAt.Format("2006-01-02"), summary.RunID)
	body, err := json.Marshal(summary)
	if err != nil {
		logger.Error("encode reconcile report failed", zap.Error(err))
		return
	}
	if err := j.reports.PutJSON(ctx, key, body); err != nil {
		logger.Error("archive reconcile report failed", zap.String("key", key), zap.Error(err))
		return
	}
	summary.ReportKey = key
}

func failed(res RowResult, step string, err error) RowResult {
	res.Outcome = enums.ReconcileOutcomeFailed
	res.Detail = fmt.Sprintf("%s: %v", step, err)
	return res
}
