package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/config"
	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	pgrepo "github.com/numaken/genpost-sub001/internal/repo/postgres"
	sqliterepo "github.com/numaken/genpost-sub001/internal/repo/sqlite"
)

type PurchaseRepo interface {
	FindActive(ctx context.Context, userID, itemID string) (model.PurchaseRecord, error)
	UpsertActive(ctx context.Context, userID, itemID string, source enums.PurchaseSource, at time.Time) (model.PurchaseRecord, bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error)
	ListUsersWithNumericItems(ctx context.Context) ([]string, error)
	UpdateItemID(ctx context.Context, recordID int64, newItemID string) error
	Deactivate(ctx context.Context, recordID int64, itemID string) error
	KeepEarliestPurchasedAt(ctx context.Context, recordID int64, at time.Time) error
}

type CatalogRepo interface {
	GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error)
	GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error)
	ListAll(ctx context.Context) ([]model.CatalogItem, error)
}

type IntentRepo interface {
	Create(ctx context.Context, intent model.CheckoutIntent) (model.CheckoutIntent, error)
	FindBySessionID(ctx context.Context, sessionID string) (model.CheckoutIntent, error)
	MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error)
	ListPendingByUser(ctx context.Context, userID string) ([]model.CheckoutIntent, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditRepo interface {
	AppendBatch(ctx context.Context, entries []model.ReconcileAuditEntry) error
}

// Stores is the durable state behind the API and the admin CLI, backed by
// either postgres or a single sqlite file.
type Stores struct {
	Driver    string
	Purchases PurchaseRepo
	Catalog   CatalogRepo
	Intents   IntentRepo
	Audit     AuditRepo

	pool *pgxpool.Pool
	db   *sql.DB
}

func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Stores, error) {
	if log == nil {
		log = zap.NewNop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch driver {
	case "postgres":
		pool, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info("store opened", zap.String("driver", driver))
		return &Stores{
			Driver:    driver,
			Purchases: pgrepo.NewPurchaseRepo(pool),
			Catalog:   pgrepo.NewCatalogRepo(pool),
			Intents:   pgrepo.NewIntentRepo(pool),
			Audit:     pgrepo.NewAuditRepo(pool),
			pool:      pool,
		}, nil
	case "sqlite":
		db, err := sqliterepo.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("store opened", zap.String("driver", driver), zap.String("path", cfg.SQLite.Path))
		return &Stores{
			Driver:    driver,
			Purchases: sqliterepo.NewPurchaseRepo(db),
			Catalog:   sqliterepo.NewCatalogRepo(db),
			Intents:   sqliterepo.NewIntentRepo(db),
			Audit:     sqliterepo.NewAuditRepo(db),
			db:        db,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// Migrate applies the schema. The sqlite schema is applied on open, so only
// postgres has work to do here.
func (s *Stores) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return pgrepo.Migrate(ctx, s.pool)
}

func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
