package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/numaken/genpost-sub001/internal/config"
	"github.com/numaken/genpost-sub001/internal/domain/enums"
)

func TestOpenSQLiteFile(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "genpost.db")
	ctx := context.Background()

	stores, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := stores.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, _, err := stores.Purchases.UpsertActive(ctx, "u1", "seo-basic-01", enums.PurchaseSourceTest, time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := stores.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Purchases.FindActive(ctx, "u1", "seo-basic-01"); err != nil {
		t.Fatalf("purchase should persist across reopen: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mysql"
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
