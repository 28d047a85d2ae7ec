package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const catalogColumns = `id, prompt_id, name, description, industry, purpose, price, is_free, is_active, created_at`

type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error) {
	return r.getOne(ctx, `WHERE prompt_id = ?`, canonicalID)
}

func (r *CatalogRepo) GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error) {
	return r.getOne(ctx, `WHERE id = ?`, internalID)
}

func (r *CatalogRepo) ListAll(ctx context.Context) ([]model.CatalogItem, error) {
	if r.db == nil {
		return nil, fmt.Errorf("sqlite db is nil")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+catalogColumns+` FROM prompts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	out := make([]model.CatalogItem, 0, 32)
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog items: %w", err)
	}
	return out, nil
}

// Insert adds a catalog item and returns it with its assigned internal id.
func (r *CatalogRepo) Insert(ctx context.Context, item model.CatalogItem) (model.CatalogItem, error) {
	if r.db == nil {
		return model.CatalogItem{}, fmt.Errorf("sqlite db is nil")
	}
	item.CanonicalID = strings.TrimSpace(item.CanonicalID)
	if item.CanonicalID == "" {
		return model.CatalogItem{}, fmt.Errorf("canonical id is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	var (
		res sql.Result
		err error
	)
	if item.InternalID > 0 {
		res, err = r.db.ExecContext(ctx, `
INSERT INTO prompts (id, prompt_id, name, description, industry, purpose, price, is_free, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.InternalID, item.CanonicalID, item.Name, item.Description, item.Industry, item.Purpose,
			item.Price, item.IsFree, item.IsActive, toUnix(item.CreatedAt))
	} else {
		res, err = r.db.ExecContext(ctx, `
INSERT INTO prompts (prompt_id, name, description, industry, purpose, price, is_free, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.CanonicalID, item.Name, item.Description, item.Industry, item.Purpose,
			item.Price, item.IsFree, item.IsActive, toUnix(item.CreatedAt))
	}
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("insert catalog item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.CatalogItem{}, fmt.Errorf("catalog item id: %w", err)
	}
	item.InternalID = id
	item.CreatedAt = fromUnix(toUnix(item.CreatedAt))
	return item, nil
}

func (r *CatalogRepo) getOne(ctx context.Context, where string, arg any) (model.CatalogItem, error) {
	if r.db == nil {
		return model.CatalogItem{}, fmt.Errorf("sqlite db is nil")
	}

	item, err := scanCatalogItem(r.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM prompts `+where+` LIMIT 1`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CatalogItem{}, model.ErrNotFound
		}
		return model.CatalogItem{}, fmt.Errorf("get catalog item: %w", err)
	}
	return item, nil
}

func scanCatalogItem(row rowScanner) (model.CatalogItem, error) {
	var (
		item      model.CatalogItem
		createdAt int64
	)
	if err := row.Scan(
		&item.InternalID,
		&item.CanonicalID,
		&item.Name,
		&item.Description,
		&item.Industry,
		&item.Purpose,
		&item.Price,
		&item.IsFree,
		&item.IsActive,
		&createdAt,
	); err != nil {
		return model.CatalogItem{}, err
	}
	item.CreatedAt = fromUnix(createdAt)
	return item, nil
}
