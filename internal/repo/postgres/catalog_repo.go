package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const catalogColumns = `id, prompt_id, name, description, industry, purpose, price, is_free, is_active, created_at`

// CatalogRepo reads the prompts table. It never writes; catalog content is
// managed outside this service.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error) {
	if r.pool == nil {
		return model.CatalogItem{}, fmt.Errorf("postgres pool is nil")
	}

	item, err := scanCatalogItem(r.pool.QueryRow(ctx, `
SELECT `+catalogColumns+`
FROM prompts
WHERE prompt_id = $1
LIMIT 1
`, canonicalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CatalogItem{}, model.ErrNotFound
		}
		return model.CatalogItem{}, fmt.Errorf("get catalog item by canonical id: %w", err)
	}
	return item, nil
}

func (r *CatalogRepo) GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error) {
	if r.pool == nil {
		return model.CatalogItem{}, fmt.Errorf("postgres pool is nil")
	}

	item, err := scanCatalogItem(r.pool.QueryRow(ctx, `
SELECT `+catalogColumns+`
FROM prompts
WHERE id = $1
LIMIT 1
`, internalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CatalogItem{}, model.ErrNotFound
		}
		return model.CatalogItem{}, fmt.Errorf("get catalog item by internal id: %w", err)
	}
	return item, nil
}

func (r *CatalogRepo) ListAll(ctx context.Context) ([]model.CatalogItem, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+catalogColumns+`
FROM prompts
ORDER BY created_at DESC, id DESC
`)
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

func scanCatalogItem(row pgx.Row) (model.CatalogItem, error) {
	var item model.CatalogItem
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
		&item.CreatedAt,
	); err != nil {
		return model.CatalogItem{}, err
	}
	return item, nil
}
