package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

const catalogItemPrefix = "catalog:item:"

// CacheRepo keeps short-lived copies of catalog items keyed by canonical id.
type CacheRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCacheRepo(client *goredis.Client, ttl time.Duration) *CacheRepo {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheRepo{client: client, ttl: ttl}
}

func (r *CacheRepo) GetItem(ctx context.Context, canonicalID string) (model.CatalogItem, bool, error) {
	if r.client == nil {
		return model.CatalogItem{}, false, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, catalogItemKey(canonicalID)).Bytes()
	if err == goredis.Nil {
		return model.CatalogItem{}, false, nil
	}
	if err != nil {
		return model.CatalogItem{}, false, fmt.Errorf("get cached catalog item: %w", err)
	}

	var cached cachedCatalogItem
	if err := json.Unmarshal(raw, &cached); err != nil {
		return model.CatalogItem{}, false, fmt.Errorf("decode cached catalog item: %w", err)
	}
	return cached.toModel(), true, nil
}

func (r *CacheRepo) PutItem(ctx context.Context, item model.CatalogItem) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(item.CanonicalID) == "" {
		return fmt.Errorf("canonical id is required")
	}

	raw, err := json.Marshal(fromCatalogModel(item))
	if err != nil {
		return fmt.Errorf("encode catalog item: %w", err)
	}
	if err := r.client.Set(ctx, catalogItemKey(item.CanonicalID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache catalog item: %w", err)
	}
	return nil
}

// cachedCatalogItem carries the internal id, which the public JSON shape of
// model.CatalogItem hides.
type cachedCatalogItem struct {
	InternalID  int64     `json:"internal_id"`
	CanonicalID string    `json:"canonical_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Industry    string    `json:"industry"`
	Purpose     string    `json:"purpose"`
	Price       int64     `json:"price"`
	IsFree      bool      `json:"is_free"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func fromCatalogModel(item model.CatalogItem) cachedCatalogItem {
	return cachedCatalogItem{
		InternalID:  item.InternalID,
		CanonicalID: item.CanonicalID,
		Name:        item.Name,
		Description: item.Description,
		Industry:    item.Industry,
		Purpose:     item.Purpose,
		Price:       item.Price,
		IsFree:      item.IsFree,
		IsActive:    item.IsActive,
		CreatedAt:   item.CreatedAt,
	}
}

func (c cachedCatalogItem) toModel() model.CatalogItem {
	return model.CatalogItem{
		InternalID:  c.InternalID,
		CanonicalID: c.CanonicalID,
		Name:        c.Name,
		Description: c.Description,
		Industry:    c.Industry,
		Purpose:     c.Purpose,
		Price:       c.Price,
		IsFree:      c.IsFree,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
	}
}

func catalogItemKey(canonicalID string) string {
	return catalogItemPrefix + canonicalID
}
