package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/model"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error)
	GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error)
	ListAll(ctx context.Context) ([]model.CatalogItem, error)
}

type Cache interface {
	GetItem(ctx context.Context, canonicalID string) (model.CatalogItem, bool, error)
	PutItem(ctx context.Context, item model.CatalogItem) error
}

// Service is the read-only catalog provider. Lookups by canonical id go
// through the cache when one is attached; cache failures only cost a store
// read. Missing items surface as model.ErrNotFound.
type Service struct {
	store  Store
	cache  Cache
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) AttachCache(cache Cache) {
	s.cache = cache
}

func (s *Service) GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error) {
	canonicalID = rules.NormalizeItemID(canonicalID)
	if canonicalID == "" {
		return model.CatalogItem{}, ErrValidation
	}
	if s.store == nil {
		return model.CatalogItem{}, fmt.Errorf("catalog store is nil")
	}

	if s.cache != nil {
		item, ok, err := s.cache.GetItem(ctx, canonicalID)
		if err != nil {
			s.logger.Warn("catalog cache read failed", zap.String("item_id", canonicalID), zap.Error(err))
		} else if ok {
			return item, nil
		}
	}

	item, err := s.store.GetByCanonicalID(ctx, canonicalID)
	if err != nil {
		return model.CatalogItem{}, err
	}

	if s.cache != nil {
		if err := s.cache.PutItem(ctx, item); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("item_id", canonicalID), zap.Error(err))
		}
	}
	return item, nil
}

func (s *Service) GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error) {
	if internalID <= 0 {
		return model.CatalogItem{}, ErrValidation
	}
	if s.store == nil {
		return model.CatalogItem{}, fmt.Errorf("catalog store is nil")
	}
	return s.store.GetByInternalID(ctx, internalID)
}

func (s *Service) ListAll(ctx context.Context) ([]model.CatalogItem, error) {
	if s.store == nil {
		return nil, fmt.Errorf("catalog store is nil")
	}
	return s.store.ListAll(ctx)
}
