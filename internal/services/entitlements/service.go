package entitlements

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/model"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrItemNotFound = errors.New("item not found")
)

type PurchaseStore interface {
	FindActive(ctx context.Context, userID, itemID string) (model.PurchaseRecord, error)
	ListByUser(ctx context.Context, userID string) ([]model.PurchaseRecord, error)
}

type Catalog interface {
	GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error)
	GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error)
}

type IntentStore interface {
	ListPendingByUser(ctx context.Context, userID string) ([]model.CheckoutIntent, error)
}

type Dependencies struct {
	Purchases PurchaseStore
	Catalog   Catalog
	Intents   IntentStore
	Logger    *zap.Logger
}

type Service struct {
	purchases PurchaseStore
	catalog   Catalog
	intents   IntentStore
	logger    *zap.Logger
}

type Access struct {
	Item      model.CatalogItem
	Available bool
	Purchased bool
}

type RecordView struct {
	Record        model.PurchaseRecord
	NumericItemID bool
	// CanonicalID is the catalog id a numeric row resolves to, empty when the
	// row is already canonical or matches no catalog item.
	CanonicalID string
}

type UserPurchases struct {
	UserID         string
	Records        []RecordView
	PendingIntents []model.CheckoutIntent
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		purchases: deps.Purchases,
		catalog:   deps.Catalog,
		intents:   deps.Intents,
		logger:    logger,
	}
}

// Check answers whether userID may use the item. An empty userID is an
// anonymous caller. Pending checkout intents never count as purchases.
func (s *Service) Check(ctx context.Context, userID, itemID string) (Access, error) {
	userID = rules.NormalizeUserID(userID)
	itemID = rules.NormalizeItemID(itemID)
	if itemID == "" {
		return Access{}, ErrValidation
	}
	if s.catalog == nil || s.purchases == nil {
		return Access{}, fmt.Errorf("entitlement dependencies are not configured")
	}

	item, err := s.catalog.GetByCanonicalID(ctx, itemID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Access{}, ErrItemNotFound
		}
		return Access{}, fmt.Errorf("lookup catalog item: %w", err)
	}

	purchased := false
	if userID != "" && !item.IsFree {
		_, err := s.purchases.FindActive(ctx, userID, item.CanonicalID)
		switch {
		case err == nil:
			purchased = true
		case errors.Is(err, model.ErrNotFound):
		default:
			return Access{}, fmt.Errorf("lookup purchase: %w", err)
		}
	}

	return Access{
		Item:      item,
		Available: rules.IsAvailable(item, userID, purchased),
		Purchased: purchased,
	}, nil
}

// ListPurchases returns the caller's active purchases.
func (s *Service) ListPurchases(ctx context.Context, userID string) ([]model.PurchaseRecord, error) {
	userID = rules.NormalizeUserID(userID)
	if userID == "" {
		return nil, ErrValidation
	}
	if s.purchases == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}

	records, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PurchaseRecord, 0, len(records))
	for _, record := range records {
		if record.IsActive {
			out = append(out, record)
		}
	}
	return out, nil
}

// DebugUser returns every row for the user, inactive ones included, with
// legacy numeric ids flagged and resolved where the catalog knows them.
func (s *Service) DebugUser(ctx context.Context, userID string) (UserPurchases, error) {
	userID = rules.NormalizeUserID(userID)
	if userID == "" {
		return UserPurchases{}, ErrValidation
	}
	if s.purchases == nil {
		return UserPurchases{}, fmt.Errorf("purchase store is nil")
	}

	records, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return UserPurchases{}, err
	}

	out := UserPurchases{
		UserID:         userID,
		Records:        make([]RecordView, 0, len(records)),
		PendingIntents: []model.CheckoutIntent{},
	}
	for _, record := range records {
		view := RecordView{Record: record}
		if rules.IsNumericItemID(record.ItemID) {
			view.NumericItemID = true
			if internalID, ok := rules.ParseInternalID(record.ItemID); ok && s.catalog != nil {
				item, err := s.catalog.GetByInternalID(ctx, internalID)
				switch {
				case err == nil:
					view.CanonicalID = item.CanonicalID
				case errors.Is(err, model.ErrNotFound):
				default:
					s.logger.Warn("resolve numeric item id failed",
						zap.Int64("record_id", record.ID),
						zap.Error(err),
					)
				}
			}
		}
		out.Records = append(out.Records, view)
	}

	if s.intents != nil {
		pending, err := s.intents.ListPendingByUser(ctx, userID)
		if err != nil {
			return UserPurchases{}, err
		}
		out.PendingIntents = pending
	}

	return out, nil
}
