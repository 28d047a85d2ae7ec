package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrItemNotFound       = errors.New("item not found")
	ErrItemNotPurchasable = errors.New("item not purchasable")
	ErrRateLimited        = errors.New("too many checkout attempts")
)

type RateLimitedError struct {
	RetryAfterSec int64
}

func (e RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e RateLimitedError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl RateLimitedError
	if errors.As(err, &rl) {
		return &rl, true
	}
	return nil, false
}

type Catalog interface {
	GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error)
}

type Gateway interface {
	CreateSession(ctx context.Context, req model.PaymentSessionRequest) (model.PaymentSession, error)
}

type IntentStore interface {
	Create(ctx context.Context, intent model.CheckoutIntent) (model.CheckoutIntent, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID string) (int64, bool, error)
}

type Dependencies struct {
	Catalog     Catalog
	Gateway     Gateway
	Intents     IntentStore
	RateLimiter RateLimiter
	Currency    string
	Logger      *zap.Logger
}

type Result struct {
	URL       string
	SessionID string
	IntentID  string
}

type Service struct {
	catalog  Catalog
	gateway  Gateway
	intents  IntentStore
	limiter  RateLimiter
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:  deps.Catalog,
		gateway:  deps.Gateway,
		intents:  deps.Intents,
		limiter:  deps.RateLimiter,
		currency: deps.Currency,
		logger:   logger,
		now:      time.Now,
	}
}

// Start opens a payment session for one catalog item, addressed by its
// canonical id. The session metadata carries that canonical id, never the
// internal row id.
func (s *Service) Start(ctx context.Context, userID, canonicalID string) (Result, error) {
	userID = rules.NormalizeUserID(userID)
	canonicalID = rules.NormalizeItemID(canonicalID)
	if userID == "" || canonicalID == "" {
		return Result{}, ErrValidation
	}
	if s.catalog == nil || s.gateway == nil {
		return Result{}, fmt.Errorf("checkout dependencies are not configured")
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			s.logger.Warn("checkout rate limiter unavailable", zap.String("user_id", userID), zap.Error(err))
		} else if !allowed {
			return Result{}, RateLimitedError{RetryAfterSec: retryAfter}
		}
	}

	item, err := s.catalog.GetByCanonicalID(ctx, canonicalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, ErrItemNotFound
		}
		return Result{}, fmt.Errorf("lookup catalog item: %w", err)
	}
	if !item.IsActive {
		return Result{}, ErrItemNotFound
	}
	if item.IsFree || item.Price <= 0 {
		return Result{}, ErrItemNotPurchasable
	}

	session, err := s.gateway.CreateSession(ctx, model.PaymentSessionRequest{
		UserID:        userID,
		ItemID:        item.CanonicalID,
		ItemName:      item.Name,
		Description:   item.Description,
		Amount:        item.Price,
		Currency:      s.currency,
		CustomerEmail: userID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create payment session: %w", err)
	}
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.URL) == "" {
		return Result{}, fmt.Errorf("payment session is incomplete")
	}

	result := Result{
		URL:       session.URL,
		SessionID: session.ID,
	}

	if s.intents != nil {
		now := s.now().UTC()
		intent, err := s.intents.Create(ctx, model.CheckoutIntent{
			ID:                uuid.NewString(),
			UserID:            userID,
			ItemID:            item.CanonicalID,
			ProviderSessionID: session.ID,
			Status:            enums.IntentStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			s.logger.Warn("record checkout intent failed",
				zap.String("user_id", userID),
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		} else {
			result.IntentID = intent.ID
		}
	}

	return result, nil
}
