package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/model"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed payment event")
	ErrStoreWrite           = errors.New("purchase store write failed")
	ErrValidation           = errors.New("validation error")
	ErrForbidden            = errors.New("session belongs to another user")
	ErrItemNotFound         = errors.New("item not found")
	ErrTestPurchaseDisabled = errors.New("test purchases are disabled")
)

type Verifier interface {
	Verify(payload []byte, signature string) (model.PaymentEvent, error)
}

type PurchaseStore interface {
	UpsertActive(ctx context.Context, userID, itemID string, source enums.PurchaseSource, at time.Time) (model.PurchaseRecord, bool, error)
}

type IntentStore interface {
	MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error)
}

type EventDedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (model.PaymentSession, error)
}

type Catalog interface {
	GetByCanonicalID(ctx context.Context, canonicalID string) (model.CatalogItem, error)
	GetByInternalID(ctx context.Context, internalID int64) (model.CatalogItem, error)
}

type Dependencies struct {
	Verifier            Verifier
	Purchases           PurchaseStore
	Intents             IntentStore
	Dedup               EventDedup
	Sessions            SessionLookup
	Catalog             Catalog
	TestPurchaseEnabled bool
	Logger              *zap.Logger
}

type Service struct {
	verifier     Verifier
	purchases    PurchaseStore
	intents      IntentStore
	dedup        EventDedup
	sessions     SessionLookup
	catalog      Catalog
	testPurchase bool
	logger       *zap.Logger
	now          func() time.Time
}

type WebhookResult struct {
	EventID   string
	EventType string
	Ignored   bool
	Duplicate bool
	Created   bool
	Record    model.PurchaseRecord
}

type VerifyResult struct {
	Purchased     bool
	ItemID        string
	PaymentStatus string
	Created       bool
}

// checkoutSession is the slice of the provider's checkout session object this
// service reads. Anything else in the payload is ignored.
type checkoutSession struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type correlation struct {
	UserID string
	ItemID string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		verifier:     deps.Verifier,
		purchases:    deps.Purchases,
		intents:      deps.Intents,
		dedup:        deps.Dedup,
		sessions:     deps.Sessions,
		catalog:      deps.Catalog,
		testPurchase: deps.TestPurchaseEnabled,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) TestPurchaseEnabled() bool {
	return s.testPurchase
}

// HandleWebhook verifies a raw provider delivery and records the purchase it
// describes. Deliveries are at-least-once; replays resolve to the same row.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	if s.verifier == nil || s.purchases == nil {
		return WebhookResult{}, fmt.Errorf("fulfillment dependencies are not configured")
	}

	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn("webhook signature rejected", zap.Error(err))
		return WebhookResult{}, ErrInvalidSignature
	}

	result := WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
	}

	switch event.Type {
	case model.PaymentEventCheckoutCompleted, model.PaymentEventAsyncPaymentSucceeded:
	default:
		result.Ignored = true
		return result, nil
	}

	if s.alreadyProcessed(ctx, event.ID) {
		result.Duplicate = true
		return result, nil
	}

	var session checkoutSession
	if err := json.Unmarshal(event.Object, &session); err != nil {
		s.logger.Warn("payment event object undecodable",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return result, ErrMalformedEvent
	}

	if session.PaymentStatus != "" && session.PaymentStatus != model.PaymentStatusPaid {
		s.logger.Info("checkout completed without payment",
			zap.String("event_id", event.ID),
			zap.String("session_id", session.ID),
			zap.String("payment_status", session.PaymentStatus),
		)
		result.Ignored = true
		return result, nil
	}

	corr, err := s.correlate(ctx, session.Metadata)
	if err != nil {
		s.logger.Warn("payment event missing correlation metadata",
			zap.String("event_id", event.ID),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return result, err
	}

	record, created, err := s.record(ctx, corr, enums.PurchaseSourceWebhook, session.ID)
	if err != nil {
		return result, err
	}
	result.Created = created
	result.Record = record

	if s.dedup != nil && event.ID != "" {
		if _, err := s.dedup.MarkProcessed(ctx, event.ID); err != nil {
			s.logger.Warn("mark webhook event processed failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	s.logger.Info("purchase fulfilled",
		zap.String("event_id", event.ID),
		zap.String("session_id", session.ID),
		zap.String("user_id", corr.UserID),
		zap.String("item_id", corr.ItemID),
		zap.Bool("created", created),
	)
	return result, nil
}

// VerifySession is the return-page fallback for when the webhook has not
// arrived yet. Only the session's own user may confirm it.
func (s *Service) VerifySession(ctx context.Context, userID, sessionID string) (VerifyResult, error) {
	userID = rules.NormalizeUserID(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || sessionID == "" {
		return VerifyResult{}, ErrValidation
	}
	if s.sessions == nil || s.purchases == nil {
		return VerifyResult{}, fmt.Errorf("fulfillment dependencies are not configured")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("lookup payment session: %w", err)
	}

	corr, err := s.correlate(ctx, session.Metadata)
	if err != nil {
		s.logger.Warn("payment session missing correlation metadata",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return VerifyResult{}, err
	}
	if corr.UserID != userID {
		return VerifyResult{}, ErrForbidden
	}

	out := VerifyResult{
		ItemID:        corr.ItemID,
		PaymentStatus: session.PaymentStatus,
	}
	if session.PaymentStatus != model.PaymentStatusPaid {
		return out, nil
	}

	_, created, err := s.record(ctx, corr, enums.PurchaseSourceVerify, session.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	out.Purchased = true
	out.Created = created
	return out, nil
}

// RecordTestPurchase grants an item without a payment. It is refused unless
// the processor account is in test mode.
func (s *Service) RecordTestPurchase(ctx context.Context, userID, itemID string) (model.PurchaseRecord, bool, error) {
	if !s.testPurchase {
		return model.PurchaseRecord{}, false, ErrTestPurchaseDisabled
	}
	userID = rules.NormalizeUserID(userID)
	itemID = rules.NormalizeItemID(itemID)
	if userID == "" || itemID == "" {
		return model.PurchaseRecord{}, false, ErrValidation
	}
	if s.purchases == nil || s.catalog == nil {
		return model.PurchaseRecord{}, false, fmt.Errorf("fulfillment dependencies are not configured")
	}

	item, err := s.catalog.GetByCanonicalID(ctx, itemID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.PurchaseRecord{}, false, ErrItemNotFound
		}
		return model.PurchaseRecord{}, false, fmt.Errorf("lookup catalog item: %w", err)
	}

	return s.record(ctx, correlation{UserID: userID, ItemID: item.CanonicalID}, enums.PurchaseSourceTest, "")
}

func (s *Service) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.dedup == nil || eventID == "" {
		return false
	}
	seen, err := s.dedup.Seen(ctx, eventID)
	if err != nil {
		s.logger.Warn("webhook dedup lookup failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return seen
}

// correlate turns loose session metadata into a checked pair. A numeric item
// id left by an older checkout is mapped to its canonical form before any
// write; a numeric id that cannot be mapped is never written.
func (s *Service) correlate(ctx context.Context, metadata map[string]string) (correlation, error) {
	corr := correlation{
		UserID: rules.NormalizeUserID(metadata[model.MetadataUserID]),
		ItemID: rules.NormalizeItemID(metadata[model.MetadataItemID]),
	}
	if corr.UserID == "" || corr.ItemID == "" {
		return correlation{}, ErrMalformedEvent
	}

	if !rules.IsNumericItemID(corr.ItemID) {
		return corr, nil
	}
	internalID, ok := rules.ParseInternalID(corr.ItemID)
	if !ok {
		return correlation{}, fmt.Errorf("%w: item id %s is not a catalog id", ErrMalformedEvent, corr.ItemID)
	}
	if s.catalog == nil {
		return correlation{}, fmt.Errorf("%w: catalog is not configured to map item %s", ErrStoreWrite, corr.ItemID)
	}
	item, err := s.catalog.GetByInternalID(ctx, internalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return correlation{}, fmt.Errorf("%w: unknown item %s", ErrMalformedEvent, corr.ItemID)
		}
		return correlation{}, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	corr.ItemID = item.CanonicalID
	return corr, nil
}

func (s *Service) record(ctx context.Context, corr correlation, source enums.PurchaseSource, sessionID string) (model.PurchaseRecord, bool, error) {
	now := s.now().UTC()
	record, created, err := s.purchases.UpsertActive(ctx, corr.UserID, corr.ItemID, source, now)
	if err != nil {
		s.logger.Error("purchase upsert failed",
			zap.String("user_id", corr.UserID),
			zap.String("item_id", corr.ItemID),
			zap.String("source", string(source)),
			zap.Error(err),
		)
		return model.PurchaseRecord{}, false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	if s.intents != nil && sessionID != "" {
		if _, err := s.intents.MarkCompleted(ctx, sessionID, now); err != nil {
			s.logger.Warn("mark checkout intent completed failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
	return record, created, nil
}
