package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

type catalogStub struct {
	items map[string]model.CatalogItem
}

func (c catalogStub) GetByCanonicalID(_ context.Context, canonicalID string) (model.CatalogItem, error) {
	item, ok := c.items[canonicalID]
	if !ok {
		return model.CatalogItem{}, model.ErrNotFound
	}
	return item, nil
}

type gatewayStub struct {
	requests []model.PaymentSessionRequest
	err      error
}

func (g *gatewayStub) CreateSession(_ context.Context, req model.PaymentSessionRequest) (model.PaymentSession, error) {
	if g.err != nil {
		return model.PaymentSession{}, g.err
	}
	g.requests = append(g.requests, req)
	return model.PaymentSession{
		ID:  "cs_test_1",
		URL: "https://checkout.example/cs_test_1",
		Metadata: map[string]string{
			model.MetadataUserID: req.UserID,
			model.MetadataItemID: req.ItemID,
		},
	}, nil
}

type intentStub struct {
	created []model.CheckoutIntent
	err     error
}

func (s *intentStub) Create(_ context.Context, intent model.CheckoutIntent) (model.CheckoutIntent, error) {
	if s.err != nil {
		return model.CheckoutIntent{}, s.err
	}
	s.created = append(s.created, intent)
	return intent, nil
}

type limiterStub struct {
	allowed    bool
	retryAfter int64
}

func (l limiterStub) Allow(_ context.Context, _ string) (int64, bool, error) {
	return l.retryAfter, l.allowed, nil
}

func newCatalog() catalogStub {
	return catalogStub{items: map[string]model.CatalogItem{
		"seo-basic-01": {InternalID: 42, CanonicalID: "seo-basic-01", Name: "SEO basic", Price: 500, IsActive: true},
		"free-01":      {InternalID: 43, CanonicalID: "free-01", Name: "Free", IsFree: true, IsActive: true},
		"retired-01":   {InternalID: 44, CanonicalID: "retired-01", Name: "Retired", Price: 300},
	}}
}

func TestStartCarriesCanonicalIDInMetadata(t *testing.T) {
	gateway := &gatewayStub{}
	intents := &intentStub{}
	svc := NewService(Dependencies{Catalog: newCatalog(), Gateway: gateway, Intents: intents, Currency: "jpy"})

	res, err := svc.Start(context.Background(), "U1@example.com", "seo-basic-01")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.URL == "" || res.SessionID != "cs_test_1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(gateway.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.requests))
	}
	req := gateway.requests[0]
	if req.ItemID != "seo-basic-01" {
		t.Fatalf("metadata must carry canonical id, got %q", req.ItemID)
	}
	if req.UserID != "u1@example.com" {
		t.Fatalf("metadata must carry normalized user id, got %q", req.UserID)
	}
	if req.Amount != 500 || req.Currency != "jpy" {
		t.Fatalf("unexpected amount/currency: %d %s", req.Amount, req.Currency)
	}

	if len(intents.created) != 1 || intents.created[0].ProviderSessionID != "cs_test_1" {
		t.Fatalf("expected pending intent for session, got %+v", intents.created)
	}
	if res.IntentID != intents.created[0].ID {
		t.Fatalf("result should expose intent id")
	}
}

func TestStartRejectsFreeItems(t *testing.T) {
	gateway := &gatewayStub{}
	svc := NewService(Dependencies{Catalog: newCatalog(), Gateway: gateway})

	if _, err := svc.Start(context.Background(), "u1", "free-01"); !errors.Is(err, ErrItemNotPurchasable) {
		t.Fatalf("expected ErrItemNotPurchasable, got %v", err)
	}
	if len(gateway.requests) != 0 {
		t.Fatalf("free item must not reach the gateway")
	}
}

func TestStartItemNotFound(t *testing.T) {
	svc := NewService(Dependencies{Catalog: newCatalog(), Gateway: &gatewayStub{}})

	for _, id := range []string{"missing", "42", "retired-01"} {
		if _, err := svc.Start(context.Background(), "u1", id); !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("%s: expected ErrItemNotFound, got %v", id, err)
		}
	}
}

func TestStartValidatesInput(t *testing.T) {
	svc := NewService(Dependencies{Catalog: newCatalog(), Gateway: &gatewayStub{}})

	if _, err := svc.Start(context.Background(), "", "seo-basic-01"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty user, got %v", err)
	}
	if _, err := svc.Start(context.Background(), "u1", " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty item, got %v", err)
	}
}

func TestStartRateLimited(t *testing.T) {
	gateway := &gatewayStub{}
	svc := NewService(Dependencies{
		Catalog:     newCatalog(),
		Gateway:     gateway,
		RateLimiter: limiterStub{allowed: false, retryAfter: 7},
	})

	_, err := svc.Start(context.Background(), "u1", "seo-basic-01")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	rl, ok := IsRateLimited(err)
	if !ok || rl.RetryAfter() != 7 {
		t.Fatalf("expected retry after 7, got %+v", rl)
	}
	if len(gateway.requests) != 0 {
		t.Fatalf("rate limited call must not reach the gateway")
	}
}

func TestStartSurvivesIntentFailure(t *testing.T) {
	svc := NewService(Dependencies{
		Catalog: newCatalog(),
		Gateway: &gatewayStub{},
		Intents: &intentStub{err: errors.New("db down")},
	})

	res, err := svc.Start(context.Background(), "u1", "seo-basic-01")
	if err != nil {
		t.Fatalf("start should succeed without intent: %v", err)
	}
	if res.IntentID != "" {
		t.Fatalf("intent id should be empty when intent write fails")
	}
}

func TestStartGatewayFailure(t *testing.T) {
	svc := NewService(Dependencies{Catalog: newCatalog(), Gateway: &gatewayStub{err: errors.New("stripe down")}})

	_, err := svc.Start(context.Background(), "u1", "seo-basic-01")
	if err == nil || errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrItemNotPurchasable) {
		t.Fatalf("expected wrapped gateway error, got %v", err)
	}
}
