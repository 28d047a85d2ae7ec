package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

type GatewayConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
	HTTPClient *http.Client
}

// Gateway creates and reads one-time payment checkout sessions. It holds its
// own session client instead of the package-level stripe.Key.
type Gateway struct {
	sessions   *checkoutsession.Client
	successURL string
	cancelURL  string
	currency   string
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, fmt.Errorf("stripe success and cancel urls are required")
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "jpy"
	}

	backend := stripe.GetBackend(stripe.APIBackend)
	if cfg.HTTPClient != nil {
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: cfg.HTTPClient,
		})
	}

	return &Gateway{
		sessions: &checkoutsession.Client{
			B:   backend,
			Key: cfg.SecretKey,
		},
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		currency:   currency,
	}, nil
}

func (g *Gateway) CreateSession(ctx context.Context, req model.PaymentSessionRequest) (model.PaymentSession, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = g.currency
	}

	metadata := map[string]string{
		model.MetadataUserID: req.UserID,
		model.MetadataItemID: req.ItemID,
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ItemName),
	}
	if strings.TrimSpace(req.Description) != "" {
		productData.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					ProductData: productData,
					UnitAmount:  stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if strings.Contains(req.CustomerEmail, "@") {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	session, err := g.sessions.New(params)
	if err != nil {
		return model.PaymentSession{}, fmt.Errorf("create checkout session: %w", err)
	}

	return toPaymentSession(session), nil
}

func (g *Gateway) GetSession(ctx context.Context, sessionID string) (model.PaymentSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return model.PaymentSession{}, fmt.Errorf("session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return model.PaymentSession{}, fmt.Errorf("get checkout session: %w", err)
	}

	return toPaymentSession(session), nil
}

func toPaymentSession(session *stripe.CheckoutSession) model.PaymentSession {
	if session == nil {
		return model.PaymentSession{}
	}
	return model.PaymentSession{
		ID:            session.ID,
		URL:           session.URL,
		PaymentStatus: string(session.PaymentStatus),
		Metadata:      session.Metadata,
	}
}
