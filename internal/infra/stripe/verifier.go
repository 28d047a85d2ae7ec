package stripe

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

// Verifier checks the Stripe-Signature header against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{secret: webhookSecret}
}

func (v *Verifier) Verify(payload []byte, signature string) (model.PaymentEvent, error) {
	if strings.TrimSpace(v.secret) == "" {
		return model.PaymentEvent{}, fmt.Errorf("webhook secret is not configured")
	}
	if strings.TrimSpace(signature) == "" {
		return model.PaymentEvent{}, fmt.Errorf("signature header is empty")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return model.PaymentEvent{}, fmt.Errorf("construct event: %w", err)
	}

	out := model.PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data != nil {
		out.Object = event.Data.Raw
	}
	return out, nil
}
