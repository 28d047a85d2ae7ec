package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	fulfillsvc "github.com/numaken/genpost-sub001/internal/services/fulfillment"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

const maxWebhookBodyBytes = 64 << 10

type WebhookHandler struct {
	fulfillment *fulfillsvc.Service
	logger      *zap.Logger
}

func NewWebhookHandler(fulfillment *fulfillsvc.Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// Stripe receives provider deliveries. The body must be read raw: the
// signature covers the exact bytes.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if h.fulfillment == nil {
		writeInternal(w, "FULFILLMENT_SERVICE_UNAVAILABLE", "fulfillment service is unavailable")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "unreadable request body")
		return
	}

	result, err := h.fulfillment.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, fulfillsvc.ErrInvalidSignature):
			writeBadRequest(w, "INVALID_SIGNATURE", "webhook signature verification failed")
		case errors.Is(err, fulfillsvc.ErrMalformedEvent):
			// Signed but unusable: acknowledge so the provider stops redelivering.
			h.logger.Warn("malformed payment event acknowledged", zap.String("event_id", result.EventID), zap.Error(err))
			httperrors.Write(w, http.StatusOK, dto.WebhookResponse{
				Received:  true,
				EventID:   result.EventID,
				Malformed: true,
			})
		default:
			h.logger.Error("webhook processing failed", zap.String("event_id", result.EventID), zap.Error(err))
			writeInternal(w, "STORE_WRITE_FAILED", "failed to record purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		Duplicate: result.Duplicate,
		Ignored:   result.Ignored,
	})
}
