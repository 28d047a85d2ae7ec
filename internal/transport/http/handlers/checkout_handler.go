package handlers

import (
	"errors"
	"net/http"

	"github.com/numaken/genpost-sub001/internal/pkg/validate"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	checkoutsvc "github.com/numaken/genpost-sub001/internal/services/checkout"
	fulfillsvc "github.com/numaken/genpost-sub001/internal/services/fulfillment"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

type CheckoutHandler struct {
	checkout    *checkoutsvc.Service
	fulfillment *fulfillsvc.Service
}

func NewCheckoutHandler(checkout *checkoutsvc.Service, fulfillment *fulfillsvc.Service) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    checkout,
		fulfillment: fulfillment,
	}
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if !validate.Identifier(req.PromptID) {
		writeBadRequest(w, "VALIDATION_ERROR", "prompt_id is required")
		return
	}

	result, err := h.checkout.Start(r.Context(), identity.UserID, req.PromptID)
	if err != nil {
		if rl, ok := checkoutsvc.IsRateLimited(err); ok {
			httperrors.WriteRateLimited(w, "TOO_MANY_REQUESTS", "too many checkout attempts, try again shortly", rl.RetryAfter())
			return
		}
		switch {
		case errors.Is(err, checkoutsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "prompt_id is required")
		case errors.Is(err, checkoutsvc.ErrItemNotFound):
			writeNotFound(w, "ITEM_NOT_FOUND", "prompt not found")
		case errors.Is(err, checkoutsvc.ErrItemNotPurchasable):
			writeBadRequest(w, "ITEM_NOT_PURCHASABLE", "this prompt is free and needs no purchase")
		default:
			writeInternal(w, "CHECKOUT_FAILED", "failed to start checkout, please retry")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutCreateResponse{
		URL:       result.URL,
		SessionID: result.SessionID,
		IntentID:  result.IntentID,
	})
}

func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.fulfillment == nil {
		writeInternal(w, "FULFILLMENT_SERVICE_UNAVAILABLE", "fulfillment service is unavailable")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if !validate.Identifier(sessionID) {
		writeBadRequest(w, "VALIDATION_ERROR", "session_id is required")
		return
	}

	result, err := h.fulfillment.VerifySession(r.Context(), identity.UserID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, fulfillsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "session_id is required")
		case errors.Is(err, fulfillsvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "session belongs to another user")
		case errors.Is(err, fulfillsvc.ErrMalformedEvent):
			writeBadRequest(w, "MALFORMED_SESSION", "payment session has no purchase metadata")
		case errors.Is(err, fulfillsvc.ErrStoreWrite):
			writeInternal(w, "STORE_WRITE_FAILED", "failed to record purchase, please retry")
		default:
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "PAYMENT_PROVIDER_ERROR",
				Message: "failed to look up payment session",
			})
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutVerifyResponse{
		Purchased:     result.Purchased,
		ItemID:        result.ItemID,
		PaymentStatus: result.PaymentStatus,
	})
}
