package handlers

import (
	"errors"
	"net/http"

	"github.com/numaken/genpost-sub001/internal/domain/model"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	entsvc "github.com/numaken/genpost-sub001/internal/services/entitlements"
	fulfillsvc "github.com/numaken/genpost-sub001/internal/services/fulfillment"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

type PurchaseHandler struct {
	entitlements *entsvc.Service
	fulfillment  *fulfillsvc.Service
}

func NewPurchaseHandler(entitlements *entsvc.Service, fulfillment *fulfillsvc.Service) *PurchaseHandler {
	return &PurchaseHandler{
		entitlements: entitlements,
		fulfillment:  fulfillment,
	}
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	records, err := h.entitlements.ListPurchases(r.Context(), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, entsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchases request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load purchases")
		}
		return
	}

	items := make([]dto.PurchaseItem, 0, len(records))
	for _, record := range records {
		items = append(items, toPurchaseItem(record))
	}
	httperrors.Write(w, http.StatusOK, dto.PurchaseListResponse{Items: items})
}

func (h *PurchaseHandler) Test(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.fulfillment == nil {
		writeInternal(w, "FULFILLMENT_SERVICE_UNAVAILABLE", "fulfillment service is unavailable")
		return
	}

	var req dto.TestPurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, created, err := h.fulfillment.RecordTestPurchase(r.Context(), identity.UserID, req.PromptID)
	if err != nil {
		switch {
		case errors.Is(err, fulfillsvc.ErrTestPurchaseDisabled):
			writeForbidden(w, "TEST_PURCHASE_DISABLED", "test purchases are only available in test mode")
		case errors.Is(err, fulfillsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "prompt_id is required")
		case errors.Is(err, fulfillsvc.ErrItemNotFound):
			writeNotFound(w, "ITEM_NOT_FOUND", "prompt not found")
		default:
			writeInternal(w, "STORE_WRITE_FAILED", "failed to record purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TestPurchaseResponse{
		OK:       true,
		Created:  created,
		Purchase: toPurchaseItem(record),
	})
}

func toPurchaseItem(record model.PurchaseRecord) dto.PurchaseItem {
	return dto.PurchaseItem{
		ID:          record.ID,
		ItemID:      record.ItemID,
		Source:      string(record.Source),
		PurchasedAt: record.PurchasedAt,
		IsActive:    record.IsActive,
	}
}
