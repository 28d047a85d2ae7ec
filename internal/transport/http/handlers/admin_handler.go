package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	entsvc "github.com/numaken/genpost-sub001/internal/services/entitlements"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

type AdminHandler struct {
	entitlements *entsvc.Service
}

func NewAdminHandler(entitlements *entsvc.Service) *AdminHandler {
	return &AdminHandler{entitlements: entitlements}
}

func (h *AdminHandler) UserPurchases(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	view, err := h.entitlements.DebugUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		switch {
		case errors.Is(err, entsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "user id is required")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load user purchases")
		}
		return
	}

	resp := dto.AdminUserPurchasesResponse{
		UserID:         view.UserID,
		Records:        make([]dto.AdminPurchaseRecord, 0, len(view.Records)),
		PendingIntents: make([]dto.AdminCheckoutIntent, 0, len(view.PendingIntents)),
	}
	for _, rec := range view.Records {
		resp.Records = append(resp.Records, dto.AdminPurchaseRecord{
			PurchaseItem:  toPurchaseItem(rec.Record),
			NumericItemID: rec.NumericItemID,
			CanonicalID:   rec.CanonicalID,
		})
	}
	for _, intent := range view.PendingIntents {
		resp.PendingIntents = append(resp.PendingIntents, dto.AdminCheckoutIntent{
			ID:                intent.ID,
			ItemID:            intent.ItemID,
			ProviderSessionID: intent.ProviderSessionID,
			Status:            string(intent.Status),
			CreatedAt:         intent.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}
