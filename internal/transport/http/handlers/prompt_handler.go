package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	entsvc "github.com/numaken/genpost-sub001/internal/services/entitlements"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

type PromptHandler struct {
	entitlements *entsvc.Service
}

func NewPromptHandler(entitlements *entsvc.Service) *PromptHandler {
	return &PromptHandler{entitlements: entitlements}
}

// Access works with or without a caller identity; anonymous callers only
// see free prompts as available.
func (h *PromptHandler) Access(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	access, err := h.entitlements.Check(r.Context(), authsvc.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, entsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "prompt id is required")
		case errors.Is(err, entsvc.ErrItemNotFound):
			writeNotFound(w, "ITEM_NOT_FOUND", "prompt not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to check access")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PromptAccessResponse{
		PromptID:  access.Item.CanonicalID,
		Name:      access.Item.Name,
		IsFree:    access.Item.IsFree,
		Price:     access.Item.Price,
		Purchased: access.Purchased,
		Available: access.Available,
	})
}
