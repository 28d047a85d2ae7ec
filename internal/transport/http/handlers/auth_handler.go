package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	"github.com/numaken/genpost-sub001/internal/transport/http/dto"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
}

func NewAuthHandler(service *authsvc.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login exchanges an upstream identity assertion for an access and refresh
// token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.IdentityLoginRequest
	h.exchange(w, r, &req, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.LoginIdentity(ctx, req.Assertion)
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	h.exchange(w, r, &req, func(ctx context.Context) (authsvc.AuthResult, error) {
		return h.service.Refresh(ctx, req.RefreshToken)
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSessions(w, r, func(ctx context.Context, identity authsvc.Identity) error {
		return h.service.Logout(ctx, identity.SID)
	})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	h.endSessions(w, r, func(ctx context.Context, identity authsvc.Identity) error {
		return h.service.LogoutAll(ctx, identity.UserID)
	})
}

func (h *AuthHandler) exchange(w http.ResponseWriter, r *http.Request, req any, issue func(context.Context) (authsvc.AuthResult, error)) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	if err := decodeJSON(r, req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := issue(r.Context())
	if err != nil {
		writeAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AuthTokensResponse{
		TokenType:    "Bearer",
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresInSec: max(0, int64(time.Until(res.AccessExpires).Seconds())),
		Me: dto.AuthMeResponse{
			ID:   res.Me.ID,
			Role: res.Me.Role,
		},
	})
}

func (h *AuthHandler) endSessions(w http.ResponseWriter, r *http.Request, end func(context.Context, authsvc.Identity) error) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := end(r.Context(), identity); err != nil {
		writeAuthError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
