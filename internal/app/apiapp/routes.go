package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	checkoutsvc "github.com/numaken/genpost-sub001/internal/services/checkout"
	entsvc "github.com/numaken/genpost-sub001/internal/services/entitlements"
	fulfillsvc "github.com/numaken/genpost-sub001/internal/services/fulfillment"
	"github.com/numaken/genpost-sub001/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService        *authsvc.Service
	CheckoutService    *checkoutsvc.Service
	FulfillmentService *fulfillsvc.Service
	EntitlementService *entsvc.Service
	Logger             *zap.Logger
}

// RegisterRoutes mounts the public API. Reconciliation has no route; it runs
// through genpostctl.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	healthHandler := handlers.NewHealthHandler()
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService, deps.FulfillmentService)
	webhookHandler := handlers.NewWebhookHandler(deps.FulfillmentService, deps.Logger)
	purchaseHandler := handlers.NewPurchaseHandler(deps.EntitlementService, deps.FulfillmentService)
	promptHandler := handlers.NewPromptHandler(deps.EntitlementService)
	adminHandler := handlers.NewAdminHandler(deps.EntitlementService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	optionalAuthMW := OptionalAuth(deps.AuthService, deps.Logger)
	ownerMW := RequireRole(string(enums.RoleOwner))

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Post("/checkout", checkoutHandler.Create)
		r.With(authMW).Get("/checkout/verify", checkoutHandler.Verify)
		r.Post("/webhooks/stripe", webhookHandler.Stripe)
		r.With(authMW).Get("/purchases", purchaseHandler.List)
		r.With(authMW).Post("/purchases/test", purchaseHandler.Test)
		r.With(optionalAuthMW).Get("/prompts/{id}/access", promptHandler.Access)
		r.With(authMW, ownerMW).Get("/admin/users/{userID}/purchases", adminHandler.UserPurchases)
	})
}
