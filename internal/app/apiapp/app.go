package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/app/storage"
	"github.com/numaken/genpost-sub001/internal/config"
	"github.com/numaken/genpost-sub001/internal/infra/httpclient"
	stripeinfra "github.com/numaken/genpost-sub001/internal/infra/stripe"
	redrepo "github.com/numaken/genpost-sub001/internal/repo/redis"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	catalogsvc "github.com/numaken/genpost-sub001/internal/services/catalog"
	checkoutsvc "github.com/numaken/genpost-sub001/internal/services/checkout"
	entsvc "github.com/numaken/genpost-sub001/internal/services/entitlements"
	fulfillmentsvc "github.com/numaken/genpost-sub001/internal/services/fulfillment"
	ratesvc "github.com/numaken/genpost-sub001/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	stores     *storage.Stores
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := stores.Migrate(ctx); err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	cacheRepo := redrepo.NewCacheRepo(redisClient, 0)
	dedupRepo := redrepo.NewEventDedupRepo(redisClient, cfg.Checkout.DedupTTL)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	assertions := authsvc.NewAssertionVerifier(cfg.Auth.IdentitySecret, cfg.Auth.IdentityMaxAge)
	authService := authsvc.NewService(jwtManager, sessionRepo, assertions, cfg.Auth.RefreshTTL, cfg.Auth.SuperuserEmails)

	catalogService := catalogsvc.NewService(stores.Catalog, log.Named("catalog"))
	catalogService.AttachCache(cacheRepo)

	checkoutDeps := checkoutsvc.Dependencies{
		Catalog:     catalogService,
		Intents:     stores.Intents,
		RateLimiter: ratesvc.NewLimiter(rateRepo, "checkout", ratesvc.CheckoutWindows(cfg.Checkout.RatePerMinute, cfg.Checkout.RatePer10Sec)...),
		Currency:    cfg.Stripe.Currency,
		Logger:      log.Named("checkout"),
	}
	fulfillmentDeps := fulfillmentsvc.Dependencies{
		Verifier:            stripeinfra.NewVerifier(cfg.Stripe.WebhookSecret),
		Purchases:           stores.Purchases,
		Intents:             stores.Intents,
		Dedup:               dedupRepo,
		Catalog:             catalogService,
		TestPurchaseEnabled: cfg.Stripe.TestPurchasesEnabled(),
		Logger:              log.Named("fulfillment"),
	}

	// Only assign a constructed gateway; a nil *Gateway in the interface
	// fields would read as configured.
	gateway, err := stripeinfra.NewGateway(stripeinfra.GatewayConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Stripe.Currency,
		HTTPClient: httpclient.New(cfg.HTTP.WriteTimeout),
	})
	if err != nil {
		log.Warn("stripe gateway disabled, checkout will fail", zap.Error(err))
	} else {
		checkoutDeps.Gateway = gateway
		fulfillmentDeps.Sessions = gateway
	}

	checkoutService := checkoutsvc.NewService(checkoutDeps)
	fulfillmentService := fulfillmentsvc.NewService(fulfillmentDeps)
	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Purchases: stores.Purchases,
		Catalog:   catalogService,
		Intents:   stores.Intents,
		Logger:    log.Named("entitlements"),
	})

	if fulfillmentService.TestPurchaseEnabled() {
		log.Warn("test purchases are enabled")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, cfg.HTTP.AllowedOrigins)
	RegisterRoutes(r, Dependencies{
		AuthService:        authService,
		CheckoutService:    checkoutService,
		FulfillmentService: fulfillmentService,
		EntitlementService: entitlementService,
		Logger:             log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		stores:     stores,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr), zap.String("store", a.stores.Driver))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if err := a.stores.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
