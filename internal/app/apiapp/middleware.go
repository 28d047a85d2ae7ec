package apiapp

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
	httperrors "github.com/numaken/genpost-sub001/internal/transport/http/errors"
)

const requestTimeout = 60 * time.Second

var errNoBearer = errors.New("missing bearer token")

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}

func ApplyMiddlewares(r chiRouter, log *zap.Logger, allowedOrigins []string) {
	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		chimiddleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		requestLogger(log),
	)
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				writeError(w, http.StatusInternalServerError, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
				return
			}

			ctx, err := identify(r, authService)
			switch {
			case errors.Is(err, errNoBearer):
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			case err != nil:
				debug(log, "access token rejected", err)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches an identity when a valid bearer token is present and
// otherwise lets the request through as anonymous.
func OptionalAuth(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx, err := identify(r, authService)
			if err != nil {
				if !errors.Is(err, errNoBearer) {
					debug(log, "optional auth ignored invalid token", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authsvc.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !slices.ContainsFunc(roles, identity.HasRole) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identify(r *http.Request, authService *authsvc.Service) (context.Context, error) {
	token, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, errNoBearer
	}
	claims, err := authService.ValidateAccessToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return authsvc.WithIdentity(r.Context(), claims.Identity()), nil
}

func extractBearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log == nil {
				return
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Warn("http_request", fields...)
				return
			}
			log.Info("http_request", fields...)
		})
	}
}

func debug(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Debug(msg, zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	httperrors.Write(w, status, httperrors.APIError{Code: code, Message: message})
}
