package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swift-shaadi/gateway/internal/config"
	"github.com/swift-shaadi/gateway/internal/transport/http/handler"
	appmiddleware "github.com/swift-shaadi/gateway/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds the gateway router. Background work started here (rate
// limiter cleanup) stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.NewHTTPMetrics(deps.Registry).Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           300,
	}))

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		slog.Warn("ignoring TRUSTED_PROXIES", "err", err)
		trusted = nil
	}
	handshakeRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, trusted)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.PhoneAuth)
	phoneH := handler.NewPhoneAuthHandler(deps.PhoneAuth)
	proxy := handler.NewBackendProxy(deps.Backend)

	r.Get("/healthz", healthH.Ping)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// ── Phone handshake (served by the gateway) ─────────────────────────
		r.With(handshakeRL.Limit).Post("/otp/send", otpH.Send)
		r.With(handshakeRL.Limit).Post("/otp/verify", otpH.Verify)
		r.With(handshakeRL.Limit).Post("/auth/phone", phoneH.Complete)

		// ── Everything else goes to the backend ─────────────────────────────
		r.Handle("/*", proxy)
	})

	return r
}
