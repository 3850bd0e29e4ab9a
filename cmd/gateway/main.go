package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/swift-shaadi/gateway/internal/application/phoneauth"
	"github.com/swift-shaadi/gateway/internal/config"
	"github.com/swift-shaadi/gateway/internal/infrastructure/identity"
	jwtinfra "github.com/swift-shaadi/gateway/internal/infrastructure/jwt"
	"github.com/swift-shaadi/gateway/internal/infrastructure/memory"
	"github.com/swift-shaadi/gateway/internal/infrastructure/sns"
	"github.com/swift-shaadi/gateway/internal/metrics"
	transporthttp "github.com/swift-shaadi/gateway/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	backend, err := url.Parse(cfg.BackendURL)
	if err != nil {
		slog.Error("invalid BACKEND_URL", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	otps := memory.NewOTPRepo()
	tokens := memory.NewTokenRepo()
	metrics.RegisterStoreGauges(reg, otps.Len, tokens.Len)

	// SNS SMS sender (optional, sends fail with sms_failed when missing).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}

	// Phone assertion signer (optional).
	var signer identity.AssertionSigner
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		signer = p
	} else {
		slog.Warn("JWT provider not available, phone assertions disabled", "err", err)
	}

	svc := phoneauth.NewService(phoneauth.ServiceDeps{
		OTPs:     otps,
		Tokens:   tokens,
		SMS:      smsSender,
		Identity: identity.NewClient(cfg.BackendURL, cfg.IdentityTimeout, signer),
		Metrics:  metrics.New(reg),
		Settings: phoneauth.Settings{
			OTPLength:     cfg.OTPLength,
			OTPTTL:        cfg.OTPTTL,
			TokenTTL:      cfg.TokenTTL,
			HashCost:      cfg.OTPHashCost,
			MaxExchanges:  cfg.TokenMaxExchanges,
			MessageFormat: cfg.SMSMessageFormat,
		},
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go phoneauth.NewSweeper(svc, cfg.SweepInterval).Run(ctx)

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		PhoneAuth: svc,
		Backend:   backend,
		Registry:  reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("gateway starting", "port", cfg.AppPort, "env", cfg.AppEnv, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gateway")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
