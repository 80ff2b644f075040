package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"estately/internal/api"
	"estately/internal/api/handlers"
	"estately/internal/api/middleware"
	"estately/internal/engine/webhooks"
	"estately/internal/pkg/logger"
	"estately/internal/platform/audit"
	"estately/internal/platform/auth"
	"estately/internal/platform/config"
	"estately/internal/platform/database"
	"estately/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	db, err := database.OpenAndMigrate(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	// Repositories
	eventRepo := repositories.NewWebhookEventRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	auditLog := audit.NewLogger(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("jwt secret is not configured; authenticated routes will reject every token")
	}

	verifier, err := webhooks.NewVerifier(webhooks.Config{
		Secret:    cfg.Webhooks.Secret,
		Algorithm: cfg.Webhooks.Algorithm,
		Encoding:  cfg.Webhooks.Encoding,
		Prefix:    cfg.Webhooks.Prefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid webhook verifier settings")
	}
	if !verifier.Configured() {
		log.Warn().Msg("webhook secret is not configured; every webhook call will be refused")
	}

	dispatcher := webhooks.NewDispatcher(eventRepo)
	dispatcher.Register(webhooks.PingEvent, webhooks.PingHandler)

	// Middleware
	signatureMiddleware := middleware.NewSignatureMiddleware(verifier, middleware.SignatureOptions{
		Header:      cfg.Webhooks.SignatureHeader,
		MaxBodySize: cfg.Webhooks.MaxBodySize,
		Audit:       auditLog,
	})
	rateLimiter := middleware.NewRateLimiter(map[string]int{
		middleware.LimitWebhook: cfg.RateLimit.WebhookPerMinute,
		middleware.LimitAPIRead: cfg.RateLimit.APIReadPerMinute,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go rateLimiter.CleanupLoop(10*time.Minute, ctx.Done())

	// Router
	deps := &api.Dependencies{
		AutomationHandler:   handlers.NewAutomationHandler(dispatcher),
		WebhookEventHandler: handlers.NewWebhookEventHandler(eventRepo),
		AuditHandler:        handlers.NewAuditHandler(auditLog),
		HealthHandler:       handlers.NewHealthHandler(db, verifier.Configured),
		MetricsHandler:      handlers.NewMetricsHandler(signatureMiddleware),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokenSvc),
		OwnershipMiddleware: middleware.NewPropertyOwnership(propertyRepo),
		SignatureMiddleware: signatureMiddleware,
		RateLimiter:         rateLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("algorithm", verifier.Algorithm().String()).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
