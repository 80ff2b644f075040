package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "estately/internal/api/context"
	"estately/internal/api/handlers"
	"estately/internal/api/middleware"
	"estately/internal/pkg/errors"
)

type Dependencies struct {
	AutomationHandler   *handlers.AutomationHandler
	WebhookEventHandler *handlers.WebhookEventHandler
	AuditHandler        *handlers.AuditHandler
	HealthHandler       *handlers.HealthHandler
	MetricsHandler      *handlers.MetricsHandler
	AuthMiddleware      *middleware.AuthMiddleware
	OwnershipMiddleware *middleware.PropertyOwnership
	SignatureMiddleware *middleware.SignatureMiddleware
	RateLimiter         *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Middleware references
	authMid := deps.AuthMiddleware.Handle
	ownerMid := deps.OwnershipMiddleware.Handle
	sigMid := deps.SignatureMiddleware.Handle
	limiter := deps.RateLimiter

	// Inbound automation calls. The rate limit runs before the body is read.
	router.POST("/api/v1/webhooks/automation",
		chain(deps.AutomationHandler.Receive, limiter.RateLimit(middleware.LimitWebhook), sigMid))

	// Admin
	router.GET("/api/v1/admin/webhook-events",
		chain(deps.WebhookEventHandler.List, authMid, middleware.RequireAdmin(), limiter.RateLimit(middleware.LimitAPIRead)))
	router.GET("/api/v1/admin/webhook-events/:event_id",
		chain(deps.WebhookEventHandler.Get, authMid, middleware.RequireAdmin(), limiter.RateLimit(middleware.LimitAPIRead)))
	router.GET("/api/v1/admin/audit",
		chain(deps.AuditHandler.List, authMid, middleware.RequireAdmin(), limiter.RateLimit(middleware.LimitAPIRead)))

	// Property owners
	router.GET("/api/v1/properties/:property_id/webhook-events",
		chain(deps.WebhookEventHandler.ListForProperty, authMid, ownerMid, limiter.RateLimit(middleware.LimitAPIRead)))

	return router
}

func chain(handler http.HandlerFunc, middlewares ...middleware.Middleware) httprouter.Handle {
	return wrap(middleware.Chain(handler, middlewares...))
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
