package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estately/internal/api/handlers"
	"estately/internal/api/middleware"
	"estately/internal/engine/webhooks"
	"estately/internal/platform/audit"
	"estately/internal/platform/auth"
	"estately/internal/platform/config"
	"estately/internal/platform/database"
	"estately/internal/platform/models"
	"estately/internal/platform/repositories"
)

const webhookSecret = "router-test-secret"

type testServer struct {
	handler http.Handler
	tokens  *auth.TokenService
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	db, err := database.OpenAndMigrate(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	properties := repositories.NewPropertyRepository(db)
	require.NoError(t, properties.Create(context.Background(), &models.Property{
		ID: "prop-1", OwnerID: "owner-1", Title: "Harbour flat",
	}))

	events := repositories.NewWebhookEventRepository(db)
	auditLog := audit.NewLogger(db)

	verifier, err := webhooks.NewVerifier(webhooks.Config{Secret: secret})
	require.NoError(t, err)

	dispatcher := webhooks.NewDispatcher(events)
	dispatcher.Register(webhooks.PingEvent, webhooks.PingHandler)

	tokens := auth.NewTokenService(config.JWTConfig{Secret: "jwt-secret", AccessTokenTTL: time.Minute})
	sig := middleware.NewSignatureMiddleware(verifier, middleware.SignatureOptions{Audit: auditLog})

	router := NewRouter(&Dependencies{
		AutomationHandler:   handlers.NewAutomationHandler(dispatcher),
		WebhookEventHandler: handlers.NewWebhookEventHandler(events),
		AuditHandler:        handlers.NewAuditHandler(auditLog),
		HealthHandler:       handlers.NewHealthHandler(db, verifier.Configured),
		MetricsHandler:      handlers.NewMetricsHandler(sig),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokens),
		OwnershipMiddleware: middleware.NewPropertyOwnership(properties),
		SignatureMiddleware: sig,
		RateLimiter:         middleware.NewRateLimiter(map[string]int{middleware.LimitWebhook: 100, middleware.LimitAPIRead: 100}),
	})

	return &testServer{handler: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) bearer(t *testing.T, userID, role string) map[string]string {
	t.Helper()
	token, err := s.tokens.GenerateAccessToken(userID, role, userID+"@example.com")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func sign(t *testing.T, secret, body string) string {
	t.Helper()
	v, err := webhooks.NewVerifier(webhooks.Config{Secret: secret})
	require.NoError(t, err)
	sig, err := v.Sign([]byte(body))
	require.NoError(t, err)
	return sig
}

func TestRouter_WebhookFlow(t *testing.T) {
	s := newTestServer(t, webhookSecret)
	body := `{"id":"d-1","event":"payment.success","property_id":"prop-1","data":{"amount":1200}}`

	rec := s.do(t, http.MethodPost, "/api/v1/webhooks/automation", body, map[string]string{
		"X-Signature": sign(t, webhookSecret, body),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/webhooks/automation", body, map[string]string{
		"X-Signature": strings.Repeat("0", 64),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Owner sees the event on their property.
	rec = s.do(t, http.MethodGet, "/api/v1/properties/prop-1/webhook-events", "", s.bearer(t, "owner-1", auth.RoleOwner))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Events []models.WebhookEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, models.WebhookEventUnhandled, list.Events[0].Status)

	// Someone else's property.
	rec = s.do(t, http.MethodGet, "/api/v1/properties/prop-1/webhook-events", "", s.bearer(t, "owner-2", auth.RoleOwner))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/properties/prop-9/webhook-events", "", s.bearer(t, "owner-1", auth.RoleOwner))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The rejected call is visible to admins only.
	rec = s.do(t, http.MethodGet, "/api/v1/admin/audit", "", s.bearer(t, "owner-1", auth.RoleOwner))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/audit", "", s.bearer(t, "admin-1", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, string(webhooks.ReasonMismatch), entries[0].Reason)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/webhook-events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, rec.Body.String(), `estately_webhook_verifications_total{outcome="verified"} 1`)
	assert.Contains(t, rec.Body.String(), `estately_webhook_verifications_total{outcome="rejected"} 1`)
}

func TestRouter_MissingSecret(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"event":"automation.ping"}`

	rec := s.do(t, http.MethodPost, "/api/v1/webhooks/automation", body, map[string]string{
		"X-Signature": sign(t, webhookSecret, body),
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing")
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, webhookSecret)
	rec := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}
