package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estately/internal/engine/webhooks"
	"estately/internal/platform/models"
)

const testSecret = "topsecret"

type recordedAudit struct {
	action, reason, signature string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []recordedAudit
	err     error
}

func (f *fakeAudit) RecordRequest(ctx context.Context, r *http.Request, action, reason, receivedSignature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedAudit{action, reason, receivedSignature})
	return f.err
}

func newSignatureMiddleware(t *testing.T, secret string, audit AuditRecorder) *SignatureMiddleware {
	t.Helper()
	v, err := webhooks.NewVerifier(webhooks.Config{Secret: secret})
	require.NoError(t, err)
	return NewSignatureMiddleware(v, SignatureOptions{MaxBodySize: 64, Audit: audit})
}

func sign(t *testing.T, secret, body string) string {
	t.Helper()
	v, err := webhooks.NewVerifier(webhooks.Config{Secret: secret})
	require.NoError(t, err)
	sig, err := v.Sign([]byte(body))
	require.NoError(t, err)
	return sig
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	fromCtx, _ := RawBodyFrom(r)
	fromBody, _ := io.ReadAll(r.Body)
	w.Header().Set("X-Context-Body", string(fromCtx))
	w.WriteHeader(http.StatusOK)
	w.Write(fromBody)
}

func TestSignatureMiddleware_Verified(t *testing.T) {
	m := newSignatureMiddleware(t, testSecret, nil)
	body := `{"event":"automation.ping"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/automation", strings.NewReader(body))
	req.Header.Set("X-Signature", sign(t, testSecret, body))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())
	assert.Equal(t, body, rec.Header().Get("X-Context-Body"))
	assert.Equal(t, SignatureStats{Verified: 1}, m.Stats())
}

func TestSignatureMiddleware_Refusals(t *testing.T) {
	body := `{"event":"automation.ping"}`

	tests := []struct {
		name       string
		secret     string
		signature  string
		wantStatus int
		wantAction string
		wantReason webhooks.Reason
	}{
		{
			name:       "missing header",
			secret:     testSecret,
			wantStatus: http.StatusUnauthorized,
			wantAction: models.AuditWebhookRejected,
			wantReason: webhooks.ReasonMissingSignature,
		},
		{
			name:       "wrong signature",
			secret:     testSecret,
			signature:  strings.Repeat("0", 64),
			wantStatus: http.StatusUnauthorized,
			wantAction: models.AuditWebhookRejected,
			wantReason: webhooks.ReasonMismatch,
		},
		{
			name:       "not hex",
			secret:     testSecret,
			signature:  "zz-not-hex",
			wantStatus: http.StatusUnauthorized,
			wantAction: models.AuditWebhookRejected,
			wantReason: webhooks.ReasonMalformedSignature,
		},
		{
			name:       "no secret configured",
			secret:     "",
			signature:  sign(t, testSecret, body),
			wantStatus: http.StatusInternalServerError,
			wantAction: models.AuditWebhookMisconfigured,
			wantReason: webhooks.ReasonMissingSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &fakeAudit{}
			m := newSignatureMiddleware(t, tt.secret, audit)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/automation", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set("X-Signature", tt.signature)
			}
			rec := httptest.NewRecorder()

			called := false
			m.Handle(func(w http.ResponseWriter, r *http.Request) { called = true })(rec, req)

			assert.False(t, called)
			assert.Equal(t, tt.wantStatus, rec.Code)

			require.Len(t, audit.entries, 1)
			assert.Equal(t, tt.wantAction, audit.entries[0].action)
			assert.Equal(t, string(tt.wantReason), audit.entries[0].reason)

			// The response never says why verification failed.
			assert.NotContains(t, rec.Body.String(), string(tt.wantReason))
			assert.NotContains(t, rec.Body.String(), testSecret)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		})
	}
}

func TestSignatureMiddleware_BodyTooLarge(t *testing.T) {
	audit := &fakeAudit{}
	m := newSignatureMiddleware(t, testSecret, audit)
	body := strings.Repeat("a", 65)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/automation", strings.NewReader(body))
	req.Header.Set("X-Signature", sign(t, testSecret, body))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, audit.entries)
	assert.Equal(t, uint64(1), m.Stats().TooLarge)
}

func TestSignatureMiddleware_BodyAtLimit(t *testing.T) {
	m := newSignatureMiddleware(t, testSecret, nil)
	body := strings.Repeat("a", 64)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/automation", strings.NewReader(body))
	req.Header.Set("X-Signature", sign(t, testSecret, body))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignatureMiddleware_CustomHeader(t *testing.T) {
	v, err := webhooks.NewVerifier(webhooks.Config{Secret: testSecret, Prefix: "sha256="})
	require.NoError(t, err)
	m := NewSignatureMiddleware(v, SignatureOptions{Header: "X-Hub-Signature-256"})
	body := `{"event":"automation.ping"}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+sign(t, testSecret, body))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignatureMiddleware_AuditFailureStillRejects(t *testing.T) {
	audit := &fakeAudit{err: assert.AnError}
	m := newSignatureMiddleware(t, testSecret, audit)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("X-Signature", strings.Repeat("0", 64))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, uint64(1), m.Stats().Rejected)
}

func TestSignatureMiddleware_ClipsOversizedSignatureInAudit(t *testing.T) {
	audit := &fakeAudit{}
	m := newSignatureMiddleware(t, testSecret, audit)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("X-Signature", strings.Repeat("f", 64*1024))
	rec := httptest.NewRecorder()

	m.Handle(echoHandler)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, audit.entries, 1)
	assert.Len(t, audit.entries[0].signature, 128)
}
