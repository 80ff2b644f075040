package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	apiContext "estately/internal/api/context"
	"estately/internal/engine/webhooks"
	"estately/internal/pkg/errors"
	"estately/internal/platform/models"
)

const (
	DefaultSignatureHeader = "X-Signature"
	DefaultMaxBodySize     = 1 << 20
)

// AuditRecorder stores an entry for a refused webhook call.
type AuditRecorder interface {
	RecordRequest(ctx context.Context, r *http.Request, action, reason, receivedSignature string) error
}

// SignatureStats counts verification outcomes since start.
type SignatureStats struct {
	Verified      uint64
	Rejected      uint64
	Misconfigured uint64
	TooLarge      uint64
}

// SignatureMiddleware admits a request only when its body carries a valid
// HMAC signature in the configured header.
type SignatureMiddleware struct {
	verifier    *webhooks.Verifier
	header      string
	maxBodySize int64
	audit       AuditRecorder

	verified      atomic.Uint64
	rejected      atomic.Uint64
	misconfigured atomic.Uint64
	tooLarge      atomic.Uint64
}

type SignatureOptions struct {
	Header      string
	MaxBodySize int64
	Audit       AuditRecorder
}

func NewSignatureMiddleware(verifier *webhooks.Verifier, opts SignatureOptions) *SignatureMiddleware {
	if opts.Header == "" {
		opts.Header = DefaultSignatureHeader
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	return &SignatureMiddleware{
		verifier:    verifier,
		header:      opts.Header,
		maxBodySize: opts.MaxBodySize,
		audit:       opts.Audit,
	}
}

func (m *SignatureMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize+1))
		r.Body.Close()
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unable to read request body", nil)
			return
		}
		if int64(len(body)) > m.maxBodySize {
			m.tooLarge.Add(1)
			log.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int64("limit", m.maxBodySize).
				Msg("webhook body too large")
			errors.WriteError(w, http.StatusRequestEntityTooLarge, errors.ErrCodePayloadTooLarge, "Request body too large", nil)
			return
		}

		outcome := m.verifier.Verify(body, r.Header.Get(m.header))
		switch outcome.Status {
		case webhooks.StatusVerified:
			m.verified.Add(1)
		case webhooks.StatusMisconfigured:
			m.misconfigured.Add(1)
			m.refuse(r, outcome, models.AuditWebhookMisconfigured)
			log.Error().Str("path", r.URL.Path).Msg("webhook secret is not configured")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Webhook verification unavailable", nil)
			return
		default:
			m.rejected.Add(1)
			m.refuse(r, outcome, models.AuditWebhookRejected)
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid signature", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), apiContext.RawBody, body)
		next(w, r.WithContext(ctx))
	}
}

// refuse logs the outcome with both signatures and writes an audit entry.
// A failed audit write is logged and otherwise ignored.
func (m *SignatureMiddleware) refuse(r *http.Request, outcome webhooks.Outcome, action string) {
	log.Warn().
		Str("reason", string(outcome.Reason)).
		Str("received_signature", outcome.Received).
		Str("computed_signature", outcome.Computed).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Msg("webhook signature check failed")

	if m.audit == nil {
		return
	}
	if err := m.audit.RecordRequest(r.Context(), r, action, string(outcome.Reason), outcome.Received); err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

func (m *SignatureMiddleware) Stats() SignatureStats {
	return SignatureStats{
		Verified:      m.verified.Load(),
		Rejected:      m.rejected.Load(),
		Misconfigured: m.misconfigured.Load(),
		TooLarge:      m.tooLarge.Load(),
	}
}

// RawBodyFrom returns the verified body SignatureMiddleware stored on the
// request.
func RawBodyFrom(r *http.Request) ([]byte, bool) {
	body, ok := r.Context().Value(apiContext.RawBody).([]byte)
	return body, ok
}
