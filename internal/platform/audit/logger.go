package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"estately/internal/platform/models"
)

// MaxSignatureLength bounds the stored copy of a received signature. It fits
// twice a hex SHA-512 MAC with a short prefix.
const MaxSignatureLength = 300

const maxUserAgentLength = 512

// Logger keeps a trail of rejected webhook deliveries for later review. It
// records what was received, never the shared secret.
type Logger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

// RecordRequest stores an entry for r with the given action and reason.
func (l *Logger) RecordRequest(ctx context.Context, r *http.Request, action, reason, receivedSignature string) error {
	return l.Record(ctx, &models.AuditEntry{
		Action:            action,
		Reason:            reason,
		Path:              r.URL.Path,
		ReceivedSignature: receivedSignature,
		IPAddress:         clientIP(r),
		UserAgent:         r.UserAgent(),
	})
}

func (l *Logger) Record(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = "audit_" + uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = l.now().Unix()
	}
	if len(entry.ReceivedSignature) > MaxSignatureLength {
		entry.ReceivedSignature = entry.ReceivedSignature[:MaxSignatureLength]
	}
	if len(entry.UserAgent) > maxUserAgentLength {
		entry.UserAgent = entry.UserAgent[:maxUserAgentLength]
	}

	query := `
		INSERT INTO audit_logs (id, action, reason, path, received_signature, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.Reason,
		entry.Path,
		sql.NullString{String: entry.ReceivedSignature, Valid: entry.ReceivedSignature != ""},
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// DeleteBefore removes entries created before the unix timestamp and returns
// how many were removed.
func (l *Logger) DeleteBefore(ctx context.Context, before int64) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

// List returns the newest entries first.
func (l *Logger) List(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, action, reason, path, received_signature, ip_address, user_agent, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var sig sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.Reason, &e.Path, &sig, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ReceivedSignature = sig.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
