package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"estately/internal/platform/models"
)

const webhookEventColumns = `id, delivery_id, event, property_id, payload, status, error, received_at, processed_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, delivery_id, event, property_id, payload, status, error, received_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		nullString(event.DeliveryID),
		event.Event,
		nullString(event.PropertyID),
		[]byte(event.Payload),
		event.Status,
		nullString(event.Error),
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when no event has the id.
func (r *WebhookEventRepository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = ?`, id)
	event, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return event, nil
}

// GetByDeliveryID returns nil, nil when the delivery has not been seen.
func (r *WebhookEventRepository) GetByDeliveryID(ctx context.Context, deliveryID string) (*models.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookEventColumns+` FROM webhook_events WHERE delivery_id = ?`, deliveryID)
	event, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook event by delivery: %w", err)
	}
	return event, nil
}

func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id, status, errMsg string, processedAt int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = ?, error = ?, processed_at = ? WHERE id = ?`,
		status, nullString(errMsg), processedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type WebhookEventFilter struct {
	Event      string
	PropertyID string
	Limit      int
	Offset     int
}

// List returns events newest first.
func (r *WebhookEventRepository) List(ctx context.Context, f WebhookEventFilter) ([]*models.WebhookEvent, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, f.Event)
	}
	if f.PropertyID != "" {
		where = append(where, "property_id = ?")
		args = append(args, f.PropertyID)
	}

	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?`

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	events := []*models.WebhookEvent{}
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteReceivedBefore removes events received before the unix timestamp and
// returns how many were removed.
func (r *WebhookEventRepository) DeleteReceivedBefore(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE received_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune webhook events: %w", err)
	}
	return res.RowsAffected()
}

func scanWebhookEvent(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookEvent, error) {
	var (
		event       models.WebhookEvent
		deliveryID  sql.NullString
		propertyID  sql.NullString
		errMsg      sql.NullString
		payload     []byte
		processedAt sql.NullInt64
	)

	err := s.Scan(
		&event.ID,
		&deliveryID,
		&event.Event,
		&propertyID,
		&payload,
		&event.Status,
		&errMsg,
		&event.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	event.DeliveryID = deliveryID.String
	event.PropertyID = propertyID.String
	event.Error = errMsg.String
	event.Payload = payload
	if processedAt.Valid {
		val := processedAt.Int64
		event.ProcessedAt = &val
	}

	return &event, nil
}
