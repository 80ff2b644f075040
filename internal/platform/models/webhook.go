package models

import "encoding/json"

const (
	WebhookEventReceived  = "received"
	WebhookEventProcessed = "processed"
	WebhookEventUnhandled = "unhandled"
	WebhookEventFailed    = "failed"
)

// WebhookEvent is one verified delivery from the automation tool.
type WebhookEvent struct {
	ID          string          `json:"id"`
	DeliveryID  string          `json:"delivery_id,omitempty"`
	Event       string          `json:"event"`
	PropertyID  string          `json:"property_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	ReceivedAt  int64           `json:"received_at"`
	ProcessedAt *int64          `json:"processed_at,omitempty"`
}
