package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMissingEventType = errors.New("event type is required")

// Envelope is the JSON shape every automation event shares. Data is kept raw
// and left to the event's handler.
type Envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	PropertyID string          `json:"property_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope decodes a verified body. The body itself is never modified.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("invalid event payload: %w", err)
	}
	// Anything after the first value, including a stray closing bracket,
	// makes the body invalid JSON.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("invalid event payload: trailing data")
	}

	env.ID = strings.TrimSpace(env.ID)
	env.Event = strings.TrimSpace(env.Event)
	env.PropertyID = strings.TrimSpace(env.PropertyID)
	if env.Event == "" {
		return Envelope{}, ErrMissingEventType
	}
	return env, nil
}
