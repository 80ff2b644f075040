package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"estately/internal/platform/models"
)

// PingEvent is sent by the automation tool to check connectivity.
const PingEvent = "automation.ping"

// HandlerFunc processes a verified, recorded event.
type HandlerFunc func(ctx context.Context, event *models.WebhookEvent) error

// EventStore persists received events. GetByDeliveryID returns nil, nil when
// nothing matches.
type EventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	GetByDeliveryID(ctx context.Context, deliveryID string) (*models.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string, processedAt int64) error
}

// Delivery is a verified inbound call ready for dispatch.
type Delivery struct {
	DeliveryID string
	Envelope   Envelope
	Body       []byte
}

type Dispatcher struct {
	store EventStore
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewDispatcher(store EventStore) *Dispatcher {
	return &Dispatcher{
		store:    store,
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds handler to eventType, replacing any previous binding.
func (d *Dispatcher) Register(eventType string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = handler
}

func (d *Dispatcher) handler(eventType string) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[eventType]
	return h, ok
}

// Dispatch records the delivery and runs the handler registered for its
// event type. A delivery id seen before returns the stored event with
// duplicate set and runs nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) (event *models.WebhookEvent, duplicate bool, err error) {
	if delivery.DeliveryID != "" {
		existing, err := d.store.GetByDeliveryID(ctx, delivery.DeliveryID)
		if err != nil {
			return nil, false, fmt.Errorf("lookup delivery: %w", err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	event = &models.WebhookEvent{
		ID:         "evt_" + uuid.New().String(),
		DeliveryID: delivery.DeliveryID,
		Event:      delivery.Envelope.Event,
		PropertyID: delivery.Envelope.PropertyID,
		Payload:    delivery.Body,
		Status:     models.WebhookEventReceived,
		ReceivedAt: d.now().Unix(),
	}

	if err := d.store.Create(ctx, event); err != nil {
		// A concurrent retry of the same delivery may have won the insert.
		if delivery.DeliveryID != "" {
			if existing, lookupErr := d.store.GetByDeliveryID(ctx, delivery.DeliveryID); lookupErr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("record event: %w", err)
	}

	handler, ok := d.handler(event.Event)
	if !ok {
		event.Status = models.WebhookEventUnhandled
	} else if herr := d.run(ctx, handler, event); herr != nil {
		event.Status = models.WebhookEventFailed
		event.Error = herr.Error()
		log.Warn().Err(herr).
			Str("event_id", event.ID).
			Str("event", event.Event).
			Msg("webhook handler failed")
	} else {
		event.Status = models.WebhookEventProcessed
	}

	processedAt := d.now().Unix()
	event.ProcessedAt = &processedAt
	if err := d.store.UpdateStatus(ctx, event.ID, event.Status, event.Error, processedAt); err != nil {
		return event, false, fmt.Errorf("update event status: %w", err)
	}

	return event, false, nil
}

// run calls handler, turning a panic into an error so the event is marked
// failed instead of left as received.
func (d *Dispatcher) run(ctx context.Context, handler HandlerFunc, event *models.WebhookEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// PingHandler acknowledges connectivity checks.
func PingHandler(ctx context.Context, event *models.WebhookEvent) error {
	log.Info().Str("event_id", event.ID).Msg("automation ping received")
	return nil
}
