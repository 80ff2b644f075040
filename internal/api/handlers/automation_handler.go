package handlers

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"estately/internal/api/middleware"
	"estately/internal/engine/webhooks"
	"estately/internal/pkg/errors"
	"estately/internal/platform/models"
)

const DeliveryIDHeader = "X-Delivery-ID"

type EventDispatcher interface {
	Dispatch(ctx context.Context, delivery webhooks.Delivery) (*models.WebhookEvent, bool, error)
}

// AutomationHandler accepts verified calls from the automation tool. It must
// sit behind the signature middleware.
type AutomationHandler struct {
	dispatcher EventDispatcher
}

func NewAutomationHandler(dispatcher EventDispatcher) *AutomationHandler {
	return &AutomationHandler{dispatcher: dispatcher}
}

type deliveryResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *AutomationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	// Only a body the signature middleware verified is ever dispatched.
	body, ok := middleware.RawBodyFrom(r)
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("automation handler reached without signature verification")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Webhook verification unavailable", nil)
		return
	}

	env, err := webhooks.ParseEnvelope(body)
	if err != nil {
		msg := "Invalid event payload"
		if stdErrors.Is(err, webhooks.ErrMissingEventType) {
			msg = "Event type is required"
		}
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, msg, nil)
		return
	}

	deliveryID := strings.TrimSpace(r.Header.Get(DeliveryIDHeader))
	if deliveryID == "" {
		deliveryID = env.ID
	}

	event, duplicate, err := h.dispatcher.Dispatch(r.Context(), webhooks.Delivery{
		DeliveryID: deliveryID,
		Envelope:   env,
		Body:       body,
	})
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Str("delivery_id", deliveryID).Msg("failed to dispatch webhook")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to record event", nil)
		return
	}

	if duplicate {
		log.Info().Str("event_id", event.ID).Str("delivery_id", deliveryID).Msg("duplicate webhook delivery")
		errors.WriteJSON(w, http.StatusOK, event)
		return
	}

	errors.WriteJSON(w, http.StatusAccepted, deliveryResponse{ID: event.ID, Status: event.Status})
}
