package handlers

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "estately/internal/api/context"
	"estately/internal/pkg/errors"
	"estately/internal/platform/models"
	"estately/internal/platform/repositories"
)

type EventReader interface {
	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	List(ctx context.Context, f repositories.WebhookEventFilter) ([]*models.WebhookEvent, error)
}

type WebhookEventHandler struct {
	events EventReader
}

func NewWebhookEventHandler(events EventReader) *WebhookEventHandler {
	return &WebhookEventHandler{events: events}
}

type eventList struct {
	Events []*models.WebhookEvent `json:"events"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns recorded events across all properties, newest first.
func (h *WebhookEventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	h.list(w, r, repositories.WebhookEventFilter{
		Event:  r.URL.Query().Get("event"),
		Limit:  limit,
		Offset: offset,
	})
}

// ListForProperty returns the events of the property loaded by the ownership
// middleware.
func (h *WebhookEventHandler) ListForProperty(w http.ResponseWriter, r *http.Request) {
	property, ok := r.Context().Value(apiContext.Property).(*models.Property)
	if !ok || property == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Property not found", nil)
		return
	}

	limit, offset := pageParams(r)
	h.list(w, r, repositories.WebhookEventFilter{
		PropertyID: property.ID,
		Event:      r.URL.Query().Get("event"),
		Limit:      limit,
		Offset:     offset,
	})
}

func (h *WebhookEventHandler) list(w http.ResponseWriter, r *http.Request, f repositories.WebhookEventFilter) {
	events, err := h.events.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("failed to list webhook events")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list events", nil)
		return
	}
	if events == nil {
		events = []*models.WebhookEvent{}
	}

	errors.WriteJSON(w, http.StatusOK, eventList{Events: events, Limit: f.Limit, Offset: f.Offset})
}

func (h *WebhookEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	eventID := params.ByName("event_id")

	event, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		if stdErrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Event not found", nil)
			return
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to load webhook event")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load event", nil)
		return
	}

	errors.WriteJSON(w, http.StatusOK, event)
}
