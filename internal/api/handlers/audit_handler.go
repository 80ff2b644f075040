package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"estately/internal/pkg/errors"
	"estately/internal/platform/models"
)

type AuditReader interface {
	List(ctx context.Context, limit int) ([]*models.AuditEntry, error)
}

type AuditHandler struct {
	audit AuditReader
}

func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns the most recent refused webhook calls.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 100
	}

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list audit entries")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list audit entries", nil)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}

	errors.WriteJSON(w, http.StatusOK, entries)
}
