package handlers

import (
	"fmt"
	"net/http"

	"estately/internal/api/middleware"
)

type StatsSource interface {
	Stats() middleware.SignatureStats
}

// MetricsHandler exports verification counters in the Prometheus text format.
type MetricsHandler struct {
	source StatsSource
}

func NewMetricsHandler(source StatsSource) *MetricsHandler {
	return &MetricsHandler{source: source}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	stats := h.source.Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP estately_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE estately_up gauge\n")
	fmt.Fprintf(w, "estately_up 1\n")
	fmt.Fprintf(w, "# HELP estately_webhook_verifications_total Webhook signature checks by outcome\n")
	fmt.Fprintf(w, "# TYPE estately_webhook_verifications_total counter\n")
	fmt.Fprintf(w, "estately_webhook_verifications_total{outcome=\"verified\"} %d\n", stats.Verified)
	fmt.Fprintf(w, "estately_webhook_verifications_total{outcome=\"rejected\"} %d\n", stats.Rejected)
	fmt.Fprintf(w, "estately_webhook_verifications_total{outcome=\"misconfigured\"} %d\n", stats.Misconfigured)
	fmt.Fprintf(w, "estately_webhook_verifications_total{outcome=\"too_large\"} %d\n", stats.TooLarge)
}
