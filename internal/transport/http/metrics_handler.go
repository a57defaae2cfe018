package http

import (
	"net/http"
)

// MetricsHandler exposes the Prometheus registry
type MetricsHandler struct {
	exposition http.Handler
}

// NewMetricsHandler creates a new metrics handler. A nil exposition handler
// answers 404, matching a disabled metrics pipeline.
func NewMetricsHandler(exposition http.Handler) *MetricsHandler {
	if exposition == nil {
		exposition = http.NotFoundHandler()
	}
	return &MetricsHandler{exposition: exposition}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.exposition.ServeHTTP(w, r)
}
