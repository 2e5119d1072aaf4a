package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/session"
)

// MetricsHandler serves the Prometheus scrape endpoint and session store
// statistics
type MetricsHandler struct {
	prometheus http.Handler
	store      *session.Store
}

// NewMetricsHandler creates a new metrics handler. prometheus is nil when the
// metric exporter is disabled.
func NewMetricsHandler(prometheus http.Handler, store *session.Store) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, store: store}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetMetrics)
	r.Get("/sessions", h.GetSessionStats)
	return r
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		apierrors.WriteError(w, apierrors.NotFoundError("metrics exporter"))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// GetSessionStats handles GET /metrics/sessions
func (h *MetricsHandler) GetSessionStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.store.Stats())
}
