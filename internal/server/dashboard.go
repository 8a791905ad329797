package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
)

// Triggerer requests an immediate cycle; false means one is already running.
type Triggerer interface {
	TriggerNow() bool
}

// Pinger verifies the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DashboardHandler serves the pipeline's observability endpoints.
// Implements the [Handler] interface for registration with a [Router].
type DashboardHandler struct {
	reporter *status.Reporter
	trigger  Triggerer
	pinger   Pinger
	logger   *log.Logger
}

// NewDashboardHandler creates a DashboardHandler over the given collaborators.
func NewDashboardHandler(reporter *status.Reporter, trigger Triggerer, pinger Pinger, logger *log.Logger) *DashboardHandler {
	return &DashboardHandler{
		reporter: reporter,
		trigger:  trigger,
		pinger:   pinger,
		logger:   logger,
	}
}

// Routes returns the HTTP routes this handler serves. The method prefixes
// make the router reject anything else with 405.
func (h *DashboardHandler) Routes() []string {
	return []string{"GET /health", "GET /status", "GET /stats", "POST /trigger"}
}

// ServeHTTP dispatches dashboard requests. Reads never block the pipeline;
// every response is served from a status snapshot.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		h.handleHealth(w, r)
	case "/status":
		h.handleStatus(w, r)
	case "/stats":
		h.handleStats(w, r)
	case "/trigger":
		h.handleTrigger(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleHealth reports liveness: 200 when the ledger store is reachable.
func (h *DashboardHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleStatus serves the full pipeline snapshot.
func (h *DashboardHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reporter.Snapshot())
}

// handleStats serves only the cumulative download statistics.
func (h *DashboardHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reporter.Snapshot().Stats)
}

// handleTrigger requests an immediate cycle without waiting for it. The
// router only routes POSTs here.
func (h *DashboardHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !h.trigger.TriggerNow() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already running"})
		return
	}

	h.logger.Info("cycle triggered via dashboard")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// writeJSON serializes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
