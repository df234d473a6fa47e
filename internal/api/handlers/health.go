package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/churn-mlops/pkg/logger"
)

// HealthHandler serves the liveness/readiness endpoints
type HealthHandler struct {
	state  *ModelState
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(state *ModelState, log *logger.Logger) *HealthHandler {
	return &HealthHandler{state: state, logger: log}
}

// Live always succeeds while the process runs
// GET /live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready lazily loads the production model on first call; 503 until a
// promoted artifact exists.
// GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.state.EnsureLoaded(); err != nil {
		h.logger.WithError(err).Warn("Readiness check failed")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports the serving status and the loaded model
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": "churn-mlops-api",
	}

	if bundle, path := h.state.Get(); bundle != nil {
		body["model_path"] = path
		body["model_type"] = bundle.ModelType
		body["loaded_at"] = h.state.LoadedAt().Format(time.RFC3339)
	} else {
		body["model_path"] = nil
	}

	respondJSON(w, http.StatusOK, body)
}
