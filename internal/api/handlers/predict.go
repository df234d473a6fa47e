package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/pkg/logger"
	"github.com/wonny/churn-mlops/pkg/redis"
)

// PredictHandler serves single-row churn predictions from the production
// model.
type PredictHandler struct {
	state  *ModelState
	cache  *redis.Cache
	logger *logger.Logger
}

// NewPredictHandler creates a new predict handler. Cache may be a
// disabled client wrapper; it never has to be nil-checked.
func NewPredictHandler(state *ModelState, cache *redis.Cache, log *logger.Logger) *PredictHandler {
	return &PredictHandler{state: state, cache: cache, logger: log}
}

// PredictRequest is one scoring request. Feature values may arrive as
// JSON numbers or strings; both are normalized before encoding.
type PredictRequest struct {
	UserID       string                 `json:"user_id"`
	SnapshotDate string                 `json:"snapshot_date,omitempty"`
	Features     map[string]interface{} `json:"features"`
}

// PredictResponse mirrors the batch scorer's per-row output
type PredictResponse struct {
	UserID    string  `json:"user_id"`
	ChurnRisk float64 `json:"churn_risk"`
	ModelPath string  `json:"model_path"`
}

// Predict scores one user snapshot
// POST /api/predict
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.state.EnsureLoaded(); err != nil {
		h.logger.WithError(err).Error("No production model available")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	bundle, path := h.state.Get()

	cacheKey := redis.PredictionKey(req.UserID, req.SnapshotDate, path)
	var cached PredictResponse
	if found, _ := h.cache.Get(ctx, cacheKey, &cached); found {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	row := make(dataset.Row, len(req.Features))
	for k, v := range req.Features {
		row[k] = featureCell(v)
	}

	resp := PredictResponse{
		UserID:    req.UserID,
		ChurnRisk: bundle.PredictProba(row),
		ModelPath: path,
	}

	if err := h.cache.Set(ctx, cacheKey, resp, redis.TTLPrediction); err != nil {
		h.logger.WithError(err).Warn("Prediction cache write failed")
	}

	respondJSON(w, http.StatusOK, resp)
}

// Reload re-reads the production alias, picking up a fresh promotion
// without restarting the server.
// POST /api/reload
func (h *PredictHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Reload(); err != nil {
		h.logger.WithError(err).Error("Model reload failed")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	_, path := h.state.Get()
	h.logger.WithField("model_path", path).Info("Production model reloaded")

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "reloaded",
		"model_path": path,
	})
}

// featureCell renders a JSON feature value the way CSV cells look
func featureCell(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return dataset.FormatFloat(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
