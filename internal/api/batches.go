package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LidetuK/captiviteee-sub000/internal/batch"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// BatchesHandler provides REST endpoints for batch call orchestration
type BatchesHandler struct {
	batches *batch.Manager
	logger  zerolog.Logger
}

// NewBatchesHandler creates a new BatchesHandler
func NewBatchesHandler(batches *batch.Manager, logger zerolog.Logger) *BatchesHandler {
	return &BatchesHandler{
		batches: batches,
		logger:  logger.With().Str("component", "batches_api").Logger(),
	}
}

// Create handles POST /api/batches
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg types.BatchCallConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	snap, err := h.batches.Create(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// List handles GET /api/batches with an optional ?status= filter
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := types.BatchStatus(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, h.batches.Filter(status))
}

// Get handles GET /api/batches/{batchId}
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchId")

	snap := h.batches.Get(id)
	if snap == nil {
		writeError(w, fmt.Errorf("%w: batch %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Update handles PUT /api/batches/{batchId}
func (h *BatchesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg types.BatchCallConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	snap, err := h.batches.Update(chi.URLParam(r, "batchId"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/batches/{batchId}
func (h *BatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.batches.Delete(chi.URLParam(r, "batchId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Progress handles GET /api/batches/{batchId}/progress
func (h *BatchesHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchId")

	progress := h.batches.Progress(id)
	if progress == nil {
		writeError(w, fmt.Errorf("%w: batch %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Results handles GET /api/batches/{batchId}/results
func (h *BatchesHandler) Results(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchId")

	results := h.batches.Results(id)
	if results == nil {
		writeError(w, fmt.Errorf("%w: batch %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Result handles GET /api/batches/{batchId}/results/{callerId}
func (h *BatchesHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchId")
	callerID := chi.URLParam(r, "callerId")

	result := h.batches.Result(id, callerID)
	if result == nil {
		writeError(w, fmt.Errorf("%w: batch %s caller %s", types.ErrNotFound, id, callerID))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Start handles POST /api/batches/{batchId}/start
func (h *BatchesHandler) Start(w http.ResponseWriter, r *http.Request) {
	snap, err := h.batches.Start(chi.URLParam(r, "batchId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Cancel handles POST /api/batches/{batchId}/cancel
func (h *BatchesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.batches.Cancel(chi.URLParam(r, "batchId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
