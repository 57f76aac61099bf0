package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LidetuK/captiviteee-sub000/internal/monitor"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MonitorHandler provides REST endpoints for monitor configs and alerts
type MonitorHandler struct {
	service *monitor.Service
	logger  zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler
func NewMonitorHandler(service *monitor.Service, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		service: service,
		logger:  logger.With().Str("component", "monitor_api").Logger(),
	}
}

// CreateConfig handles POST /api/monitors
func (h *MonitorHandler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg types.MonitorConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateConfig(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListConfigs handles GET /api/monitors
func (h *MonitorHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListConfigs())
}

// GetConfig handles GET /api/monitors/{monitorId}
func (h *MonitorHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "monitorId")

	cfg := h.service.GetConfig(id)
	if cfg == nil {
		writeError(w, fmt.Errorf("%w: monitor config %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /api/monitors/{monitorId}
func (h *MonitorHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg types.MonitorConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateConfig(chi.URLParam(r, "monitorId"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteConfig handles DELETE /api/monitors/{monitorId}
func (h *MonitorHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConfig(chi.URLParam(r, "monitorId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActiveAlerts handles GET /api/alerts
func (h *MonitorHandler) ActiveAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ActiveAlerts())
}

type alertActionRequest struct {
	UserID string `json:"userId"`
}

func decodeAlertAction(r *http.Request) (string, error) {
	var req alertActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", fmt.Errorf("%w: invalid JSON", types.ErrValidation)
	}
	if req.UserID == "" {
		return "", fmt.Errorf("%w: userId is required", types.ErrValidation)
	}
	return req.UserID, nil
}

// AcknowledgeAlert handles POST /api/alerts/{alertId}/acknowledge
func (h *MonitorHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := decodeAlertAction(r)
	if err != nil {
		writeError(w, err)
		return
	}

	alert, err := h.service.Acknowledge(chi.URLParam(r, "alertId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ResolveAlert handles POST /api/alerts/{alertId}/resolve
func (h *MonitorHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := decodeAlertAction(r)
	if err != nil {
		writeError(w, err)
		return
	}

	alert, err := h.service.Resolve(chi.URLParam(r, "alertId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// IgnoreAlert handles POST /api/alerts/{alertId}/ignore
func (h *MonitorHandler) IgnoreAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := decodeAlertAction(r)
	if err != nil {
		writeError(w, err)
		return
	}

	alert, err := h.service.Ignore(chi.URLParam(r, "alertId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
