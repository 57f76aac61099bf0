package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LidetuK/captiviteee-sub000/internal/monitor"
	"github.com/LidetuK/captiviteee-sub000/internal/session"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SessionsHandler provides REST endpoints for live call sessions
type SessionsHandler struct {
	sessions *session.Manager
	monitor  *monitor.Service
	logger   zerolog.Logger
}

// NewSessionsHandler creates a new SessionsHandler
func NewSessionsHandler(sessions *session.Manager, mon *monitor.Service, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions: sessions,
		monitor:  mon,
		logger:   logger.With().Str("component", "sessions_api").Logger(),
	}
}

type startCallRequest struct {
	AgentID  string `json:"agentId"`
	CallerID string `json:"callerId"`
}

// StartCall handles POST /api/calls
func (h *SessionsHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" || req.CallerID == "" {
		writeError(w, fmt.Errorf("%w: agentId and callerId are required", types.ErrValidation))
		return
	}

	sess, err := h.sessions.StartCall(req.AgentID, req.CallerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListActive handles GET /api/calls
func (h *SessionsHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.ListActive())
}

// Get handles GET /api/calls/{callId}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "callId")

	sess := h.sessions.Get(id)
	if sess == nil {
		writeError(w, fmt.Errorf("%w: session %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type inputRequest struct {
	Text string `json:"text"`
}

// ProcessInput handles POST /api/calls/{callId}/input
func (h *SessionsHandler) ProcessInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	reply, err := h.sessions.ProcessInput(r.Context(), chi.URLParam(r, "callId"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type endCallRequest struct {
	Status types.SessionStatus `json:"status"`
}

// EndCall handles POST /api/calls/{callId}/end
func (h *SessionsHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	var req endCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = types.SessionCompleted
	}

	record, err := h.sessions.EndCall(chi.URLParam(r, "callId"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// CallAlerts handles GET /api/calls/{callId}/alerts
func (h *SessionsHandler) CallAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.CallAlerts(chi.URLParam(r, "callId")))
}
