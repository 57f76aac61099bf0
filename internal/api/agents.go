package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentsHandler provides REST endpoints for agent config management
type AgentsHandler struct {
	registry *agents.Registry
	logger   zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler
func NewAgentsHandler(registry *agents.Registry, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		registry: registry,
		logger:   logger.With().Str("component", "agents_api").Logger(),
	}
}

// Create handles POST /api/agents
func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg types.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	created, err := h.registry.Create(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/agents
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// Get handles GET /api/agents/{agentId}
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentId")

	cfg, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if cfg == nil {
		writeError(w, fmt.Errorf("%w: agent %s", types.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Update handles PUT /api/agents/{agentId}
func (h *AgentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg types.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	updated, err := h.registry.Update(chi.URLParam(r, "agentId"), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/agents/{agentId}
func (h *AgentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(chi.URLParam(r, "agentId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
