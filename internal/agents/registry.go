// Package agents owns the registry of calling personas. The in-memory table
// is authoritative at runtime; every mutation is written through to the
// store so configs survive a restart.
package agents

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/storage"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maintains all registered agent configs
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*types.AgentConfig
	store  storage.Store
	logger zerolog.Logger
}

// NewRegistry creates a Registry backed by store
func NewRegistry(store storage.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		agents: make(map[string]*types.AgentConfig),
		store:  store,
		logger: logger,
	}
}

// Load populates the registry from the store at startup
func (r *Registry) Load() error {
	records, err := r.store.ListAgents()
	if err != nil {
		return fmt.Errorf("failed to load agent configs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		cfg := recordToAgent(rec)
		r.agents[cfg.ID] = cfg
	}

	r.logger.Info().Int("agents", len(records)).Msg("agent configs loaded")
	return nil
}

// Create registers a new agent config. Name is required; tone defaults to
// professional.
func (r *Registry) Create(cfg types.AgentConfig) (*types.AgentConfig, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: agent name is required", types.ErrValidation)
	}
	if cfg.Personality.Tone == "" {
		cfg.Personality.Tone = types.ToneProfessional
	}

	now := time.Now()
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	r.mu.Lock()
	r.agents[cfg.ID] = &cfg
	r.mu.Unlock()

	r.persist(&cfg)

	r.logger.Info().Str("agent_id", cfg.ID).Str("name", cfg.Name).Msg("agent config registered")
	return r.Get(cfg.ID)
}

// Get returns a copy of the config, or nil if unknown
func (r *Registry) Get(id string) (*types.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.agents[id]
	if !ok {
		return nil, nil
	}
	copied := *cfg
	return &copied, nil
}

// List returns copies of all registered configs
func (r *Registry) List() []types.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]types.AgentConfig, 0, len(r.agents))
	for _, cfg := range r.agents {
		configs = append(configs, *cfg)
	}
	return configs
}

// Update replaces the mutable fields of an existing config. ID and
// CreatedAt are immutable.
func (r *Registry) Update(id string, cfg types.AgentConfig) (*types.AgentConfig, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: agent name is required", types.ErrValidation)
	}

	r.mu.Lock()
	existing, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: agent %s", types.ErrNotFound, id)
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now()
	r.agents[id] = &cfg
	r.mu.Unlock()

	r.persist(&cfg)

	r.logger.Info().Str("agent_id", id).Msg("agent config updated")
	return r.Get(id)
}

// Delete removes a config
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: agent %s", types.ErrNotFound, id)
	}
	delete(r.agents, id)
	r.mu.Unlock()

	if err := r.store.DeleteAgent(id); err != nil {
		r.logger.Warn().Err(err).Str("agent_id", id).Msg("agent delete not persisted, durability degraded")
	}

	r.logger.Info().Str("agent_id", id).Msg("agent config deleted")
	return nil
}

// persist writes through to the store; failures degrade durability but
// never fail the in-memory operation
func (r *Registry) persist(cfg *types.AgentConfig) {
	if err := r.store.SaveAgent(agentToRecord(cfg)); err != nil {
		r.logger.Warn().Err(err).Str("agent_id", cfg.ID).Msg("agent config not persisted, durability degraded")
	}
}

// agentToRecord converts a config to its persisted shape
func agentToRecord(cfg *types.AgentConfig) types.AgentRecord {
	return types.AgentRecord{
		AgentID:               cfg.ID,
		Name:                  cfg.Name,
		Description:           cfg.Description,
		VoiceID:               cfg.Voice.VoiceID,
		VoiceGender:           cfg.Voice.Gender,
		VoiceSpeed:            cfg.Voice.Speed,
		Tone:                  string(cfg.Personality.Tone),
		Pace:                  cfg.Personality.Pace,
		Vocabulary:            cfg.Personality.Vocabulary,
		RecordingDisclosure:   cfg.RecordingDisclosure,
		ComplianceDisclosures: cfg.ComplianceDisclosures,
		InputFilters:          cfg.InputFilters,
		OutputFilters:         cfg.OutputFilters,
		CanTransfer:           cfg.Capabilities.CanTransfer,
		CanTakeMessages:       cfg.Capabilities.CanTakeMessages,
		CanSchedule:           cfg.Capabilities.CanSchedule,
		CanProcessPayment:     cfg.Capabilities.CanProcessPayment,
		TrackSentiment:        cfg.Metrics.TrackSentiment,
		TrackIntents:          cfg.Metrics.TrackIntents,
		TrackEntities:         cfg.Metrics.TrackEntities,
		CreatedAt:             cfg.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             cfg.UpdatedAt.Format(time.RFC3339),
	}
}

// recordToAgent converts a persisted record back to a config
func recordToAgent(rec types.AgentRecord) *types.AgentConfig {
	createdAt, _ := time.Parse(time.RFC3339, rec.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, rec.UpdatedAt)

	return &types.AgentConfig{
		ID:          rec.AgentID,
		Name:        rec.Name,
		Description: rec.Description,
		Voice: types.AgentVoice{
			VoiceID: rec.VoiceID,
			Gender:  rec.VoiceGender,
			Speed:   rec.VoiceSpeed,
		},
		Personality: types.AgentPersonality{
			Tone:       types.AgentTone(rec.Tone),
			Pace:       rec.Pace,
			Vocabulary: rec.Vocabulary,
		},
		RecordingDisclosure:   rec.RecordingDisclosure,
		ComplianceDisclosures: rec.ComplianceDisclosures,
		InputFilters:          rec.InputFilters,
		OutputFilters:         rec.OutputFilters,
		Capabilities: types.AgentCapabilities{
			CanTransfer:       rec.CanTransfer,
			CanTakeMessages:   rec.CanTakeMessages,
			CanSchedule:       rec.CanSchedule,
			CanProcessPayment: rec.CanProcessPayment,
		},
		Metrics: types.AgentMetricsFlags{
			TrackSentiment: rec.TrackSentiment,
			TrackIntents:   rec.TrackIntents,
			TrackEntities:  rec.TrackEntities,
		},
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}
