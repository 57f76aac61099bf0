// Package monitor inspects call sessions against configured thresholds and
// owns the lifecycle of the alerts it raises.
package monitor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Evaluate checks one session snapshot against one monitor config and
// returns the alerts it would raise. It is stateless: registration,
// dedup and dispatch live on the Service.
func Evaluate(s *types.CallSession, cfg *types.MonitorConfig) []types.CallAlert {
	now := time.Now()
	var alerts []types.CallAlert

	add := func(alertType types.AlertType, severity types.AlertSeverity, message string) {
		alerts = append(alerts, types.CallAlert{
			CallID:    s.ID,
			AgentID:   s.AgentID,
			CallerID:  s.CallerID,
			Type:      alertType,
			Severity:  severity,
			Message:   message,
			Status:    types.AlertNew,
			CreatedAt: now,
		})
	}

	if s.Metrics.AverageSentiment < cfg.NegativeSentimentThreshold {
		add(types.AlertNegativeSentiment, types.SeverityMedium,
			fmt.Sprintf("average sentiment %.2f below threshold %.2f", s.Metrics.AverageSentiment, cfg.NegativeSentimentThreshold))
	}

	if cfg.LongDurationSecs > 0 {
		elapsed := s.DurationSecs
		if !s.Status.Terminal() {
			elapsed = now.Sub(s.StartTime).Seconds()
		}
		if elapsed > cfg.LongDurationSecs {
			add(types.AlertLongDuration, types.SeverityLow,
				fmt.Sprintf("call running %.0fs, threshold %.0fs", elapsed, cfg.LongDurationSecs))
		}
	}

	if kw := matchEscalationKeyword(s, cfg.EscalationKeywords); kw != "" {
		add(types.AlertEscalationKeyword, types.SeverityHigh,
			fmt.Sprintf("caller used escalation keyword %q", kw))
	}

	return alerts
}

// matchEscalationKeyword returns the first configured keyword found in any
// caller turn, case-insensitively, as a substring
func matchEscalationKeyword(s *types.CallSession, keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	for _, entry := range s.Transcript {
		if entry.Speaker != types.SpeakerCaller {
			continue
		}
		lower := strings.ToLower(entry.Text)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return kw
			}
		}
	}
	return ""
}

// Service holds monitor configs and the alert registry
type Service struct {
	mu         sync.RWMutex
	configs    map[string]*types.MonitorConfig
	active     map[string]*types.CallAlert   // alertID -> active alert
	activeKeys map[string]string             // callID+type -> alertID, for dedup
	history    map[string][]*types.CallAlert // callID -> every alert ever raised
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewService creates a monitor Service. dispatcher may be nil, in which
// case alerts are registered but never delivered anywhere.
func NewService(dispatcher *Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		configs:    make(map[string]*types.MonitorConfig),
		active:     make(map[string]*types.CallAlert),
		activeKeys: make(map[string]string),
		history:    make(map[string][]*types.CallAlert),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CreateConfig registers a monitor config. Frequency defaults to immediate.
func (s *Service) CreateConfig(cfg types.MonitorConfig) (*types.MonitorConfig, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: monitor config name is required", types.ErrValidation)
	}
	switch cfg.Frequency {
	case types.FrequencyImmediate, types.FrequencyBatched, types.FrequencySummary:
	case "":
		cfg.Frequency = types.FrequencyImmediate
	default:
		return nil, fmt.Errorf("%w: unknown alert frequency %q", types.ErrValidation, cfg.Frequency)
	}

	now := time.Now()
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	s.mu.Lock()
	s.configs[cfg.ID] = &cfg
	s.mu.Unlock()

	s.logger.Info().Str("monitor_id", cfg.ID).Str("name", cfg.Name).Msg("monitor config created")
	copied := cfg
	return &copied, nil
}

// GetConfig returns a copy of the config, or nil if unknown
func (s *Service) GetConfig(id string) *types.MonitorConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return nil
	}
	copied := *cfg
	return &copied
}

// ListConfigs returns copies of all configs
func (s *Service) ListConfigs() []types.MonitorConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	configs := make([]types.MonitorConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		configs = append(configs, *cfg)
	}
	return configs
}

// UpdateConfig replaces the mutable fields of a config
func (s *Service) UpdateConfig(id string, cfg types.MonitorConfig) (*types.MonitorConfig, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: monitor config name is required", types.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: monitor config %s", types.ErrNotFound, id)
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now()
	if cfg.Frequency == "" {
		cfg.Frequency = existing.Frequency
	}
	s.configs[id] = &cfg

	copied := cfg
	return &copied, nil
}

// DeleteConfig removes a config
func (s *Service) DeleteConfig(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return fmt.Errorf("%w: monitor config %s", types.ErrNotFound, id)
	}
	delete(s.configs, id)
	return nil
}

// EvaluateSession runs every enabled config against the session snapshot,
// registering and dispatching any new alerts. An alert type already active
// for the call is not raised again.
func (s *Service) EvaluateSession(sess *types.CallSession) {
	s.mu.RLock()
	configs := make([]*types.MonitorConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		if cfg.Enabled {
			configs = append(configs, cfg)
		}
	}
	s.mu.RUnlock()

	for _, cfg := range configs {
		for _, alert := range Evaluate(sess, cfg) {
			s.register(alert, cfg.Frequency)
		}
	}
}

// register stores an alert and hands it to the dispatcher unless the same
// call already has an active alert of that type
func (s *Service) register(alert types.CallAlert, freq types.AlertFrequency) {
	key := alert.CallID + "/" + string(alert.Type)

	s.mu.Lock()
	if _, dup := s.activeKeys[key]; dup {
		s.mu.Unlock()
		return
	}
	alert.ID = uuid.New().String()
	stored := alert
	s.active[alert.ID] = &stored
	s.activeKeys[key] = alert.ID
	s.history[alert.CallID] = append(s.history[alert.CallID], &stored)
	s.mu.Unlock()

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("call_id", alert.CallID).
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Msg("alert raised")

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(stored, freq)
	}
}

// ActiveAlerts returns copies of all active alerts, oldest first
func (s *Service) ActiveAlerts() []types.CallAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]types.CallAlert, 0, len(s.active))
	for _, a := range s.active {
		alerts = append(alerts, *a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
	return alerts
}

// CallAlerts returns every alert ever raised for a call, including
// resolved ones
func (s *Service) CallAlerts(callID string) []types.CallAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]types.CallAlert, 0, len(s.history[callID]))
	for _, a := range s.history[callID] {
		alerts = append(alerts, *a)
	}
	return alerts
}

// Acknowledge stamps the acknowledger on a new alert; it stays active
func (s *Service) Acknowledge(alertID, userID string) (*types.CallAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[alertID]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", types.ErrNotFound, alertID)
	}
	if alert.Status != types.AlertNew {
		return nil, fmt.Errorf("%w: alert %s is %s", types.ErrIllegalTransition, alertID, alert.Status)
	}

	now := time.Now()
	alert.Status = types.AlertAcknowledged
	alert.AcknowledgedBy = userID
	alert.AcknowledgedAt = &now

	copied := *alert
	return &copied, nil
}

// Resolve closes an alert and removes it from the active set
func (s *Service) Resolve(alertID, userID string) (*types.CallAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[alertID]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", types.ErrNotFound, alertID)
	}

	now := time.Now()
	alert.Status = types.AlertResolved
	alert.ResolvedBy = userID
	alert.ResolvedAt = &now

	delete(s.active, alertID)
	delete(s.activeKeys, alert.CallID+"/"+string(alert.Type))

	copied := *alert
	return &copied, nil
}

// Ignore drops a new alert from the active set without resolving it
func (s *Service) Ignore(alertID, userID string) (*types.CallAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[alertID]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", types.ErrNotFound, alertID)
	}
	if alert.Status != types.AlertNew {
		return nil, fmt.Errorf("%w: alert %s is %s", types.ErrIllegalTransition, alertID, alert.Status)
	}

	alert.Status = types.AlertIgnored
	alert.ResolvedBy = userID

	delete(s.active, alertID)
	delete(s.activeKeys, alert.CallID+"/"+string(alert.Type))

	copied := *alert
	return &copied, nil
}
