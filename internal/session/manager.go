// Package session owns the lifecycle of live call sessions. A session is
// active from StartCall until EndCall moves it to a terminal status, at
// which point it leaves the live table and the returned record is the only
// remaining copy.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/audit"
	"github.com/LidetuK/captiviteee-sub000/internal/filter"
	"github.com/LidetuK/captiviteee-sub000/internal/nlp"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// blockedReprompt is returned when input filtering blocks the caller's text
// entirely; the NLP collaborator is never invoked for such a turn.
const blockedReprompt = "I'm sorry, I didn't catch that. Could you rephrase?"

// resolvedSentimentThreshold is the default bar for the resolved heuristic:
// the most recent caller turn must score above it.
const resolvedSentimentThreshold = 0.3

// Evaluator is notified with a session snapshot after every metrics
// recompute and at call end. The monitor implements it.
type Evaluator interface {
	EvaluateSession(s *types.CallSession)
}

// Resolver decides whether a session counts as resolved. The default is a
// coarse sentiment heuristic; swap it without breaking the contract.
type Resolver func(s *types.CallSession) bool

// state pairs a live session with the filter rules and tone captured from
// its agent config at start time.
type state struct {
	sess        *types.CallSession
	inputRules  []types.FilterRule
	outputRules []types.FilterRule
}

// Manager owns all active call sessions
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*state
	agents       *agents.Registry
	pipeline     *filter.Pipeline
	understander nlp.Understander
	sink         audit.Sink
	evaluator    Evaluator
	resolver     Resolver
	nlpTimeout   time.Duration
	logger       zerolog.Logger
}

// NewManager creates a session Manager. nlpTimeout bounds every
// collaborator call; expiry surfaces as a failed turn.
func NewManager(registry *agents.Registry, pipeline *filter.Pipeline, understander nlp.Understander, sink audit.Sink, nlpTimeout time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions:     make(map[string]*state),
		agents:       registry,
		pipeline:     pipeline,
		understander: understander,
		sink:         sink,
		resolver:     defaultResolver,
		nlpTimeout:   nlpTimeout,
		logger:       logger,
	}
}

// SetEvaluator wires the monitor in after construction. Safe to call while
// sessions are running.
func (m *Manager) SetEvaluator(e Evaluator) {
	m.mu.Lock()
	m.evaluator = e
	m.mu.Unlock()
}

// SetResolver replaces the resolved heuristic. Safe to call while sessions
// are running.
func (m *Manager) SetResolver(r Resolver) {
	if r == nil {
		return
	}
	m.mu.Lock()
	m.resolver = r
	m.mu.Unlock()
}

// currentEvaluator reads the evaluator under the lock; evaluation itself
// runs outside it
func (m *Manager) currentEvaluator() Evaluator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evaluator
}

func defaultResolver(s *types.CallSession) bool {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		entry := s.Transcript[i]
		if entry.Speaker == types.SpeakerCaller && entry.Sentiment != nil {
			return *entry.Sentiment > resolvedSentimentThreshold
		}
	}
	return false
}

// StartCall creates a new active session for agentID calling callerID and
// seeds the transcript with the agent's opening line.
func (m *Manager) StartCall(agentID, callerID string) (*types.CallSession, error) {
	agent, err := m.agents.Get(agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent %s", types.ErrNotFound, agentID)
	}

	now := time.Now()
	sess := &types.CallSession{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		CallerID:  callerID,
		StartTime: now,
		Status:    types.SessionActive,
		Transcript: []types.TranscriptEntry{
			{
				Timestamp: now,
				Speaker:   types.SpeakerAgent,
				Text:      buildOpening(agent),
			},
		},
	}

	m.mu.Lock()
	m.sessions[sess.ID] = &state{
		sess:        sess,
		inputRules:  agent.InputFilters,
		outputRules: agent.OutputFilters,
	}
	m.mu.Unlock()

	m.sink.Record(audit.Event{
		Type:      "call_started",
		CallID:    sess.ID,
		AgentID:   agentID,
		CallerID:  callerID,
		Timestamp: now,
	})

	m.logger.Info().
		Str("call_id", sess.ID).
		Str("agent_id", agentID).
		Str("caller_id", callerID).
		Msg("call started")

	return copySession(sess), nil
}

// buildOpening synthesizes the agent's first line: greeting, optional
// recording disclosure, compliance disclosures, tone-appropriate question.
func buildOpening(agent *types.AgentConfig) string {
	parts := []string{fmt.Sprintf("Hello! This is %s.", agent.Name)}

	if agent.RecordingDisclosure {
		parts = append(parts, "This call may be recorded for quality assurance.")
	}
	parts = append(parts, agent.ComplianceDisclosures...)

	switch agent.Personality.Tone {
	case types.ToneFriendly:
		parts = append(parts, "How can I help you today?")
	case types.ToneCasual:
		parts = append(parts, "What can I do for you?")
	default:
		parts = append(parts, "How may I assist you?")
	}

	return strings.Join(parts, " ")
}

// ProcessInput runs one caller turn: input filtering, collaborator call,
// transcript bookkeeping, metrics recompute, output filtering. The returned
// string is the agent's reply. A blocked input short-circuits to a fixed
// re-prompt without touching the collaborator or the transcript.
//
// A collaborator failure leaves the session unchanged and is returned to
// the caller, which treats it as a failed turn.
func (m *Manager) ProcessInput(ctx context.Context, callID, text string) (string, error) {
	m.mu.RLock()
	st, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: session %s", types.ErrNotFound, callID)
	}

	inFiltered := m.pipeline.Apply(text, st.inputRules)
	if inFiltered.Flagged && inFiltered.Text == "" {
		m.sink.Record(audit.Event{
			Type:      "input_blocked",
			CallID:    callID,
			CallerID:  st.sess.CallerID,
			Message:   inFiltered.FlagReason,
			Timestamp: time.Now(),
		})
		m.logger.Debug().
			Str("call_id", callID).
			Str("reason", inFiltered.FlagReason).
			Msg("caller input blocked")
		return blockedReprompt, nil
	}

	nlpCtx, cancel := context.WithTimeout(ctx, m.nlpTimeout)
	defer cancel()

	understanding, err := m.understander.Understand(nlpCtx, st.sess.CallerID, callID, inFiltered.Text)
	if err != nil {
		m.logger.Warn().Err(err).Str("call_id", callID).Msg("collaborator call failed")
		return "", fmt.Errorf("understanding failed for call %s: %w", callID, err)
	}

	outFiltered := m.pipeline.Apply(understanding.ReplyText, st.outputRules)

	var snapshot *types.CallSession
	m.mu.Lock()
	// Re-check: the session may have ended while the collaborator ran
	if _, still := m.sessions[callID]; !still {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: session %s", types.ErrNotFound, callID)
	}

	now := time.Now()
	// Keep the caller's original text for audit fidelity; the filtered
	// text is what the collaborator reasoned over.
	st.sess.Transcript = append(st.sess.Transcript, types.TranscriptEntry{
		Timestamp:  now,
		Speaker:    types.SpeakerCaller,
		Text:       text,
		Sentiment:  understanding.Sentiment,
		Intent:     understanding.Intent,
		Entities:   understanding.Entities,
		Flagged:    inFiltered.Flagged,
		FlagReason: inFiltered.FlagReason,
	})

	m.recompute(st.sess)

	st.sess.Transcript = append(st.sess.Transcript, types.TranscriptEntry{
		Timestamp:  now,
		Speaker:    types.SpeakerAgent,
		Text:       outFiltered.Text,
		Flagged:    outFiltered.Flagged,
		FlagReason: outFiltered.FlagReason,
	})

	snapshot = copySession(st.sess)
	m.mu.Unlock()

	if ev := m.currentEvaluator(); ev != nil {
		ev.EvaluateSession(snapshot)
	}

	return outFiltered.Text, nil
}

// EndCall moves the session to the given terminal status, sets end time and
// duration exactly once, runs a final metrics recompute and removes the
// session from the live table. The returned record is the caller's to keep.
func (m *Manager) EndCall(callID string, status types.SessionStatus) (*types.CallSession, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal status", types.ErrValidation, status)
	}

	m.mu.Lock()
	st, ok := m.sessions[callID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", types.ErrNotFound, callID)
	}
	delete(m.sessions, callID)

	now := time.Now()
	st.sess.Status = status
	st.sess.EndTime = &now
	st.sess.DurationSecs = now.Sub(st.sess.StartTime).Seconds()
	m.recompute(st.sess)

	record := copySession(st.sess)
	m.mu.Unlock()

	if ev := m.currentEvaluator(); ev != nil {
		ev.EvaluateSession(record)
	}

	m.sink.Record(audit.Event{
		Type:      "call_ended",
		CallID:    callID,
		AgentID:   record.AgentID,
		CallerID:  record.CallerID,
		Message:   string(status),
		Timestamp: now,
	})

	m.logger.Info().
		Str("call_id", callID).
		Str("status", string(status)).
		Float64("duration_secs", record.DurationSecs).
		Msg("call ended")

	return copySession(record), nil
}

// Get returns a snapshot of an active session, or nil if unknown
func (m *Manager) Get(callID string) *types.CallSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.sessions[callID]
	if !ok {
		return nil
	}
	return copySession(st.sess)
}

// ListActive returns snapshots of all active sessions
func (m *Manager) ListActive() []types.CallSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]types.CallSession, 0, len(m.sessions))
	for _, st := range m.sessions {
		sessions = append(sessions, *copySession(st.sess))
	}
	return sessions
}

// ActiveCount returns the number of live sessions
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// recompute refreshes the rollup metrics from the transcript. Callers hold
// the write lock.
func (m *Manager) recompute(s *types.CallSession) {
	var sum float64
	var count int
	intentSeen := false

	for _, entry := range s.Transcript {
		if entry.Speaker != types.SpeakerCaller {
			continue
		}
		if entry.Sentiment != nil {
			sum += *entry.Sentiment
			count++
		}
		if entry.Intent != "" {
			intentSeen = true
		}
	}

	if count > 0 {
		s.Metrics.AverageSentiment = sum / float64(count)
	} else {
		s.Metrics.AverageSentiment = 0
	}
	s.Metrics.IntentRecognized = intentSeen
	s.Metrics.Escalated = s.Status == types.SessionTransferred
	s.Metrics.Resolved = m.resolver(s)
}

// copySession returns a snapshot that does not alias the live transcript
func copySession(s *types.CallSession) *types.CallSession {
	copied := *s
	copied.Transcript = append([]types.TranscriptEntry(nil), s.Transcript...)
	copied.Notes = append([]string(nil), s.Notes...)
	copied.Tags = append([]string(nil), s.Tags...)
	return &copied
}
