// Package audit provides the fire-and-forget audit sink. Recording is
// best-effort: a failing sink must never fail the operation being audited.
package audit

import (
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one auditable occurrence in the engine
type Event struct {
	Type      string    `json:"type"`
	CallID    string    `json:"callId,omitempty"`
	BatchID   string    `json:"batchId,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	CallerID  string    `json:"callerId,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives audit events. Implementations must not block the caller and
// must swallow their own failures.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Record(Event) {}

// LogSink writes audit events to the structured log
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(event Event) {
	s.logger.Info().
		Str("audit_type", event.Type).
		Str("call_id", event.CallID).
		Str("batch_id", event.BatchID).
		Str("agent_id", event.AgentID).
		Msg(event.Message)
}

// AuditStore is the subset of storage.Store needed by StoreSink
type AuditStore interface {
	SaveAuditEvent(rec types.AuditRecord) error
}

// StoreSink persists audit events asynchronously. Write errors are logged
// and dropped.
type StoreSink struct {
	store  AuditStore
	logger zerolog.Logger
}

// NewStoreSink creates a StoreSink
func NewStoreSink(store AuditStore, logger zerolog.Logger) *StoreSink {
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Record(event Event) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	rec := types.AuditRecord{
		DateKey:   ts.Format("2006-01-02"),
		EventID:   uuid.New().String(),
		Type:      event.Type,
		CallID:    event.CallID,
		BatchID:   event.BatchID,
		AgentID:   event.AgentID,
		CallerID:  event.CallerID,
		Message:   event.Message,
		Timestamp: ts.Format(time.RFC3339),
	}

	go func() {
		if err := s.store.SaveAuditEvent(rec); err != nil {
			s.logger.Error().Err(err).Str("audit_type", rec.Type).Msg("failed to save audit event")
		}
	}()
}
