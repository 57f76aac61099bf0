package types

import "time"

// AlertType identifies which monitor rule raised an alert
type AlertType string

const (
	AlertNegativeSentiment AlertType = "negative_sentiment"
	AlertLongDuration      AlertType = "long_duration"
	AlertEscalationKeyword AlertType = "escalation_keyword"
)

// AlertSeverity ranks alerts for display and routing
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// AlertStatus represents the alert lifecycle: new -> acknowledged -> resolved,
// or new -> ignored. Resolving removes the alert from the active set.
type AlertStatus string

const (
	AlertNew          AlertStatus = "new"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertIgnored      AlertStatus = "ignored"
)

// CallAlert is one alert raised by the monitor against a call session
type CallAlert struct {
	ID             string        `json:"id"`
	CallID         string        `json:"callId"`
	AgentID        string        `json:"agentId"`
	CallerID       string        `json:"callerId"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	Status         AlertStatus   `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	AcknowledgedBy string        `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	ResolvedBy     string        `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty"`
}

// AlertFrequency selects the delivery policy for a monitor config
type AlertFrequency string

const (
	FrequencyImmediate AlertFrequency = "immediate" // dispatched before the triggering call returns
	FrequencyBatched   AlertFrequency = "batched"   // queued, flushed on a window ticker
	FrequencySummary   AlertFrequency = "summary"   // one digest per window
)

// MonitorConfig holds the thresholds one monitor evaluates sessions against
type MonitorConfig struct {
	ID                         string         `json:"id"`
	Name                       string         `json:"name"`
	NegativeSentimentThreshold float64        `json:"negativeSentimentThreshold"` // alert when avg sentiment < this
	LongDurationSecs           float64        `json:"longDurationSecs"`           // alert when duration > this
	EscalationKeywords         []string       `json:"escalationKeywords,omitempty"`
	Frequency                  AlertFrequency `json:"frequency"`
	Enabled                    bool           `json:"enabled"`
	CreatedAt                  time.Time      `json:"createdAt"`
	UpdatedAt                  time.Time      `json:"updatedAt"`
}
