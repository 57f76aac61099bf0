package types

import "time"

// AgentTone shapes the phrasing of generated agent lines
type AgentTone string

const (
	ToneFriendly     AgentTone = "friendly"
	ToneProfessional AgentTone = "professional"
	ToneCasual       AgentTone = "casual"
)

// AgentPersonality holds the conversational style parameters of a persona
type AgentPersonality struct {
	Tone       AgentTone `json:"tone"`
	Pace       string    `json:"pace,omitempty"`       // "slow" | "normal" | "fast"
	Vocabulary string    `json:"vocabulary,omitempty"` // "simple" | "standard" | "technical"
}

// AgentVoice holds synthesis parameters passed through to the voice layer
type AgentVoice struct {
	VoiceID string  `json:"voiceId,omitempty"`
	Gender  string  `json:"gender,omitempty"`
	Speed   float64 `json:"speed,omitempty"` // 1.0 = normal
}

// AgentCapabilities flags what an agent persona is allowed to do on a call
type AgentCapabilities struct {
	CanTransfer       bool `json:"canTransfer"`
	CanTakeMessages   bool `json:"canTakeMessages"`
	CanSchedule       bool `json:"canSchedule"`
	CanProcessPayment bool `json:"canProcessPayment"`
}

// AgentMetricsFlags controls which per-turn metrics are collected
type AgentMetricsFlags struct {
	TrackSentiment bool `json:"trackSentiment"`
	TrackIntents   bool `json:"trackIntents"`
	TrackEntities  bool `json:"trackEntities"`
}

// AgentConfig describes an automated calling persona. ID and CreatedAt are
// immutable once registered; everything else is replaced on update.
type AgentConfig struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	Voice                 AgentVoice        `json:"voice"`
	Personality           AgentPersonality  `json:"personality"`
	RecordingDisclosure   bool              `json:"recordingDisclosure"`
	ComplianceDisclosures []string          `json:"complianceDisclosures,omitempty"`
	InputFilters          []FilterRule      `json:"inputFilters,omitempty"`
	OutputFilters         []FilterRule      `json:"outputFilters,omitempty"`
	Capabilities          AgentCapabilities `json:"capabilities"`
	Metrics               AgentMetricsFlags `json:"metrics"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}
