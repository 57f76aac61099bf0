package types

import "time"

// SessionStatus represents the lifecycle state of a call session.
// The only legal transitions are active -> completed|transferred|dropped;
// once non-active a session is terminal and immutable.
type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionCompleted   SessionStatus = "completed"
	SessionTransferred SessionStatus = "transferred"
	SessionDropped     SessionStatus = "dropped"
)

// Terminal reports whether no further transition is legal from s
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionTransferred || s == SessionDropped
}

// Speaker identifies who produced a transcript turn
type Speaker string

const (
	SpeakerAgent  Speaker = "agent"
	SpeakerCaller Speaker = "caller"
)

// TranscriptEntry is one conversational turn. Entries are append-only and
// slice order is the conversation order.
type TranscriptEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Speaker    Speaker           `json:"speaker"`
	Text       string            `json:"text"`
	Sentiment  *float64          `json:"sentiment,omitempty"` // -1..1
	Intent     string            `json:"intent,omitempty"`
	Entities   map[string]string `json:"entities,omitempty"`
	Flagged    bool              `json:"flagged,omitempty"`
	FlagReason string            `json:"flagReason,omitempty"`
}

// CallMetrics is the rollup recomputed after every caller turn and at call end
type CallMetrics struct {
	AverageSentiment float64 `json:"averageSentiment"`
	Escalated        bool    `json:"escalated"`
	Resolved         bool    `json:"resolved"`
	IntentRecognized bool    `json:"intentRecognized"`
}

// CallSession is one phone interaction from greeting to terminal status.
// DurationSecs is set exactly once, at the terminal transition.
type CallSession struct {
	ID           string            `json:"id"`
	AgentID      string            `json:"agentId"`
	CallerID     string            `json:"callerId"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      *time.Time        `json:"endTime,omitempty"`
	DurationSecs float64           `json:"durationSecs,omitempty"`
	Status       SessionStatus     `json:"status"`
	Transcript   []TranscriptEntry `json:"transcript"`
	Metrics      CallMetrics       `json:"metrics"`
	Notes        []string          `json:"notes,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}
