// Package nlp defines the narrow contract to the natural-language
// collaborator. The engine never reimplements understanding; it consumes it
// through Understander and treats failures as failed turns.
package nlp

import "context"

// Understanding is what the collaborator returns for one caller utterance
type Understanding struct {
	ReplyText string            `json:"replyText"`
	Intent    string            `json:"intent,omitempty"`
	Entities  map[string]string `json:"entities,omitempty"`
	Sentiment *float64          `json:"sentiment,omitempty"` // -1..1
}

// Understander is the collaborator interface. Implementations must be safe
// for concurrent use; errors must leave no side effects behind.
type Understander interface {
	Understand(ctx context.Context, callerID, sessionID, text string) (Understanding, error)
}
