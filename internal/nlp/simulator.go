package nlp

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// intentRule maps trigger keywords to an intent and a reply template
type intentRule struct {
	keywords []string
	intent   string
	reply    string
}

var intentRules = []intentRule{
	{[]string{"bill", "invoice", "charge", "payment"}, "billing_question", "I can help with your billing question. Let me pull up the account details."},
	{[]string{"appointment", "schedule", "book", "reschedule"}, "schedule_appointment", "Of course, I can help you schedule that. What time works best for you?"},
	{[]string{"cancel", "close my account", "unsubscribe"}, "cancellation_request", "I understand you want to cancel. Let me see what options are available."},
	{[]string{"manager", "supervisor", "human", "real person"}, "transfer_request", "I understand. Let me connect you with a member of our team."},
	{[]string{"hours", "open", "location", "address"}, "business_info", "Happy to help with that. Our office hours are nine to five, Monday through Friday."},
	{[]string{"yes", "sure", "okay", "sounds good"}, "confirmation", "Great, I've noted that down. Anything else I can help with?"},
	{[]string{"bye", "goodbye", "that's all", "nothing else"}, "goodbye", "Thank you for your time today. Have a great day!"},
}

var positiveWords = []string{"great", "thanks", "thank", "good", "perfect", "wonderful", "appreciate", "helpful", "yes"}

var negativeWords = []string{"angry", "terrible", "awful", "frustrated", "annoyed", "worst", "unacceptable", "ridiculous", "useless", "no"}

// Simulator is a deterministic-enough local stand-in for the understanding
// service so the engine runs end to end without an external collaborator.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewSimulator creates a Simulator seeded from the clock
func NewSimulator(logger zerolog.Logger) *Simulator {
	return NewSeededSimulator(time.Now().UnixNano(), logger)
}

// NewSeededSimulator creates a Simulator with a fixed seed for tests
func NewSeededSimulator(seed int64, logger zerolog.Logger) *Simulator {
	return &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Understand classifies the utterance by keyword lookup and scores
// sentiment from word polarity counts
func (s *Simulator) Understand(ctx context.Context, callerID, sessionID, text string) (Understanding, error) {
	if err := ctx.Err(); err != nil {
		return Understanding{}, err
	}

	lower := strings.ToLower(text)

	u := Understanding{
		ReplyText: "I see. Could you tell me a bit more about that?",
	}

	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				u.Intent = rule.intent
				u.ReplyText = rule.reply
				break
			}
		}
		if u.Intent != "" {
			break
		}
	}

	sentiment := s.scoreSentiment(lower)
	u.Sentiment = &sentiment

	if u.Intent != "" {
		u.Entities = map[string]string{"topic": strings.SplitN(u.Intent, "_", 2)[0]}
	}

	return u, nil
}

// scoreSentiment returns a -1..1 score from polarity word counts with a
// little noise so repeated turns do not produce identical values
func (s *Simulator) scoreSentiment(lower string) float64 {
	score := 0.0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.3
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.3
		}
	}

	s.mu.Lock()
	score += (s.rng.Float64() - 0.5) * 0.1
	s.mu.Unlock()

	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
