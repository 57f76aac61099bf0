package types

// Persisted record shapes for DynamoDB. Timestamps are RFC3339 strings so
// the attributevalue marshalling stays flat and queryable; conversion to and
// from the in-memory domain types lives with the owning component.

// AgentRecord persists one AgentConfig, keyed by AgentID
type AgentRecord struct {
	AgentID               string       `json:"agentId" dynamodbav:"AgentID"` // partition key
	Name                  string       `json:"name" dynamodbav:"Name"`
	Description           string       `json:"description" dynamodbav:"Description"`
	VoiceID               string       `json:"voiceId" dynamodbav:"VoiceID"`
	VoiceGender           string       `json:"voiceGender" dynamodbav:"VoiceGender"`
	VoiceSpeed            float64      `json:"voiceSpeed" dynamodbav:"VoiceSpeed"`
	Tone                  string       `json:"tone" dynamodbav:"Tone"`
	Pace                  string       `json:"pace" dynamodbav:"Pace"`
	Vocabulary            string       `json:"vocabulary" dynamodbav:"Vocabulary"`
	RecordingDisclosure   bool         `json:"recordingDisclosure" dynamodbav:"RecordingDisclosure"`
	ComplianceDisclosures []string     `json:"complianceDisclosures" dynamodbav:"ComplianceDisclosures"`
	InputFilters          []FilterRule `json:"inputFilters" dynamodbav:"InputFilters"`
	OutputFilters         []FilterRule `json:"outputFilters" dynamodbav:"OutputFilters"`
	CanTransfer           bool         `json:"canTransfer" dynamodbav:"CanTransfer"`
	CanTakeMessages       bool         `json:"canTakeMessages" dynamodbav:"CanTakeMessages"`
	CanSchedule           bool         `json:"canSchedule" dynamodbav:"CanSchedule"`
	CanProcessPayment     bool         `json:"canProcessPayment" dynamodbav:"CanProcessPayment"`
	TrackSentiment        bool         `json:"trackSentiment" dynamodbav:"TrackSentiment"`
	TrackIntents          bool         `json:"trackIntents" dynamodbav:"TrackIntents"`
	TrackEntities         bool         `json:"trackEntities" dynamodbav:"TrackEntities"`
	CreatedAt             string       `json:"createdAt" dynamodbav:"CreatedAt"` // RFC3339
	UpdatedAt             string       `json:"updatedAt" dynamodbav:"UpdatedAt"` // RFC3339
}

// BatchResultRecord persists one caller outcome inside a BatchStateRecord
type BatchResultRecord struct {
	CallerID         string  `json:"callerId" dynamodbav:"CallerID"`
	Status           string  `json:"status" dynamodbav:"Status"`
	CallID           string  `json:"callId" dynamodbav:"CallID"`
	StartedAt        string  `json:"startedAt" dynamodbav:"StartedAt"` // RFC3339, empty if not started
	EndedAt          string  `json:"endedAt" dynamodbav:"EndedAt"`     // RFC3339, empty if not ended
	Attempts         int     `json:"attempts" dynamodbav:"Attempts"`
	Error            string  `json:"error" dynamodbav:"Error"`
	AverageSentiment float64 `json:"averageSentiment" dynamodbav:"AverageSentiment"`
	Escalated        bool    `json:"escalated" dynamodbav:"Escalated"`
	Resolved         bool    `json:"resolved" dynamodbav:"Resolved"`
	IntentRecognized bool    `json:"intentRecognized" dynamodbav:"IntentRecognized"`
}

// BatchStateRecord persists a batch config together with its progress
// counters and result map as one item, keyed by BatchID. Writing config,
// progress and results as a single item is what makes the Result-then-
// Progress write atomic from the store's perspective.
type BatchStateRecord struct {
	BatchID            string              `json:"batchId" dynamodbav:"BatchID"` // partition key
	Name               string              `json:"name" dynamodbav:"Name"`
	AgentID            string              `json:"agentId" dynamodbav:"AgentID"`
	CallerIDs          []string            `json:"callerIds" dynamodbav:"CallerIDs"`
	MaxConcurrentCalls int                 `json:"maxConcurrentCalls" dynamodbav:"MaxConcurrentCalls"`
	CallSpacingSeconds int                 `json:"callSpacingSeconds" dynamodbav:"CallSpacingSeconds"`
	RetryCount         int                 `json:"retryCount" dynamodbav:"RetryCount"`
	RetryDelaySeconds  int                 `json:"retryDelaySeconds" dynamodbav:"RetryDelaySeconds"`
	Priority           string              `json:"priority" dynamodbav:"Priority"`
	Status             string              `json:"status" dynamodbav:"Status"`
	CreatedAt          string              `json:"createdAt" dynamodbav:"CreatedAt"`     // RFC3339
	StartedAt          string              `json:"startedAt" dynamodbav:"StartedAt"`     // RFC3339, empty if never started
	CompletedAt        string              `json:"completedAt" dynamodbav:"CompletedAt"` // RFC3339, empty if not terminal
	Total              int                 `json:"total" dynamodbav:"Total"`
	Completed          int                 `json:"completed" dynamodbav:"Completed"`
	Successful         int                 `json:"successful" dynamodbav:"Successful"`
	Failed             int                 `json:"failed" dynamodbav:"Failed"`
	InProgress         int                 `json:"inProgress" dynamodbav:"InProgress"`
	Pending            int                 `json:"pending" dynamodbav:"Pending"`
	Results            []BatchResultRecord `json:"results" dynamodbav:"Results"`
	UpdatedAt          string              `json:"updatedAt" dynamodbav:"UpdatedAt"` // RFC3339
}

// AuditRecord persists one fire-and-forget audit event
type AuditRecord struct {
	DateKey   string `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	EventID   string `json:"eventId" dynamodbav:"EventID"` // sort key
	Type      string `json:"type" dynamodbav:"Type"`
	CallID    string `json:"callId" dynamodbav:"CallID"`
	BatchID   string `json:"batchId" dynamodbav:"BatchID"`
	AgentID   string `json:"agentId" dynamodbav:"AgentID"`
	CallerID  string `json:"callerId" dynamodbav:"CallerID"`
	Message   string `json:"message" dynamodbav:"Message"`
	Timestamp string `json:"timestamp" dynamodbav:"Timestamp"` // RFC3339
}
