package types

import "time"

// BatchStatus represents the lifecycle state of a batch call job.
// Legal transitions: pending -> in_progress -> {completed, failed},
// {pending, in_progress} -> cancelled.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

// Terminal reports whether no further transition is legal from s
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCancelled
}

// BatchPriority orders batches for operators; the scheduler itself treats
// batches as independent.
type BatchPriority string

const (
	PriorityLow    BatchPriority = "low"
	PriorityNormal BatchPriority = "normal"
	PriorityHigh   BatchPriority = "high"
)

// BatchSchedule holds the scheduling knobs for one batch
type BatchSchedule struct {
	MaxConcurrentCalls int `json:"maxConcurrentCalls"` // hard ceiling, default 1
	CallSpacingSeconds int `json:"callSpacingSeconds"` // delay between waves
	RetryCount         int `json:"retryCount"`         // extra attempts per failed caller
	RetryDelaySeconds  int `json:"retryDelaySeconds"`  // backoff before a retry attempt
}

// BatchCallConfig is a named unit of work: one agent, many callers.
// Caller list and schedule are frozen once status leaves pending.
type BatchCallConfig struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	AgentID     string        `json:"agentId"`
	CallerIDs   []string      `json:"callerIds"`
	Schedule    BatchSchedule `json:"schedule"`
	Priority    BatchPriority `json:"priority"`
	Status      BatchStatus   `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// BatchProgress holds the derived counters for one batch. After every
// update: Completed == Successful+Failed and Pending+InProgress+Completed == Total.
type BatchProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	InProgress int `json:"inProgress"`
	Pending    int `json:"pending"`
}

// ResultStatus is the outcome state of a single caller within a batch
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultSuccess   ResultStatus = "success"
	ResultFailed    ResultStatus = "failed"
	ResultCancelled ResultStatus = "cancelled"
)

// BatchResult is the per-caller outcome record. It is created pending when
// the batch is created and mutated only by the worker processing that caller.
type BatchResult struct {
	CallerID      string       `json:"callerId"`
	Status        ResultStatus `json:"status"`
	CallID        string       `json:"callId,omitempty"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	EndedAt       *time.Time   `json:"endedAt,omitempty"`
	Attempts      int          `json:"attempts"`
	Error         string       `json:"error,omitempty"`
	Metrics       CallMetrics  `json:"metrics"`
	NextAttemptAt *time.Time   `json:"nextAttemptAt,omitempty"` // set while a retry is waiting out its backoff
}
