package storage

import "github.com/LidetuK/captiviteee-sub000/internal/types"

// Store is the persistence interface injected into the engine. Everything
// behind it must survive a process restart: agent configs, batch state
// (config + progress + results as one unit), the active-batch-id registry
// that drives resume-on-restart, and the audit trail.
type Store interface {
	SaveAgent(rec types.AgentRecord) error
	GetAgent(id string) (*types.AgentRecord, error)
	ListAgents() ([]types.AgentRecord, error)
	DeleteAgent(id string) error

	SaveBatchState(rec types.BatchStateRecord) error
	GetBatchState(id string) (*types.BatchStateRecord, error)
	ListBatchStates() ([]types.BatchStateRecord, error)
	DeleteBatchState(id string) error

	SaveActiveBatchIDs(ids []string) error
	GetActiveBatchIDs() ([]string, error)

	SaveAuditEvent(rec types.AuditRecord) error

	TruncateAll() error
}
