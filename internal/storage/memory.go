package storage

import (
	"sync"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
)

// MemoryStore is an in-memory Store used when DynamoDB is disabled and as
// the fake in tests. Records are stored by value so callers cannot mutate
// stored state through retained pointers.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]types.AgentRecord
	batches  map[string]types.BatchStateRecord
	activeID []string
	audit    []types.AuditRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:  make(map[string]types.AgentRecord),
		batches: make(map[string]types.BatchStateRecord),
	}
}

func (s *MemoryStore) SaveAgent(rec types.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[rec.AgentID] = rec
	return nil
}

func (s *MemoryStore) GetAgent(id string) (*types.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.agents[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) ListAgents() ([]types.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]types.AgentRecord, 0, len(s.agents))
	for _, rec := range s.agents {
		records = append(records, rec)
	}
	return records, nil
}

func (s *MemoryStore) DeleteAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
	return nil
}

func (s *MemoryStore) SaveBatchState(rec types.BatchStateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[rec.BatchID] = rec
	return nil
}

func (s *MemoryStore) GetBatchState(id string) (*types.BatchStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) ListBatchStates() ([]types.BatchStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]types.BatchStateRecord, 0, len(s.batches))
	for _, rec := range s.batches {
		records = append(records, rec)
	}
	return records, nil
}

func (s *MemoryStore) DeleteBatchState(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, id)
	return nil
}

func (s *MemoryStore) SaveActiveBatchIDs(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = append([]string(nil), ids...)
	return nil
}

func (s *MemoryStore) GetActiveBatchIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.activeID...), nil
}

func (s *MemoryStore) SaveAuditEvent(rec types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

// AuditEvents returns a copy of the recorded audit trail (test helper)
func (s *MemoryStore) AuditEvents() []types.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.AuditRecord(nil), s.audit...)
}

func (s *MemoryStore) TruncateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make(map[string]types.AgentRecord)
	s.batches = make(map[string]types.BatchStateRecord)
	s.activeID = nil
	s.audit = nil
	return nil
}
