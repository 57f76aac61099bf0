// Package batch orchestrates outbound call campaigns: one agent dialing a
// list of callers in waves, with a concurrency ceiling, spacing between
// waves and bounded retries for failed callers.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/audit"
	"github.com/LidetuK/captiviteee-sub000/internal/storage"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// retryPollFloor bounds how tightly the wave loop re-checks a batch whose
// only pending callers are waiting out a retry backoff
const retryPollFloor = 50 * time.Millisecond

// batchState is the live representation of one batch. Results are keyed by
// caller id; cfg.CallerIDs fixes their order for snapshots and persistence.
type batchState struct {
	cfg             *types.BatchCallConfig
	progress        types.BatchProgress
	results         map[string]*types.BatchResult
	cancel          context.CancelFunc
	cancelRequested bool
}

// Snapshot is the externally visible view of a batch
type Snapshot struct {
	Config   types.BatchCallConfig `json:"config"`
	Progress types.BatchProgress   `json:"progress"`
	Results  []types.BatchResult   `json:"results"`
}

// Manager owns all batches and their worker loops. All counter updates
// happen under one lock together with the write-through persist, so a
// reader never observes a result without its progress update.
type Manager struct {
	mu      sync.RWMutex
	batches map[string]*batchState
	agents  *agents.Registry
	calls   CallRunner
	driver  Driver
	store   storage.Store
	sink    audit.Sink
	logger  zerolog.Logger
}

// NewManager creates a batch Manager
func NewManager(registry *agents.Registry, calls CallRunner, driver Driver, store storage.Store, sink audit.Sink, logger zerolog.Logger) *Manager {
	return &Manager{
		batches: make(map[string]*batchState),
		agents:  registry,
		calls:   calls,
		driver:  driver,
		store:   store,
		sink:    sink,
		logger:  logger,
	}
}

// Create registers a new batch in pending status. The agent must exist and
// the caller list must be non-empty; duplicate caller ids collapse to the
// first occurrence.
func (m *Manager) Create(cfg types.BatchCallConfig) (*Snapshot, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: batch name is required", types.ErrValidation)
	}
	callerIDs := dedupeCallerIDs(cfg.CallerIDs)
	if len(callerIDs) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one caller", types.ErrValidation)
	}
	agent, err := m.agents.Get(cfg.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: unknown agent %s", types.ErrValidation, cfg.AgentID)
	}

	cfg.CallerIDs = callerIDs
	if cfg.Schedule.MaxConcurrentCalls <= 0 {
		cfg.Schedule.MaxConcurrentCalls = 1
	}
	if cfg.Priority == "" {
		cfg.Priority = types.PriorityNormal
	}
	cfg.ID = uuid.New().String()
	cfg.Status = types.BatchPending
	cfg.CreatedAt = time.Now()
	cfg.StartedAt = nil
	cfg.CompletedAt = nil

	st := &batchState{
		cfg:      &cfg,
		progress: types.BatchProgress{Total: len(callerIDs), Pending: len(callerIDs)},
		results:  make(map[string]*types.BatchResult, len(callerIDs)),
	}
	for _, cid := range callerIDs {
		st.results[cid] = &types.BatchResult{CallerID: cid, Status: types.ResultPending}
	}

	m.mu.Lock()
	m.batches[cfg.ID] = st
	m.persistLocked(st)
	snap := m.snapshotLocked(st)
	m.mu.Unlock()

	m.logger.Info().
		Str("batch_id", cfg.ID).
		Str("agent_id", cfg.AgentID).
		Int("callers", len(callerIDs)).
		Msg("batch created")

	return snap, nil
}

// dedupeCallerIDs drops empty and repeated ids, keeping first-seen order
func dedupeCallerIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Get returns a snapshot of one batch, or nil if unknown
func (m *Manager) Get(id string) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.batches[id]
	if !ok {
		return nil
	}
	return m.snapshotLocked(st)
}

// Progress returns the counters of one batch, or nil if unknown
func (m *Manager) Progress(id string) *types.BatchProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.batches[id]
	if !ok {
		return nil
	}
	p := st.progress
	return &p
}

// Results returns the per-caller results of one batch in caller order, or
// nil if the batch is unknown
func (m *Manager) Results(id string) []types.BatchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.batches[id]
	if !ok {
		return nil
	}
	return m.snapshotLocked(st).Results
}

// Result returns one caller's result within a batch, or nil if either the
// batch or the caller is unknown
func (m *Manager) Result(id, callerID string) *types.BatchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.batches[id]
	if !ok {
		return nil
	}
	r, ok := st.results[callerID]
	if !ok {
		return nil
	}
	out := *r
	return &out
}

// List returns snapshots of all batches
func (m *Manager) List() []Snapshot {
	return m.Filter("")
}

// Filter returns snapshots of batches in the given status; empty matches all
func (m *Manager) Filter(status types.BatchStatus) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.batches))
	for _, st := range m.batches {
		if status != "" && st.cfg.Status != status {
			continue
		}
		out = append(out, *m.snapshotLocked(st))
	}
	return out
}

// Update replaces the caller list and schedule of a batch that has not
// started yet. Anything past pending is frozen.
func (m *Manager) Update(id string, cfg types.BatchCallConfig) (*Snapshot, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("%w: batch name is required", types.ErrValidation)
	}
	callerIDs := dedupeCallerIDs(cfg.CallerIDs)
	if len(callerIDs) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one caller", types.ErrValidation)
	}
	agent, err := m.agents.Get(cfg.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: unknown agent %s", types.ErrValidation, cfg.AgentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", types.ErrNotFound, id)
	}
	if st.cfg.Status != types.BatchPending {
		return nil, fmt.Errorf("%w: batch %s is %s, only pending batches can change", types.ErrIllegalTransition, id, st.cfg.Status)
	}

	cfg.ID = st.cfg.ID
	cfg.CreatedAt = st.cfg.CreatedAt
	cfg.Status = types.BatchPending
	cfg.CallerIDs = callerIDs
	if cfg.Schedule.MaxConcurrentCalls <= 0 {
		cfg.Schedule.MaxConcurrentCalls = 1
	}
	if cfg.Priority == "" {
		cfg.Priority = types.PriorityNormal
	}

	st.cfg = &cfg
	st.progress = types.BatchProgress{Total: len(callerIDs), Pending: len(callerIDs)}
	st.results = make(map[string]*types.BatchResult, len(callerIDs))
	for _, cid := range callerIDs {
		st.results[cid] = &types.BatchResult{CallerID: cid, Status: types.ResultPending}
	}

	m.persistLocked(st)
	return m.snapshotLocked(st), nil
}

// Delete removes a batch. A running batch must be cancelled first.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[id]
	if !ok {
		return fmt.Errorf("%w: batch %s", types.ErrNotFound, id)
	}
	if st.cfg.Status == types.BatchInProgress {
		return fmt.Errorf("%w: batch %s is running", types.ErrIllegalTransition, id)
	}

	delete(m.batches, id)
	if err := m.store.DeleteBatchState(id); err != nil {
		m.logger.Warn().Err(err).Str("batch_id", id).Msg("batch delete not persisted, durability degraded")
	}
	return nil
}

// Start moves a pending batch to in_progress and launches its worker loop
func (m *Manager) Start(id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", types.ErrNotFound, id)
	}
	if st.cfg.Status != types.BatchPending {
		return nil, fmt.Errorf("%w: batch %s is %s, only pending batches start", types.ErrIllegalTransition, id, st.cfg.Status)
	}

	now := time.Now()
	st.cfg.Status = types.BatchInProgress
	st.cfg.StartedAt = &now

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel

	m.persistLocked(st)
	m.saveActiveLocked()

	m.sink.Record(audit.Event{
		Type:      "batch_started",
		BatchID:   id,
		AgentID:   st.cfg.AgentID,
		Timestamp: now,
	})
	m.logger.Info().Str("batch_id", id).Int("callers", st.progress.Total).Msg("batch started")

	go m.run(ctx, id)
	return m.snapshotLocked(st), nil
}

// Cancel stops a batch. A pending batch cancels immediately; a running
// batch finishes its in-flight wave first, and callers never dialed end up
// with a cancelled result.
func (m *Manager) Cancel(id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", types.ErrNotFound, id)
	}

	switch st.cfg.Status {
	case types.BatchPending:
		m.finalizeLocked(st, types.BatchCancelled, "cancelled before start")
	case types.BatchInProgress:
		st.cancelRequested = true
		if st.cancel != nil {
			st.cancel()
		}
		m.logger.Info().Str("batch_id", id).Msg("batch cancel requested")
	default:
		return nil, fmt.Errorf("%w: batch %s is already %s", types.ErrIllegalTransition, id, st.cfg.Status)
	}

	return m.snapshotLocked(st), nil
}

// run is the wave loop for one batch. It exits by finalizing the batch:
// completed when every caller has a terminal result, cancelled on request,
// failed when the agent disappears mid-run. The ctx is cancelled on Cancel
// only to cut sleeps short; in-flight workers get their own context so the
// current wave always completes.
func (m *Manager) run(ctx context.Context, id string) {
	for {
		m.mu.Lock()
		st, ok := m.batches[id]
		if !ok {
			m.mu.Unlock()
			return
		}

		if st.cancelRequested {
			m.finalizeLocked(st, types.BatchCancelled, "cancelled by operator")
			m.mu.Unlock()
			return
		}

		agent, err := m.agents.Get(st.cfg.AgentID)
		if err != nil || agent == nil {
			m.failRemainingLocked(st, "agent no longer exists")
			m.finalizeLocked(st, types.BatchFailed, "agent no longer exists")
			m.mu.Unlock()
			return
		}

		due, wait, pendingLeft := dueCallersLocked(st)
		if !pendingLeft {
			m.finalizeLocked(st, types.BatchCompleted, "")
			m.mu.Unlock()
			return
		}

		if len(due) == 0 {
			// Every pending caller is waiting out a retry backoff
			m.mu.Unlock()
			if wait < retryPollFloor {
				wait = retryPollFloor
			}
			sleepOrDone(ctx, wait)
			continue
		}

		agentID := st.cfg.AgentID
		spacing := time.Duration(st.cfg.Schedule.CallSpacingSeconds) * time.Second
		now := time.Now()
		for _, cid := range due {
			r := st.results[cid]
			r.Attempts++
			started := now
			r.StartedAt = &started
			r.NextAttemptAt = nil
			st.progress.Pending--
			st.progress.InProgress++
		}
		m.persistLocked(st)
		m.mu.Unlock()

		var wg sync.WaitGroup
		for _, cid := range due {
			wg.Add(1)
			go func(callerID string) {
				defer wg.Done()
				sess, err := m.driver.RunCall(context.Background(), m.calls, agentID, callerID)
				m.completeResult(id, callerID, sess, err)
			}(cid)
		}
		wg.Wait()

		// No spacing after the last wave; the completed transition should
		// not wait out one more interval.
		if spacing > 0 && m.pendingRemaining(id) {
			sleepOrDone(ctx, spacing)
		}
	}
}

// pendingRemaining reports whether any caller of the batch is still pending
func (m *Manager) pendingRemaining(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.batches[id]
	if !ok {
		return false
	}
	for _, r := range st.results {
		if r.Status == types.ResultPending {
			return true
		}
	}
	return false
}

// dueCallersLocked picks the next wave: pending callers in list order whose
// retry backoff, if any, has elapsed, up to the concurrency ceiling. wait is
// the time until the earliest backoff expires when nothing is due yet.
func dueCallersLocked(st *batchState) (due []string, wait time.Duration, pendingLeft bool) {
	now := time.Now()
	var earliest time.Time

	for _, cid := range st.cfg.CallerIDs {
		r := st.results[cid]
		if r.Status != types.ResultPending {
			continue
		}
		pendingLeft = true
		if r.NextAttemptAt != nil && now.Before(*r.NextAttemptAt) {
			if earliest.IsZero() || r.NextAttemptAt.Before(earliest) {
				earliest = *r.NextAttemptAt
			}
			continue
		}
		if len(due) < st.cfg.Schedule.MaxConcurrentCalls {
			due = append(due, cid)
		}
	}

	if len(due) == 0 && !earliest.IsZero() {
		wait = time.Until(earliest)
	}
	return due, wait, pendingLeft
}

// completeResult applies one worker's outcome. The result mutation, the
// progress counters and the write-through persist all happen under the
// lock, so no reader sees one without the others.
func (m *Manager) completeResult(batchID, callerID string, sess *types.CallSession, callErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.batches[batchID]
	if !ok {
		return
	}
	r, ok := st.results[callerID]
	if !ok {
		return
	}

	now := time.Now()
	if sess != nil {
		r.CallID = sess.ID
		r.Metrics = sess.Metrics
	}

	// A dropped call is a failed outcome; completed and transferred both
	// count as success.
	success := callErr == nil && sess != nil && sess.Status != types.SessionDropped
	if success {
		r.Status = types.ResultSuccess
		r.EndedAt = &now
		r.Error = ""
		st.progress.InProgress--
		st.progress.Completed++
		st.progress.Successful++
	} else {
		if callErr != nil {
			r.Error = callErr.Error()
		} else {
			r.Error = "caller dropped"
		}
		if r.Attempts <= st.cfg.Schedule.RetryCount && !st.cancelRequested {
			next := now.Add(time.Duration(st.cfg.Schedule.RetryDelaySeconds) * time.Second)
			r.Status = types.ResultPending
			r.NextAttemptAt = &next
			st.progress.InProgress--
			st.progress.Pending++
			m.logger.Debug().
				Str("batch_id", batchID).
				Str("caller_id", callerID).
				Int("attempts", r.Attempts).
				Msg("caller re-queued for retry")
		} else {
			r.Status = types.ResultFailed
			r.EndedAt = &now
			st.progress.InProgress--
			st.progress.Completed++
			st.progress.Failed++
		}
	}

	m.persistLocked(st)
}

// failRemainingLocked marks every still-pending caller failed with reason
func (m *Manager) failRemainingLocked(st *batchState, reason string) {
	for _, r := range st.results {
		if r.Status != types.ResultPending {
			continue
		}
		r.Status = types.ResultFailed
		r.Error = reason
		st.progress.Pending--
		st.progress.Completed++
		st.progress.Failed++
	}
}

// finalizeLocked moves the batch to a terminal status, marks never-dialed
// callers cancelled when appropriate and updates the active-id registry
func (m *Manager) finalizeLocked(st *batchState, status types.BatchStatus, message string) {
	if status == types.BatchCancelled {
		for _, r := range st.results {
			if r.Status == types.ResultPending {
				r.Status = types.ResultCancelled
			}
		}
	}

	now := time.Now()
	st.cfg.Status = status
	st.cfg.CompletedAt = &now
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}

	m.persistLocked(st)
	m.saveActiveLocked()

	m.sink.Record(audit.Event{
		Type:      "batch_" + string(status),
		BatchID:   st.cfg.ID,
		AgentID:   st.cfg.AgentID,
		Message:   message,
		Timestamp: now,
	})
	m.logger.Info().
		Str("batch_id", st.cfg.ID).
		Str("status", string(status)).
		Int("successful", st.progress.Successful).
		Int("failed", st.progress.Failed).
		Msg("batch finished")
}

// Load populates the manager from the store at startup
func (m *Manager) Load() error {
	records, err := m.store.ListBatchStates()
	if err != nil {
		return fmt.Errorf("failed to load batch states: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		st := recordToState(rec)
		m.batches[st.cfg.ID] = st
	}

	m.logger.Info().Int("batches", len(records)).Msg("batch states loaded")
	return nil
}

// Resume restarts the worker loop of every batch that was in_progress when
// the process last stopped. In-flight counters are folded back into
// pending; attempts already made still count against the retry budget.
func (m *Manager) Resume() error {
	ids, err := m.store.GetActiveBatchIDs()
	if err != nil {
		return fmt.Errorf("failed to load active batch ids: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		st, ok := m.batches[id]
		if !ok || st.cfg.Status != types.BatchInProgress {
			continue
		}

		st.progress.InProgress = 0
		st.progress.Pending = st.progress.Total - st.progress.Completed
		for _, r := range st.results {
			r.NextAttemptAt = nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		st.cancel = cancel
		m.persistLocked(st)

		m.logger.Info().Str("batch_id", id).Msg("batch resumed after restart")
		go m.run(ctx, id)
	}

	m.saveActiveLocked()
	return nil
}

// sleepOrDone waits d or until ctx is cancelled. It reports whether the
// full duration elapsed.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// snapshotLocked builds the external view; results follow caller order
func (m *Manager) snapshotLocked(st *batchState) *Snapshot {
	snap := &Snapshot{
		Config:   *st.cfg,
		Progress: st.progress,
		Results:  make([]types.BatchResult, 0, len(st.results)),
	}
	snap.Config.CallerIDs = append([]string(nil), st.cfg.CallerIDs...)
	for _, cid := range st.cfg.CallerIDs {
		if r, ok := st.results[cid]; ok {
			snap.Results = append(snap.Results, *r)
		}
	}
	return snap
}

// persistLocked writes the whole batch as one record; failures degrade
// durability but never fail the in-memory operation
func (m *Manager) persistLocked(st *batchState) {
	if err := m.store.SaveBatchState(stateToRecord(st)); err != nil {
		m.logger.Warn().Err(err).Str("batch_id", st.cfg.ID).Msg("batch state not persisted, durability degraded")
	}
}

// saveActiveLocked persists the set of running batch ids for resume
func (m *Manager) saveActiveLocked() {
	ids := make([]string, 0)
	for id, st := range m.batches {
		if st.cfg.Status == types.BatchInProgress {
			ids = append(ids, id)
		}
	}
	if err := m.store.SaveActiveBatchIDs(ids); err != nil {
		m.logger.Warn().Err(err).Msg("active batch ids not persisted, resume degraded")
	}
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// stateToRecord flattens a batch into its persisted shape
func stateToRecord(st *batchState) types.BatchStateRecord {
	rec := types.BatchStateRecord{
		BatchID:            st.cfg.ID,
		Name:               st.cfg.Name,
		AgentID:            st.cfg.AgentID,
		CallerIDs:          append([]string(nil), st.cfg.CallerIDs...),
		MaxConcurrentCalls: st.cfg.Schedule.MaxConcurrentCalls,
		CallSpacingSeconds: st.cfg.Schedule.CallSpacingSeconds,
		RetryCount:         st.cfg.Schedule.RetryCount,
		RetryDelaySeconds:  st.cfg.Schedule.RetryDelaySeconds,
		Priority:           string(st.cfg.Priority),
		Status:             string(st.cfg.Status),
		CreatedAt:          st.cfg.CreatedAt.Format(time.RFC3339),
		StartedAt:          formatTimePtr(st.cfg.StartedAt),
		CompletedAt:        formatTimePtr(st.cfg.CompletedAt),
		Total:              st.progress.Total,
		Completed:          st.progress.Completed,
		Successful:         st.progress.Successful,
		Failed:             st.progress.Failed,
		InProgress:         st.progress.InProgress,
		Pending:            st.progress.Pending,
		UpdatedAt:          time.Now().Format(time.RFC3339),
	}

	for _, cid := range st.cfg.CallerIDs {
		r, ok := st.results[cid]
		if !ok {
			continue
		}
		rec.Results = append(rec.Results, types.BatchResultRecord{
			CallerID:         r.CallerID,
			Status:           string(r.Status),
			CallID:           r.CallID,
			StartedAt:        formatTimePtr(r.StartedAt),
			EndedAt:          formatTimePtr(r.EndedAt),
			Attempts:         r.Attempts,
			Error:            r.Error,
			AverageSentiment: r.Metrics.AverageSentiment,
			Escalated:        r.Metrics.Escalated,
			Resolved:         r.Metrics.Resolved,
			IntentRecognized: r.Metrics.IntentRecognized,
		})
	}
	return rec
}

// recordToState rebuilds the live state from its persisted shape
func recordToState(rec types.BatchStateRecord) *batchState {
	createdAt, _ := time.Parse(time.RFC3339, rec.CreatedAt)

	cfg := &types.BatchCallConfig{
		ID:        rec.BatchID,
		Name:      rec.Name,
		AgentID:   rec.AgentID,
		CallerIDs: append([]string(nil), rec.CallerIDs...),
		Schedule: types.BatchSchedule{
			MaxConcurrentCalls: rec.MaxConcurrentCalls,
			CallSpacingSeconds: rec.CallSpacingSeconds,
			RetryCount:         rec.RetryCount,
			RetryDelaySeconds:  rec.RetryDelaySeconds,
		},
		Priority:    types.BatchPriority(rec.Priority),
		Status:      types.BatchStatus(rec.Status),
		CreatedAt:   createdAt,
		StartedAt:   parseTimePtr(rec.StartedAt),
		CompletedAt: parseTimePtr(rec.CompletedAt),
	}

	st := &batchState{
		cfg: cfg,
		progress: types.BatchProgress{
			Total:      rec.Total,
			Completed:  rec.Completed,
			Successful: rec.Successful,
			Failed:     rec.Failed,
			InProgress: rec.InProgress,
			Pending:    rec.Pending,
		},
		results: make(map[string]*types.BatchResult, len(rec.Results)),
	}

	for _, rr := range rec.Results {
		st.results[rr.CallerID] = &types.BatchResult{
			CallerID:  rr.CallerID,
			Status:    types.ResultStatus(rr.Status),
			CallID:    rr.CallID,
			StartedAt: parseTimePtr(rr.StartedAt),
			EndedAt:   parseTimePtr(rr.EndedAt),
			Attempts:  rr.Attempts,
			Error:     rr.Error,
			Metrics: types.CallMetrics{
				AverageSentiment: rr.AverageSentiment,
				Escalated:        rr.Escalated,
				Resolved:         rr.Resolved,
				IntentRecognized: rr.IntentRecognized,
			},
		}
	}
	return st
}
