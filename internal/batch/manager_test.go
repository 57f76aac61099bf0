package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/audit"
	"github.com/LidetuK/captiviteee-sub000/internal/storage"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

// stubDriver returns canned outcomes and tracks dial order and concurrency.
// When release is set, every call blocks until a token arrives, which lets
// tests hold a wave in flight.
type stubDriver struct {
	mu         sync.Mutex
	dials      []string
	attempts   map[string]int
	running    int
	maxRunning int
	release    chan struct{}
	failFirst  map[string]int // fail the first N attempts for a caller
}

func newStubDriver() *stubDriver {
	return &stubDriver{
		attempts:  make(map[string]int),
		failFirst: make(map[string]int),
	}
}

func (d *stubDriver) RunCall(ctx context.Context, _ CallRunner, agentID, callerID string) (*types.CallSession, error) {
	d.mu.Lock()
	d.dials = append(d.dials, callerID)
	d.attempts[callerID]++
	attempt := d.attempts[callerID]
	d.running++
	if d.running > d.maxRunning {
		d.maxRunning = d.running
	}
	release := d.release
	failN := d.failFirst[callerID]
	d.mu.Unlock()

	if release != nil {
		<-release
	}

	d.mu.Lock()
	d.running--
	d.mu.Unlock()

	if attempt <= failN {
		return nil, errors.New("no answer")
	}
	return &types.CallSession{
		ID:      "call-" + callerID,
		Status:  types.SessionCompleted,
		Metrics: types.CallMetrics{AverageSentiment: 0.4, Resolved: true},
	}, nil
}

func (d *stubDriver) currentRunning() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *stubDriver) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

func newTestManager(t *testing.T, d Driver) (*Manager, *agents.Registry, string, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	registry := agents.NewRegistry(store, zerolog.Nop())
	agent, err := registry.Create(types.AgentConfig{Name: "Ava"})
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	m := NewManager(registry, nil, d, store, audit.NopSink{}, zerolog.Nop())
	return m, registry, agent.ID, store
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// checkInvariants asserts the progress counter identities
func checkInvariants(t *testing.T, snap *Snapshot) {
	t.Helper()
	p := snap.Progress
	if p.Completed != p.Successful+p.Failed {
		t.Errorf("completed=%d != successful=%d + failed=%d", p.Completed, p.Successful, p.Failed)
	}
	if p.Pending+p.InProgress+p.Completed != p.Total {
		t.Errorf("pending=%d + inProgress=%d + completed=%d != total=%d", p.Pending, p.InProgress, p.Completed, p.Total)
	}
}

func TestCreateValidation(t *testing.T) {
	m, _, agentID, _ := newTestManager(t, newStubDriver())

	if _, err := m.Create(types.BatchCallConfig{AgentID: agentID, CallerIDs: []string{"a"}}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := m.Create(types.BatchCallConfig{Name: "b", AgentID: agentID}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for empty callers, got %v", err)
	}
	if _, err := m.Create(types.BatchCallConfig{Name: "b", AgentID: "missing", CallerIDs: []string{"a"}}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for unknown agent, got %v", err)
	}

	snap, err := m.Create(types.BatchCallConfig{
		Name:      "b",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b", "a", ""},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if snap.Config.Status != types.BatchPending {
		t.Errorf("expected pending, got %s", snap.Config.Status)
	}
	if snap.Config.Schedule.MaxConcurrentCalls != 1 {
		t.Errorf("expected default concurrency 1, got %d", snap.Config.Schedule.MaxConcurrentCalls)
	}
	if len(snap.Config.CallerIDs) != 2 {
		t.Errorf("expected deduped callers, got %v", snap.Config.CallerIDs)
	}
	if snap.Progress.Total != 2 || snap.Progress.Pending != 2 {
		t.Errorf("unexpected initial progress %+v", snap.Progress)
	}
	for _, r := range snap.Results {
		if r.Status != types.ResultPending {
			t.Errorf("expected pending result for %s, got %s", r.CallerID, r.Status)
		}
	}
	checkInvariants(t, snap)
}

func TestWavesRespectConcurrencyCeiling(t *testing.T) {
	driver := newStubDriver()
	driver.release = make(chan struct{})
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "waves",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b", "c"},
		Schedule:  types.BatchSchedule{MaxConcurrentCalls: 2},
	})
	if _, err := m.Start(snap.Config.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// First wave holds exactly two callers in flight
	waitFor(t, "first wave in flight", func() bool { return driver.currentRunning() == 2 })
	dialed := driver.dialed()
	if len(dialed) != 2 {
		t.Fatalf("expected 2 dials in the first wave, got %v", dialed)
	}
	got := map[string]bool{dialed[0]: true, dialed[1]: true}
	if !got["a"] || !got["b"] {
		t.Errorf("first wave must dial the first two callers, got %v", dialed)
	}

	mid := m.Get(snap.Config.ID)
	if mid.Progress.InProgress != 2 || mid.Progress.Pending != 1 {
		t.Errorf("unexpected mid-wave progress %+v", mid.Progress)
	}
	checkInvariants(t, mid)

	driver.release <- struct{}{}
	driver.release <- struct{}{}

	waitFor(t, "second wave in flight", func() bool { return driver.currentRunning() == 1 })
	driver.release <- struct{}{}

	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})

	final := m.Get(snap.Config.ID)
	if driver.maxRunning > 2 {
		t.Errorf("concurrency ceiling exceeded: %d", driver.maxRunning)
	}
	if final.Progress.Successful != 3 || final.Progress.Completed != 3 {
		t.Errorf("unexpected final progress %+v", final.Progress)
	}
	if final.Config.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
	checkInvariants(t, final)
}

func TestNoSpacingDelayAfterFinalWave(t *testing.T) {
	m, _, agentID, _ := newTestManager(t, newStubDriver())

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "spaced",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b"},
		Schedule:  types.BatchSchedule{MaxConcurrentCalls: 2, CallSpacingSeconds: 30},
	})

	start := time.Now()
	if _, err := m.Start(snap.Config.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// One wave covers every caller, so completion must not wait out the
	// spacing interval.
	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})
	if elapsed := time.Since(start); elapsed >= 30*time.Second {
		t.Errorf("completion waited out the spacing interval: %s", elapsed)
	}
	checkInvariants(t, m.Get(snap.Config.ID))
}

func TestFailedCallerCountsAsFailed(t *testing.T) {
	driver := newStubDriver()
	driver.failFirst["b"] = 1
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "mixed",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b", "c"},
		Schedule:  types.BatchSchedule{MaxConcurrentCalls: 3},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})

	final := m.Get(snap.Config.ID)
	if final.Progress.Successful != 2 || final.Progress.Failed != 1 {
		t.Errorf("unexpected progress %+v", final.Progress)
	}
	for _, r := range final.Results {
		if r.CallerID == "b" {
			if r.Status != types.ResultFailed || r.Error != "no answer" {
				t.Errorf("unexpected result for b: %+v", r)
			}
		} else if r.Status != types.ResultSuccess {
			t.Errorf("unexpected result for %s: %+v", r.CallerID, r)
		}
	}
	checkInvariants(t, final)
}

func TestRetryRequeuesFailedCaller(t *testing.T) {
	driver := newStubDriver()
	driver.failFirst["b"] = 1
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "retry",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b"},
		Schedule:  types.BatchSchedule{MaxConcurrentCalls: 2, RetryCount: 1},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})

	final := m.Get(snap.Config.ID)
	if final.Progress.Successful != 2 || final.Progress.Failed != 0 {
		t.Errorf("expected retry to recover the failure, got %+v", final.Progress)
	}
	for _, r := range final.Results {
		if r.CallerID == "b" && r.Attempts != 2 {
			t.Errorf("expected 2 attempts for b, got %d", r.Attempts)
		}
	}
	checkInvariants(t, final)
}

func TestRetryBudgetExhausts(t *testing.T) {
	driver := newStubDriver()
	driver.failFirst["a"] = 10
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "exhaust",
		AgentID:   agentID,
		CallerIDs: []string{"a"},
		Schedule:  types.BatchSchedule{RetryCount: 2},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})

	final := m.Get(snap.Config.ID)
	if final.Results[0].Status != types.ResultFailed {
		t.Errorf("expected failed result, got %s", final.Results[0].Status)
	}
	if final.Results[0].Attempts != 3 {
		t.Errorf("expected 1 try + 2 retries, got %d attempts", final.Results[0].Attempts)
	}
	checkInvariants(t, final)
}

func TestCancelMidRunFinishesInFlightWave(t *testing.T) {
	driver := newStubDriver()
	driver.release = make(chan struct{})
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name:      "cancel",
		AgentID:   agentID,
		CallerIDs: []string{"a", "b", "c", "d"},
		Schedule:  types.BatchSchedule{MaxConcurrentCalls: 2},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "first wave in flight", func() bool { return driver.currentRunning() == 2 })

	if _, err := m.Cancel(snap.Config.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// In-flight callers run to completion
	driver.release <- struct{}{}
	driver.release <- struct{}{}

	waitFor(t, "batch cancelled", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCancelled
	})

	final := m.Get(snap.Config.ID)
	if final.Progress.Completed != 2 || final.Progress.Successful != 2 {
		t.Errorf("expected the in-flight wave to complete, got %+v", final.Progress)
	}
	cancelled := 0
	for _, r := range final.Results {
		if r.Status == types.ResultCancelled {
			cancelled++
		}
	}
	if cancelled != 2 {
		t.Errorf("expected 2 cancelled results, got %d", cancelled)
	}
	if got := driver.dialed(); len(got) != 2 {
		t.Errorf("callers past the cancel must never be dialed, got %v", got)
	}
	checkInvariants(t, final)
}

func TestCancelPendingBatch(t *testing.T) {
	m, _, agentID, _ := newTestManager(t, newStubDriver())

	snap, _ := m.Create(types.BatchCallConfig{
		Name: "never started", AgentID: agentID, CallerIDs: []string{"a"},
	})

	got, err := m.Cancel(snap.Config.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got.Config.Status != types.BatchCancelled {
		t.Errorf("expected cancelled, got %s", got.Config.Status)
	}
	if got.Results[0].Status != types.ResultCancelled {
		t.Errorf("expected cancelled result, got %s", got.Results[0].Status)
	}
	checkInvariants(t, got)
}

func TestIllegalTransitions(t *testing.T) {
	driver := newStubDriver()
	driver.release = make(chan struct{})
	m, _, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name: "transitions", AgentID: agentID, CallerIDs: []string{"a"},
	})
	id := snap.Config.ID

	m.Start(id)
	waitFor(t, "call in flight", func() bool { return driver.currentRunning() == 1 })

	if _, err := m.Start(id); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("starting a running batch: expected illegal transition, got %v", err)
	}
	if _, err := m.Update(id, types.BatchCallConfig{Name: "x", AgentID: agentID, CallerIDs: []string{"b"}}); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("updating a running batch: expected illegal transition, got %v", err)
	}
	if err := m.Delete(id); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("deleting a running batch: expected illegal transition, got %v", err)
	}

	driver.release <- struct{}{}
	waitFor(t, "batch completed", func() bool {
		return m.Get(id).Config.Status == types.BatchCompleted
	})

	if _, err := m.Cancel(id); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("cancelling a completed batch: expected illegal transition, got %v", err)
	}
	if _, err := m.Start(id); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("restarting a completed batch: expected illegal transition, got %v", err)
	}
}

func TestAgentDeletedMidRunFailsBatch(t *testing.T) {
	driver := newStubDriver()
	driver.release = make(chan struct{})
	m, registry, agentID, _ := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name: "orphaned", AgentID: agentID, CallerIDs: []string{"a", "b"},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "first call in flight", func() bool { return driver.currentRunning() == 1 })
	if err := registry.Delete(agentID); err != nil {
		t.Fatalf("agent delete failed: %v", err)
	}
	driver.release <- struct{}{}

	waitFor(t, "batch failed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchFailed
	})

	final := m.Get(snap.Config.ID)
	for _, r := range final.Results {
		if r.CallerID == "b" && r.Status != types.ResultFailed {
			t.Errorf("undialed caller must fail when the agent is gone, got %s", r.Status)
		}
	}
	checkInvariants(t, final)
}

func TestStatePersistsAcrossManagers(t *testing.T) {
	driver := newStubDriver()
	m, _, agentID, store := newTestManager(t, driver)

	snap, _ := m.Create(types.BatchCallConfig{
		Name: "durable", AgentID: agentID, CallerIDs: []string{"a", "b"},
		Schedule: types.BatchSchedule{MaxConcurrentCalls: 2},
	})
	m.Start(snap.Config.ID)

	waitFor(t, "batch completed", func() bool {
		return m.Get(snap.Config.ID).Config.Status == types.BatchCompleted
	})

	fresh := NewManager(agents.NewRegistry(store, zerolog.Nop()), nil, driver, store, audit.NopSink{}, zerolog.Nop())
	if err := fresh.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	got := fresh.Get(snap.Config.ID)
	if got == nil {
		t.Fatal("expected batch after reload")
	}
	if got.Config.Status != types.BatchCompleted {
		t.Errorf("expected completed after reload, got %s", got.Config.Status)
	}
	if got.Progress.Successful != 2 {
		t.Errorf("counters lost in round-trip: %+v", got.Progress)
	}
	if len(got.Results) != 2 || got.Results[0].CallerID != "a" {
		t.Errorf("results lost in round-trip: %+v", got.Results)
	}
	checkInvariants(t, got)
}

func TestResumeRestartsInterruptedBatch(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := agents.NewRegistry(store, zerolog.Nop())
	agent, _ := registry.Create(types.AgentConfig{Name: "Ava"})

	// Store state as a crashed process would leave it: one caller done, one
	// mid-flight, one never dialed.
	now := time.Now()
	interrupted := &batchState{
		cfg: &types.BatchCallConfig{
			ID: "batch-1", Name: "interrupted", AgentID: agent.ID,
			CallerIDs: []string{"x", "y", "z"},
			Schedule:  types.BatchSchedule{MaxConcurrentCalls: 2},
			Priority:  types.PriorityNormal,
			Status:    types.BatchInProgress,
			CreatedAt: now, StartedAt: &now,
		},
		progress: types.BatchProgress{Total: 3, Completed: 1, Successful: 1, InProgress: 1, Pending: 1},
		results: map[string]*types.BatchResult{
			"x": {CallerID: "x", Status: types.ResultSuccess, Attempts: 1},
			"y": {CallerID: "y", Status: types.ResultPending, Attempts: 1},
			"z": {CallerID: "z", Status: types.ResultPending},
		},
	}
	if err := store.SaveBatchState(stateToRecord(interrupted)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store.SaveActiveBatchIDs([]string{"batch-1"})

	driver := newStubDriver()
	m := NewManager(registry, nil, driver, store, audit.NopSink{}, zerolog.Nop())
	if err := m.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	waitFor(t, "batch completed", func() bool {
		return m.Get("batch-1").Config.Status == types.BatchCompleted
	})

	final := m.Get("batch-1")
	if final.Progress.Successful != 3 || final.Progress.Completed != 3 {
		t.Errorf("unexpected progress after resume %+v", final.Progress)
	}
	dialed := driver.dialed()
	for _, cid := range dialed {
		if cid == "x" {
			t.Error("already-finished caller must not be redialed")
		}
	}
	checkInvariants(t, final)
}

func TestUpdatePendingReconcilesResults(t *testing.T) {
	m, _, agentID, _ := newTestManager(t, newStubDriver())

	snap, _ := m.Create(types.BatchCallConfig{
		Name: "edit me", AgentID: agentID, CallerIDs: []string{"a", "b"},
	})

	updated, err := m.Update(snap.Config.ID, types.BatchCallConfig{
		Name: "edited", AgentID: agentID, CallerIDs: []string{"c", "d", "e"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Progress.Total != 3 || updated.Progress.Pending != 3 {
		t.Errorf("progress not reconciled: %+v", updated.Progress)
	}
	if len(updated.Results) != 3 || updated.Results[0].CallerID != "c" {
		t.Errorf("results not reconciled: %+v", updated.Results)
	}
	checkInvariants(t, updated)
}
