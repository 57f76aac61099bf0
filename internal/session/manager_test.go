package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/agents"
	"github.com/LidetuK/captiviteee-sub000/internal/audit"
	"github.com/LidetuK/captiviteee-sub000/internal/filter"
	"github.com/LidetuK/captiviteee-sub000/internal/nlp"
	"github.com/LidetuK/captiviteee-sub000/internal/storage"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

// stubUnderstander returns canned understandings and counts invocations
type stubUnderstander struct {
	calls     int
	reply     string
	intent    string
	sentiment float64
	err       error
}

func (s *stubUnderstander) Understand(ctx context.Context, callerID, sessionID, text string) (nlp.Understanding, error) {
	s.calls++
	if s.err != nil {
		return nlp.Understanding{}, s.err
	}
	sentiment := s.sentiment
	return nlp.Understanding{
		ReplyText: s.reply,
		Intent:    s.intent,
		Sentiment: &sentiment,
	}, nil
}

func newTestManager(t *testing.T, stub *stubUnderstander, agentCfg types.AgentConfig) (*Manager, string) {
	t.Helper()

	registry := agents.NewRegistry(storage.NewMemoryStore(), zerolog.Nop())
	created, err := registry.Create(agentCfg)
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	m := NewManager(registry, filter.NewPipeline(zerolog.Nop()), stub, audit.NopSink{}, time.Second, zerolog.Nop())
	return m, created.ID
}

func TestStartCallUnknownAgent(t *testing.T) {
	registry := agents.NewRegistry(storage.NewMemoryStore(), zerolog.Nop())
	m := NewManager(registry, filter.NewPipeline(zerolog.Nop()), &stubUnderstander{}, audit.NopSink{}, time.Second, zerolog.Nop())

	_, err := m.StartCall("missing", "caller-1")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStartCallOpeningLine(t *testing.T) {
	stub := &stubUnderstander{reply: "ok"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{
		Name:                  "Ava",
		Personality:           types.AgentPersonality{Tone: types.ToneFriendly},
		RecordingDisclosure:   true,
		ComplianceDisclosures: []string{"Calls are handled under our service terms."},
	})

	sess, err := m.StartCall(agentID, "caller-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if sess.Status != types.SessionActive {
		t.Errorf("expected active session, got %s", sess.Status)
	}
	if len(sess.Transcript) != 1 || sess.Transcript[0].Speaker != types.SpeakerAgent {
		t.Fatalf("expected one agent opening entry, got %+v", sess.Transcript)
	}

	opening := sess.Transcript[0].Text
	for _, want := range []string{
		"Hello! This is Ava.",
		"This call may be recorded for quality assurance.",
		"Calls are handled under our service terms.",
		"How can I help you today?",
	} {
		if !strings.Contains(opening, want) {
			t.Errorf("opening missing %q: %q", want, opening)
		}
	}
}

func TestBlockedInputSkipsCollaborator(t *testing.T) {
	stub := &stubUnderstander{reply: "should not appear"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{
		Name: "Ava",
		InputFilters: []types.FilterRule{
			{Type: types.FilterKeyword, Pattern: "ssn", Action: types.ActionBlock},
		},
	})

	sess, _ := m.StartCall(agentID, "caller-1")

	reply, err := m.ProcessInput(context.Background(), sess.ID, "my ssn is 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != blockedReprompt {
		t.Errorf("expected fixed re-prompt, got %q", reply)
	}
	if stub.calls != 0 {
		t.Errorf("collaborator must not be invoked for blocked input, got %d calls", stub.calls)
	}

	got := m.Get(sess.ID)
	if len(got.Transcript) != 1 {
		t.Errorf("blocked input must not add transcript entries, got %d", len(got.Transcript))
	}
}

func TestProcessInputRecordsOriginalText(t *testing.T) {
	stub := &stubUnderstander{reply: "noted", intent: "billing_question", sentiment: 0.5}
	m, agentID := newTestManager(t, stub, types.AgentConfig{
		Name: "Ava",
		InputFilters: []types.FilterRule{
			{Type: types.FilterRegex, Pattern: `\d{3}-\d{4}`, Action: types.ActionReplace, Replacement: "[number]"},
		},
	})

	sess, _ := m.StartCall(agentID, "caller-1")

	reply, err := m.ProcessInput(context.Background(), sess.ID, "my number is 555-1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "noted" {
		t.Errorf("unexpected reply %q", reply)
	}

	got := m.Get(sess.ID)
	if len(got.Transcript) != 3 {
		t.Fatalf("expected opening + caller + agent turns, got %d", len(got.Transcript))
	}

	caller := got.Transcript[1]
	if caller.Speaker != types.SpeakerCaller {
		t.Fatalf("expected caller turn, got %s", caller.Speaker)
	}
	// Audit fidelity: the raw text is kept even though the filtered text
	// was what the collaborator reasoned over.
	if caller.Text != "my number is 555-1234" {
		t.Errorf("expected original text in transcript, got %q", caller.Text)
	}
	if caller.Intent != "billing_question" {
		t.Errorf("expected intent metadata, got %q", caller.Intent)
	}
	if !got.Metrics.IntentRecognized {
		t.Error("expected intentRecognized after intent-bearing turn")
	}
}

func TestMetricsAverageSentiment(t *testing.T) {
	stub := &stubUnderstander{reply: "ok", sentiment: 0.6}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	m.ProcessInput(context.Background(), sess.ID, "hello")
	stub.sentiment = -0.2
	m.ProcessInput(context.Background(), sess.ID, "hmm")

	got := m.Get(sess.ID)
	want := (0.6 + -0.2) / 2
	if diff := got.Metrics.AverageSentiment - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected average sentiment %.2f, got %.2f", want, got.Metrics.AverageSentiment)
	}
	if !got.Metrics.Resolved {
		t.Error("resolved heuristic: last sentiment -0.2 should be unresolved")
	}
}

func TestResolvedHeuristicUsesLastCallerTurn(t *testing.T) {
	stub := &stubUnderstander{reply: "ok", sentiment: -0.5}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	m.ProcessInput(context.Background(), sess.ID, "this is bad")
	stub.sentiment = 0.8
	m.ProcessInput(context.Background(), sess.ID, "oh that fixed it, thanks")

	got := m.Get(sess.ID)
	if !got.Metrics.Resolved {
		t.Error("expected resolved=true when last caller sentiment > threshold")
	}
}

func TestCollaboratorErrorIsSideEffectFree(t *testing.T) {
	stub := &stubUnderstander{err: errors.New("upstream down")}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	_, err := m.ProcessInput(context.Background(), sess.ID, "hello")
	if err == nil {
		t.Fatal("expected error from failing collaborator")
	}

	got := m.Get(sess.ID)
	if len(got.Transcript) != 1 {
		t.Errorf("failed turn must not touch the transcript, got %d entries", len(got.Transcript))
	}
	if got.Status != types.SessionActive {
		t.Errorf("session must stay active after a failed turn, got %s", got.Status)
	}
}

func TestEndCallSetsDurationOnceAndRemovesSession(t *testing.T) {
	stub := &stubUnderstander{reply: "ok"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	record, err := m.EndCall(sess.ID, types.SessionCompleted)
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if record.Status != types.SessionCompleted {
		t.Errorf("expected completed, got %s", record.Status)
	}
	if record.EndTime == nil {
		t.Error("expected end time")
	}
	if record.DurationSecs < 0 {
		t.Errorf("unexpected duration %f", record.DurationSecs)
	}

	if m.Get(sess.ID) != nil {
		t.Error("terminal session must leave the live table")
	}
	if _, err := m.EndCall(sess.ID, types.SessionDropped); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("ending twice must fail with not found, got %v", err)
	}
	if _, err := m.ProcessInput(context.Background(), sess.ID, "hi"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("input after end must fail with not found, got %v", err)
	}
}

func TestEndCallTransferredSetsEscalated(t *testing.T) {
	stub := &stubUnderstander{reply: "ok"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	record, _ := m.EndCall(sess.ID, types.SessionTransferred)
	if !record.Metrics.Escalated {
		t.Error("transferred session must be marked escalated")
	}
}

func TestEndCallRejectsNonTerminalStatus(t *testing.T) {
	stub := &stubUnderstander{reply: "ok"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})
	sess, _ := m.StartCall(agentID, "caller-1")

	if _, err := m.EndCall(sess.ID, types.SessionActive); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOutputFiltering(t *testing.T) {
	stub := &stubUnderstander{reply: "the secret discount code is X"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{
		Name: "Ava",
		OutputFilters: []types.FilterRule{
			{Type: types.FilterKeyword, Pattern: "secret", Action: types.ActionReplace},
		},
	})
	sess, _ := m.StartCall(agentID, "caller-1")

	reply, err := m.ProcessInput(context.Background(), sess.ID, "any discounts?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(reply, "secret") {
		t.Errorf("output filter not applied: %q", reply)
	}
}

func TestListActive(t *testing.T) {
	stub := &stubUnderstander{reply: "ok"}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})

	a, _ := m.StartCall(agentID, "caller-a")
	m.StartCall(agentID, "caller-b")

	if got := m.ActiveCount(); got != 2 {
		t.Errorf("expected 2 active, got %d", got)
	}

	m.EndCall(a.ID, types.SessionCompleted)
	if got := len(m.ListActive()); got != 1 {
		t.Errorf("expected 1 active after end, got %d", got)
	}
}

// recordingEvaluator counts evaluations; safe for concurrent use
type recordingEvaluator struct {
	mu    sync.Mutex
	calls int
}

func (e *recordingEvaluator) EvaluateSession(*types.CallSession) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
}

func TestEvaluatorAndResolverSwapWhileCallsRun(t *testing.T) {
	stub := &stubUnderstander{reply: "ok", sentiment: 0.5}
	m, agentID := newTestManager(t, stub, types.AgentConfig{Name: "Ava"})

	sess, err := m.StartCall(agentID, "caller-1")
	if err != nil {
		t.Fatalf("start call: %v", err)
	}

	ev := &recordingEvaluator{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			m.SetEvaluator(ev)
			m.SetResolver(func(*types.CallSession) bool { return true })
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := m.ProcessInput(context.Background(), sess.ID, "hello"); err != nil {
			t.Fatalf("process input: %v", err)
		}
	}
	<-done

	record, err := m.EndCall(sess.ID, types.SessionCompleted)
	if err != nil {
		t.Fatalf("end call: %v", err)
	}
	if !record.Metrics.Resolved {
		t.Error("expected the swapped-in resolver to mark the session resolved")
	}

	ev.mu.Lock()
	calls := ev.calls
	ev.mu.Unlock()
	if calls == 0 {
		t.Error("expected the swapped-in evaluator to observe the session")
	}
}
