package batch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
)

// CallRunner is the slice of the session manager a batch worker needs to
// drive one call from dial to hangup.
type CallRunner interface {
	StartCall(agentID, callerID string) (*types.CallSession, error)
	ProcessInput(ctx context.Context, callID, text string) (string, error)
	EndCall(callID string, status types.SessionStatus) (*types.CallSession, error)
}

// Driver executes one outbound conversation and returns the terminal
// session record. The orchestrator maps the record's status to the
// caller's batch result.
type Driver interface {
	RunCall(ctx context.Context, calls CallRunner, agentID, callerID string) (*types.CallSession, error)
}

// defaultScript is the utterance pool the simulated caller draws from
var defaultScript = []string{
	"Hi, I got a call from this number",
	"I have a question about my bill",
	"Can I schedule an appointment for next week",
	"What are your hours",
	"Yes that works for me",
	"Okay thanks, goodbye",
}

// SimDriver plays the caller side of a conversation with scripted
// utterances. A small fraction of calls hang up early.
type SimDriver struct {
	mu       sync.Mutex
	rng      *rand.Rand
	script   []string
	dropRate float64
}

// NewSimDriver creates a SimDriver with the default script and a time seed
func NewSimDriver() *SimDriver {
	return NewSeededSimDriver(time.Now().UnixNano())
}

// NewSeededSimDriver creates a SimDriver with a fixed seed for
// reproducible runs
func NewSeededSimDriver(seed int64) *SimDriver {
	return &SimDriver{
		rng:      rand.New(rand.NewSource(seed)),
		script:   defaultScript,
		dropRate: 0.1,
	}
}

// RunCall starts a session, plays a few caller turns and hangs up. A
// cancelled context drops the call at the next turn boundary.
func (d *SimDriver) RunCall(ctx context.Context, calls CallRunner, agentID, callerID string) (*types.CallSession, error) {
	sess, err := calls.StartCall(agentID, callerID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	turns := 1 + d.rng.Intn(3)
	dropped := d.rng.Float64() < d.dropRate
	lines := make([]string, 0, turns)
	for i := 0; i < turns; i++ {
		lines = append(lines, d.script[d.rng.Intn(len(d.script))])
	}
	d.mu.Unlock()

	for _, line := range lines {
		if ctx.Err() != nil {
			return calls.EndCall(sess.ID, types.SessionDropped)
		}
		if _, err := calls.ProcessInput(ctx, sess.ID, line); err != nil {
			calls.EndCall(sess.ID, types.SessionDropped)
			return nil, err
		}
	}

	status := types.SessionCompleted
	if dropped {
		status = types.SessionDropped
	}
	return calls.EndCall(sess.ID, status)
}
