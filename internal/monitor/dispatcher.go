package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

// Notifier receives alert deliveries. Immediate alerts arrive one at a
// time; batched alerts arrive as the queue accumulated over a window;
// summaries arrive as a single digest line.
type Notifier interface {
	NotifyAlerts(alerts []types.CallAlert)
	NotifySummary(text string)
}

// LogNotifier writes deliveries to the log. It is the fallback when no
// websocket hub is wired in.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) NotifyAlerts(alerts []types.CallAlert) {
	for _, a := range alerts {
		n.Logger.Warn().
			Str("alert_id", a.ID).
			Str("call_id", a.CallID).
			Str("type", string(a.Type)).
			Str("severity", string(a.Severity)).
			Str("message", a.Message).
			Msg("alert")
	}
}

func (n LogNotifier) NotifySummary(text string) {
	n.Logger.Warn().Msg(text)
}

// Dispatcher routes raised alerts to a Notifier according to the raising
// config's frequency. Immediate alerts go out synchronously; batched and
// summary alerts accumulate until the window ticker flushes them.
type Dispatcher struct {
	mu       sync.Mutex
	queued   []types.CallAlert
	summary  map[types.AlertSeverity]int
	notifier Notifier
	window   time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher flushing on the given window
func NewDispatcher(notifier Notifier, window time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		summary:  make(map[types.AlertSeverity]int),
		notifier: notifier,
		window:   window,
		logger:   logger,
	}
}

// Dispatch routes one alert. Immediate delivery happens before return.
func (d *Dispatcher) Dispatch(alert types.CallAlert, freq types.AlertFrequency) {
	switch freq {
	case types.FrequencyBatched:
		d.mu.Lock()
		d.queued = append(d.queued, alert)
		d.mu.Unlock()
	case types.FrequencySummary:
		d.mu.Lock()
		d.summary[alert.Severity]++
		d.mu.Unlock()
	default:
		d.notifier.NotifyAlerts([]types.CallAlert{alert})
	}
}

// Run flushes the batched queue and the summary counts every window until
// ctx is cancelled. A final flush happens on shutdown so nothing queued is
// lost.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.window)
	defer ticker.Stop()

	d.logger.Info().Dur("window", d.window).Msg("alert dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.Flush()
			d.logger.Info().Msg("alert dispatcher stopped")
			return
		case <-ticker.C:
			d.Flush()
		}
	}
}

// Flush delivers everything accumulated since the last window
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	queued := d.queued
	d.queued = nil
	summary := d.summary
	d.summary = make(map[types.AlertSeverity]int)
	d.mu.Unlock()

	if len(queued) > 0 {
		d.notifier.NotifyAlerts(queued)
	}
	if len(summary) > 0 {
		d.notifier.NotifySummary(fmt.Sprintf(
			"alert summary: %d high, %d medium, %d low",
			summary[types.SeverityHigh], summary[types.SeverityMedium], summary[types.SeverityLow]))
	}
}
