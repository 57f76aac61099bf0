// Package aggregator periodically rolls the engine's live state into one
// dashboard frame and broadcasts it over the websocket hub.
package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LidetuK/captiviteee-sub000/internal/batch"
	"github.com/LidetuK/captiviteee-sub000/internal/types"
	"github.com/rs/zerolog"
)

// SessionSource exposes the live call sessions
type SessionSource interface {
	ListActive() []types.CallSession
}

// BatchSource exposes the batch snapshots
type BatchSource interface {
	List() []batch.Snapshot
}

// AlertSource exposes the active alerts
type AlertSource interface {
	ActiveAlerts() []types.CallAlert
}

// Broadcaster fans a frame out to every connected dashboard
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// BatchOverview is the per-batch slice of a frame; results stay behind the
// REST API to keep frames small
type BatchOverview struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Status   types.BatchStatus   `json:"status"`
	Progress types.BatchProgress `json:"progress"`
}

// Frame is one dashboard update
type Frame struct {
	Type        string              `json:"type"`
	Timestamp   time.Time           `json:"timestamp"`
	ActiveCalls []types.CallSession `json:"activeCalls"`
	Batches     []BatchOverview     `json:"batches"`
	Alerts      []types.CallAlert   `json:"alerts"`
}

// Aggregator builds frames on a fixed tick and pushes them to the hub
type Aggregator struct {
	sessions SessionSource
	batches  BatchSource
	alerts   AlertSource
	hub      Broadcaster
	interval time.Duration
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator broadcasting every interval
func NewAggregator(sessions SessionSource, batches BatchSource, alerts AlertSource, hub Broadcaster, interval time.Duration, logger zerolog.Logger) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		sessions: sessions,
		batches:  batches,
		alerts:   alerts,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Start begins building and broadcasting frames until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			if a.hub.ClientCount() == 0 {
				continue
			}

			frame := a.BuildFrame()
			data, err := json.Marshal(frame)
			if err != nil {
				a.logger.Error().Err(err).Msg("failed to marshal frame")
				continue
			}

			a.hub.Broadcast(data)

			a.logger.Debug().
				Int("active_calls", len(frame.ActiveCalls)).
				Int("batches", len(frame.Batches)).
				Int("alerts", len(frame.Alerts)).
				Int("clients", a.hub.ClientCount()).
				Msg("frame broadcasted")
		}
	}
}

// BuildFrame assembles one snapshot of the engine's live state
func (a *Aggregator) BuildFrame() Frame {
	snapshots := a.batches.List()
	overviews := make([]BatchOverview, 0, len(snapshots))
	for _, snap := range snapshots {
		overviews = append(overviews, BatchOverview{
			ID:       snap.Config.ID,
			Name:     snap.Config.Name,
			Status:   snap.Config.Status,
			Progress: snap.Progress,
		})
	}

	return Frame{
		Type:        "snapshot",
		Timestamp:   time.Now(),
		ActiveCalls: a.sessions.ListActive(),
		Batches:     overviews,
		Alerts:      a.alerts.ActiveAlerts(),
	}
}

// alertFrame is the out-of-band frame for alert deliveries
type alertFrame struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Alerts    []types.CallAlert `json:"alerts,omitempty"`
	Summary   string            `json:"summary,omitempty"`
}

// AlertNotifier pushes alert deliveries straight to the hub, outside the
// regular snapshot cadence
type AlertNotifier struct {
	Hub    Broadcaster
	Logger zerolog.Logger
}

func (n AlertNotifier) NotifyAlerts(alerts []types.CallAlert) {
	data, err := json.Marshal(alertFrame{Type: "alerts", Timestamp: time.Now(), Alerts: alerts})
	if err != nil {
		n.Logger.Error().Err(err).Msg("failed to marshal alert frame")
		return
	}
	n.Hub.Broadcast(data)
}

func (n AlertNotifier) NotifySummary(text string) {
	data, err := json.Marshal(alertFrame{Type: "alert_summary", Timestamp: time.Now(), Summary: text})
	if err != nil {
		n.Logger.Error().Err(err).Msg("failed to marshal alert summary frame")
		return
	}
	n.Hub.Broadcast(data)
}
