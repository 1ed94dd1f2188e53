package aggregator

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/alerts"
	"github.com/dennisdiepolder/monti/softphone/internal/cache"
	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// Source is the engine view the aggregator reads from
type Source interface {
	Agents() []types.Agent
	Sessions() []types.CallSession
	AgentSummary() map[types.AgentStatus]int
	GetAnalytics(filter types.RecordFilter) types.Analytics
}

// SnapshotSink receives finished snapshots
type SnapshotSink interface {
	BroadcastSnapshot(snap *types.Snapshot)
}

// Aggregator periodically assembles a dashboard snapshot of agents, live
// sessions, today's analytics and the lifecycle events since the last cycle
type Aggregator struct {
	source     Source
	events     *cache.EventCache
	sink       SnapshotSink
	interval   time.Duration
	thresholds alerts.Thresholds
	clock      func() time.Time
	logger     zerolog.Logger

	lastDropped int
}

// NewAggregator creates a new aggregator
func NewAggregator(source Source, events *cache.EventCache, sink SnapshotSink, interval time.Duration, thresholds alerts.Thresholds, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		source:     source,
		events:     events,
		sink:       sink,
		interval:   interval,
		thresholds: thresholds,
		clock:      time.Now,
		logger:     logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start begins aggregating events and broadcasting snapshots
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()
			snap := a.Build()
			a.sink.BroadcastSnapshot(snap)
			metrics.Get().RecordSnapshotCycle(time.Since(cycleStart))

			a.logger.Debug().
				Int("events_processed", len(snap.Events)).
				Int("total_agents", len(snap.Agents)).
				Int("live_sessions", len(snap.Sessions)).
				Msg("snapshot broadcasted")
		}
	}
}

// Build assembles one snapshot and drains the event cache
func (a *Aggregator) Build() *types.Snapshot {
	now := a.clock()
	agents := a.source.Agents()
	sessions := a.source.Sessions()
	alerts.CheckAgentAlerts(agents, sessions, a.thresholds, now)

	if dropped := a.events.Dropped(); dropped > a.lastDropped {
		a.logger.Warn().Int("dropped", dropped-a.lastDropped).Msg("event cache overflowed")
		a.lastDropped = dropped
	}

	return &types.Snapshot{
		Type:      types.MessageSnapshot,
		Timestamp: now,
		Agents:    agents,
		Sessions:  sessions,
		Analytics: a.source.GetAnalytics(types.RecordFilter{DateKey: types.DateKey(now)}),
		Events:    a.events.GetAndClear(),
		Summary:   a.source.AgentSummary(),
	}
}
