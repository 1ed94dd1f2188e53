package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// DailyStats keeps per-agent daily rollups and persists them after every
// call record. Unknown days are seeded from the store first.
type DailyStats struct {
	store Store
	mu    sync.Mutex
	stats map[string]*types.AgentDailyStats // agentID|date -> rollup
}

// NewDailyStats creates a rollup writer on top of store
func NewDailyStats(store Store) *DailyStats {
	return &DailyStats{
		store: store,
		stats: make(map[string]*types.AgentDailyStats),
	}
}

// Deliver folds rec into the agent's rollup for the record's day and saves it
func (d *DailyStats) Deliver(ctx context.Context, rec types.CallRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := rec.AgentID + "|" + rec.DateKey
	st, ok := d.stats[key]
	if !ok {
		loaded, err := d.load(ctx, rec.AgentID, rec.DateKey)
		if err != nil {
			return err
		}
		st = loaded
		d.stats[key] = st
	}

	st.TotalCalls++
	if rec.Outcome == types.OutcomeAnswered {
		st.AnsweredCalls++
	}
	if rec.Disposition == types.DispositionSale {
		st.Sales++
	}
	st.TotalTalkTime += float64(rec.Duration)
	st.TotalHoldTime += rec.HoldTime
	st.AvgCallDuration = st.TotalTalkTime / float64(st.TotalCalls)

	return d.store.SaveAgentDailyStats(ctx, *st)
}

// Reset forgets all cached rollups
func (d *DailyStats) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = make(map[string]*types.AgentDailyStats)
}

func (d *DailyStats) load(ctx context.Context, agentID, date string) (*types.AgentDailyStats, error) {
	existing, err := d.store.GetAgentDailyStats(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading daily stats for %s: %w", agentID, err)
	}
	for _, st := range existing {
		if st.Date == date {
			st := st
			return &st, nil
		}
	}
	return &types.AgentDailyStats{AgentID: agentID, Date: date}, nil
}
