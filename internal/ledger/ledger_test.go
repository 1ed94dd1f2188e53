package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

func record(session, agent, contact string, outcome types.Outcome, duration int64) types.CallRecord {
	return types.CallRecord{
		DateKey:     "2026-03-02",
		RecordID:    "r-" + session,
		SessionID:   session,
		AgentID:     agent,
		ContactID:   contact,
		Duration:    duration,
		Outcome:     outcome,
		Disposition: types.DispositionInterested,
	}
}

func TestAnalyticsEmpty(t *testing.T) {
	l := New(zerolog.Nop())
	a := l.Analytics(types.RecordFilter{})

	if a.TotalCalls != 0 || a.AnsweredCalls != 0 || a.AnswerRate != 0 || a.AvgDuration != 0 {
		t.Errorf("expected zero analytics, got %+v", a)
	}
}

func TestAnalyticsFiltered(t *testing.T) {
	l := New(zerolog.Nop())
	mustAppend(t, l, record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))
	mustAppend(t, l, record("s-2", "agent-1", "c-2", types.OutcomeNoAnswer, 0))
	mustAppend(t, l, record("s-3", "agent-2", "c-1", types.OutcomeAnswered, 60))

	tests := []struct {
		name         string
		filter       types.RecordFilter
		wantTotal    int
		wantAnswered int
		wantRate     float64
		wantAvg      float64
	}{
		{"all", types.RecordFilter{}, 3, 2, 2.0 / 3.0, 30},
		{"agent-1", types.RecordFilter{AgentID: "agent-1"}, 2, 1, 0.5, 15},
		{"contact c-1", types.RecordFilter{ContactID: "c-1"}, 2, 2, 1, 45},
		{"no match", types.RecordFilter{AgentID: "ghost"}, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := l.Analytics(tt.filter)
			if a.TotalCalls != tt.wantTotal {
				t.Errorf("total: expected %d, got %d", tt.wantTotal, a.TotalCalls)
			}
			if a.AnsweredCalls != tt.wantAnswered {
				t.Errorf("answered: expected %d, got %d", tt.wantAnswered, a.AnsweredCalls)
			}
			if a.AnswerRate != tt.wantRate {
				t.Errorf("rate: expected %v, got %v", tt.wantRate, a.AnswerRate)
			}
			if a.AvgDuration != tt.wantAvg {
				t.Errorf("avg: expected %v, got %v", tt.wantAvg, a.AvgDuration)
			}
		})
	}

	if got := l.Analytics(types.RecordFilter{}).ByOutcome[types.OutcomeNoAnswer]; got != 1 {
		t.Errorf("expected 1 no-answer in breakdown, got %d", got)
	}
}

func TestAppendRejectsDuplicateSession(t *testing.T) {
	l := New(zerolog.Nop())
	mustAppend(t, l, record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))

	err := l.Append(record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 record, got %d", l.Len())
	}
}

func TestSinksReceiveRecords(t *testing.T) {
	l := New(zerolog.Nop())

	var mu sync.Mutex
	var delivered []string
	l.AddSink("collect", SinkFunc(func(ctx context.Context, rec types.CallRecord) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, rec.SessionID)
		return nil
	}))
	l.AddSink("failing", SinkFunc(func(ctx context.Context, rec types.CallRecord) error {
		return errors.New("broker down")
	}))

	mustAppend(t, l, record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))
	l.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0] != "s-1" {
		t.Errorf("expected s-1 delivered, got %v", delivered)
	}
	if l.Len() != 1 {
		t.Error("a failing sink must not affect the ledger")
	}
}

func TestLoadSkipsKnownSessions(t *testing.T) {
	l := New(zerolog.Nop())
	mustAppend(t, l, record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))

	loaded := l.Load([]types.CallRecord{
		record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30),
		record("s-2", "agent-1", "c-1", types.OutcomeBusy, 0),
	})
	if loaded != 1 {
		t.Errorf("expected 1 loaded, got %d", loaded)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 records, got %d", l.Len())
	}

	l.Reset()
	if l.Len() != 0 {
		t.Errorf("expected empty ledger after reset, got %d", l.Len())
	}
	mustAppend(t, l, record("s-1", "agent-1", "c-1", types.OutcomeAnswered, 30))
}

func TestConcurrentAppendAndRead(t *testing.T) {
	l := New(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = l.Append(record(fmt.Sprintf("s-%d", i), "agent-1", "c-1", types.OutcomeAnswered, 10))
		}(i)
		go func() {
			defer wg.Done()
			a := l.Analytics(types.RecordFilter{AgentID: "agent-1"})
			if a.TotalCalls > 0 && a.AvgDuration != 10 {
				t.Errorf("inconsistent snapshot: %+v", a)
			}
		}()
	}
	wg.Wait()

	if l.Len() != 200 {
		t.Errorf("expected 200 records, got %d", l.Len())
	}
}

func mustAppend(t *testing.T, l *Ledger, rec types.CallRecord) {
	t.Helper()
	if err := l.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
}
