package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
)

// ErrDuplicateRecord is returned when a session already produced a record
var ErrDuplicateRecord = errors.New("session already has a call record")

// sinkTimeout bounds one delivery to one sink
const sinkTimeout = 5 * time.Second

// Sink receives every appended record
type Sink interface {
	Deliver(ctx context.Context, rec types.CallRecord) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, rec types.CallRecord) error

// Deliver calls f
func (f SinkFunc) Deliver(ctx context.Context, rec types.CallRecord) error { return f(ctx, rec) }

type namedSink struct {
	name string
	sink Sink
}

// Ledger is the append-only history of closed calls. Appends are
// serialized; reads load the latest published slice without locking.
type Ledger struct {
	mu       sync.Mutex
	records  atomic.Pointer[[]types.CallRecord]
	sessions map[string]struct{} // session ids with a record
	sinks    []namedSink
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// New creates an empty ledger
func New(logger zerolog.Logger) *Ledger {
	l := &Ledger{
		sessions: make(map[string]struct{}),
		logger:   logger.With().Str("component", "ledger").Logger(),
	}
	empty := make([]types.CallRecord, 0, 1024)
	l.records.Store(&empty)
	return l
}

// AddSink registers a sink. Sinks added later do not see earlier records.
func (l *Ledger) AddSink(name string, sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, namedSink{name: name, sink: sink})
}

// Append adds rec to the ledger and fans it out to the sinks
func (l *Ledger) Append(rec types.CallRecord) error {
	l.mu.Lock()
	if _, dup := l.sessions[rec.SessionID]; dup {
		l.mu.Unlock()
		return fmt.Errorf("append %s: %w", rec.SessionID, ErrDuplicateRecord)
	}
	l.sessions[rec.SessionID] = struct{}{}
	l.publishLocked(rec)
	sinks := l.sinks
	l.mu.Unlock()

	for _, s := range sinks {
		l.wg.Add(1)
		go func(s namedSink) {
			defer l.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.sink.Deliver(ctx, rec); err != nil {
				metrics.Get().RecordSinkError(s.name)
				l.logger.Error().Err(err).
					Str("sink", s.name).
					Str("session_id", rec.SessionID).
					Msg("failed to deliver call record")
			}
		}(s)
	}
	return nil
}

// Load warm-starts the ledger from persisted records. Records whose
// session is already present are skipped. Sinks are not called.
func (l *Ledger) Load(records []types.CallRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if _, dup := l.sessions[rec.SessionID]; dup {
			continue
		}
		l.sessions[rec.SessionID] = struct{}{}
		l.publishLocked(rec)
		loaded++
	}
	return loaded
}

// Reset drops every record
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = make(map[string]struct{})
	empty := make([]types.CallRecord, 0, 1024)
	l.records.Store(&empty)
}

// Records returns the records matching filter in append order
func (l *Ledger) Records(filter types.RecordFilter) []types.CallRecord {
	all := *l.records.Load()
	out := make([]types.CallRecord, 0)
	for _, rec := range all {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of records
func (l *Ledger) Len() int {
	return len(*l.records.Load())
}

// Analytics aggregates the records matching filter
func (l *Ledger) Analytics(filter types.RecordFilter) types.Analytics {
	return Compute(l.Records(filter))
}

// Wait blocks until in-flight sink deliveries finish
func (l *Ledger) Wait() {
	l.wg.Wait()
}

// publishLocked appends rec and publishes the new slice header. Elements
// below a published length are never written again, so readers holding an
// older header can share the backing array.
func (l *Ledger) publishLocked(rec types.CallRecord) {
	next := append(*l.records.Load(), rec)
	l.records.Store(&next)
}
