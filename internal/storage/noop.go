package storage

import (
	"context"
	"errors"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// ErrDuplicateRecord is returned by SaveCallRecord when the record, or
// another record for the same session, is already stored
var ErrDuplicateRecord = errors.New("call record already stored")

// Store persists call records and per-agent daily stats
type Store interface {
	SaveCallRecord(ctx context.Context, record types.CallRecord) error
	SaveAgentDailyStats(ctx context.Context, stats types.AgentDailyStats) error
	GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error)
	GetAgentDailyStats(ctx context.Context, agentID string) ([]types.AgentDailyStats, error)
	GetAgentCallsByDate(ctx context.Context, agentID, date string) ([]types.CallRecord, error)
	TruncateAll(ctx context.Context) error
	Close() error
}

// NoopStore is used when persistence is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveCallRecord(_ context.Context, _ types.CallRecord) error {
	return nil
}

func (s *NoopStore) SaveAgentDailyStats(_ context.Context, _ types.AgentDailyStats) error {
	return nil
}

func (s *NoopStore) GetCallRecords(_ context.Context, _ string) ([]types.CallRecord, error) {
	return nil, nil
}

func (s *NoopStore) GetAgentDailyStats(_ context.Context, _ string) ([]types.AgentDailyStats, error) {
	return nil, nil
}

func (s *NoopStore) GetAgentCallsByDate(_ context.Context, _, _ string) ([]types.CallRecord, error) {
	return nil, nil
}

func (s *NoopStore) TruncateAll(_ context.Context) error {
	return nil
}

func (s *NoopStore) Close() error {
	return nil
}
