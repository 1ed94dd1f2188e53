package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const recordColumns = `record_id, session_id, date_key, agent_id, contact_id, direction,
	 phone_number, start_time, complete_time, duration, hold_count, hold_time,
	 outcome, disposition, category, notes, follow_up, recording_ref`

// SQLiteStore implements Store on an embedded SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite creates or opens the database at dbPath with WAL enabled and
// runs pending migrations
func OpenSQLite(ctx context.Context, dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")
	return s, nil
}

// migrate applies every embedded migration not yet recorded
func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		s.logger.Info().Str("version", version).Msg("applied migration")
	}
	return nil
}

func (s *SQLiteStore) SaveCallRecord(ctx context.Context, r types.CallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RecordID, r.SessionID, r.DateKey, r.AgentID, r.ContactID, string(r.Direction),
		r.PhoneNumber, r.StartTime, r.CompleteTime, r.Duration, r.HoldCount, r.HoldTime,
		string(r.Outcome), string(r.Disposition), r.Category, r.Notes, r.FollowUp, r.RecordingRef,
	)
	if err != nil {
		if isConstraint(err) {
			err = ErrDuplicateRecord
		}
		return fmt.Errorf("inserting call record: %w", err)
	}
	return nil
}

// isConstraint matches primary and extended SQLITE_CONSTRAINT codes
func isConstraint(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *SQLiteStore) SaveAgentDailyStats(ctx context.Context, st types.AgentDailyStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_daily_stats (agent_id, date, total_calls, answered_calls, sales,
		 total_talk_time, total_hold_time, avg_call_duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (agent_id, date) DO UPDATE SET
		 total_calls = excluded.total_calls, answered_calls = excluded.answered_calls,
		 sales = excluded.sales, total_talk_time = excluded.total_talk_time,
		 total_hold_time = excluded.total_hold_time, avg_call_duration = excluded.avg_call_duration`,
		st.AgentID, st.Date, st.TotalCalls, st.AnsweredCalls, st.Sales,
		st.TotalTalkTime, st.TotalHoldTime, st.AvgCallDuration,
	)
	if err != nil {
		return fmt.Errorf("upserting agent daily stats: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCallRecords(ctx context.Context, dateKey string) ([]types.CallRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM call_records WHERE date_key = ? ORDER BY complete_time, record_id`,
		dateKey)
}

func (s *SQLiteStore) GetAgentCallsByDate(ctx context.Context, agentID, date string) ([]types.CallRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM call_records WHERE agent_id = ? AND date_key = ? ORDER BY complete_time, record_id`,
		agentID, date)
}

func (s *SQLiteStore) GetAgentDailyStats(ctx context.Context, agentID string) ([]types.AgentDailyStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, date, total_calls, answered_calls, sales,
		 total_talk_time, total_hold_time, avg_call_duration
		 FROM agent_daily_stats WHERE agent_id = ? ORDER BY date`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying agent daily stats: %w", err)
	}
	defer rows.Close()

	var stats []types.AgentDailyStats
	for rows.Next() {
		var st types.AgentDailyStats
		if err := rows.Scan(&st.AgentID, &st.Date, &st.TotalCalls, &st.AnsweredCalls, &st.Sales,
			&st.TotalTalkTime, &st.TotalHoldTime, &st.AvgCallDuration); err != nil {
			return nil, fmt.Errorf("scanning agent daily stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]types.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying call records: %w", err)
	}
	defer rows.Close()

	var records []types.CallRecord
	for rows.Next() {
		var r types.CallRecord
		var direction, outcome, disposition string
		if err := rows.Scan(&r.RecordID, &r.SessionID, &r.DateKey, &r.AgentID, &r.ContactID, &direction,
			&r.PhoneNumber, &r.StartTime, &r.CompleteTime, &r.Duration, &r.HoldCount, &r.HoldTime,
			&outcome, &disposition, &r.Category, &r.Notes, &r.FollowUp, &r.RecordingRef); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		r.Direction = types.Direction(direction)
		r.Outcome = types.Outcome(outcome)
		r.Disposition = types.Disposition(disposition)
		records = append(records, r)
	}
	return records, rows.Err()
}

// TruncateAll deletes every record and stats row
func (s *SQLiteStore) TruncateAll(ctx context.Context) error {
	for _, table := range []string{"call_records", "agent_daily_stats"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
		s.logger.Info().Str("table", table).Msg("table truncated")
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
