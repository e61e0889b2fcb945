// Package sqlite persists the audit trail and manufacturing insights in a
// SQLite database (pure-Go driver).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS ueba_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_name TEXT NOT NULL,
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	status     TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ueba_logs_status ON ueba_logs(status);

CREATE TABLE IF NOT EXISTS manufacturing_insights (
	id               TEXT PRIMARY KEY,
	vehicle_id       TEXT NOT NULL,
	component        TEXT NOT NULL,
	pattern          TEXT NOT NULL,
	affected_batch   TEXT NOT NULL,
	recommendation   TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	created_at       TEXT NOT NULL
);
`

// Store implements ports.AuditSink and ports.InsightStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; this also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends an audit record to ueba_logs.
func (s *Store) Record(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ueba_logs (agent_name, source, target, status, timestamp) VALUES (?, ?, ?, ?, ?)`,
		rec.AgentName, rec.Source, rec.Target, string(rec.Status), rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// AuditRecords returns up to limit records, oldest first. A non-empty status
// filters by outcome.
func (s *Store) AuditRecords(ctx context.Context, status domain.AuditStatus, limit int) ([]domain.AuditRecord, error) {
	query := `SELECT agent_name, source, target, status, timestamp FROM ueba_logs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var st, ts string
		if err := rows.Scan(&rec.AgentName, &rec.Source, &rec.Target, &st, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Status = domain.AuditStatus(st)
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Publish stores an insight. Publishing the same id twice overwrites it.
func (s *Store) Publish(ctx context.Context, in domain.Insight) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO manufacturing_insights
		 (id, vehicle_id, component, pattern, affected_batch, recommendation, confidence_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.VehicleID, in.Component, in.Pattern, in.AffectedBatch, in.Recommendation,
		in.ConfidenceScore, in.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// ListInsights returns up to limit insights, newest first. limit <= 0 means all.
func (s *Store) ListInsights(ctx context.Context, limit int) ([]domain.Insight, error) {
	query := `SELECT id, vehicle_id, component, pattern, affected_batch, recommendation, confidence_score, created_at
		FROM manufacturing_insights ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Insight{}
	for rows.Next() {
		var in domain.Insight
		var ts string
		if err := rows.Scan(&in.ID, &in.VehicleID, &in.Component, &in.Pattern, &in.AffectedBatch,
			&in.Recommendation, &in.ConfidenceScore, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		in.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, in)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
