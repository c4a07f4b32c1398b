package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/creatorrr/sonnun/pkg/provenance"
)

// Dialect selects driver-specific schema and sequence-reset behaviour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLLedger implements Ledger over database/sql. It supports SQLite and
// Postgres via standard drivers; the caller owns the *sql.DB.
type SQLLedger struct {
	db      *sql.DB
	dialect Dialect

	// mu serializes appends. The storage layer's own isolation keeps ids
	// unique, but a single writer avoids interleaved insert/last-id races
	// on drivers without RETURNING support.
	mu sync.Mutex
}

// NewSQLLedger creates a ledger over an open database handle.
func NewSQLLedger(db *sql.DB, dialect Dialect) *SQLLedger {
	return &SQLLedger{db: db, dialect: dialect}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	event_type TEXT NOT NULL CHECK (event_type IN ('human', 'ai', 'cited')),
	text_hash TEXT NOT NULL,
	source TEXT NOT NULL,
	span_length INTEGER NOT NULL CHECK (span_length >= 0)
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	timestamp TEXT NOT NULL,
	event_type TEXT NOT NULL CHECK (event_type IN ('human', 'ai', 'cited')),
	text_hash TEXT NOT NULL,
	source TEXT NOT NULL,
	span_length BIGINT NOT NULL CHECK (span_length >= 0)
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// Init creates the events table and indexes if they do not exist.
func (s *SQLLedger) Init(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ledger: migrate failed: %w", err)
	}
	return nil
}

// Append inserts one event and returns its assigned id.
func (s *SQLLedger) Append(ctx context.Context, event provenance.Event) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO events (timestamp, event_type, text_hash, source, span_length)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.Kind), event.ContentDigest, event.Source, event.SpanLength,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: append failed: %w", err)
	}
	return id, nil
}

// Query returns records newest-first, optionally filtered by kind and
// truncated to limit.
func (s *SQLLedger) Query(ctx context.Context, kind *provenance.Kind, limit int) ([]Record, error) {
	query := `
		SELECT id, timestamp, event_type, text_hash, source, span_length
		FROM events
	`
	args := []any{}
	if kind != nil {
		query += ` WHERE event_type = $1`
		args = append(args, string(*kind))
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		var kindStr string
		if err := rows.Scan(&r.ID, &r.Timestamp, &kindStr, &r.ContentDigest, &r.Source, &r.SpanLength); err != nil {
			return nil, fmt.Errorf("ledger: scan failed: %w", err)
		}
		r.Kind = provenance.Kind(kindStr)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: query failed: %w", err)
	}
	return records, nil
}

// Aggregate sums span lengths per kind over the whole ledger.
func (s *SQLLedger) Aggregate(ctx context.Context) (Totals, error) {
	query := `SELECT event_type, COALESCE(SUM(span_length), 0) FROM events GROUP BY event_type`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return Totals{}, fmt.Errorf("ledger: aggregate failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals Totals
	for rows.Next() {
		var kindStr string
		var sum int64
		if err := rows.Scan(&kindStr, &sum); err != nil {
			return Totals{}, fmt.Errorf("ledger: scan failed: %w", err)
		}
		switch provenance.Kind(kindStr) {
		case provenance.KindHuman:
			totals.Human = sum
		case provenance.KindAI:
			totals.AI = sum
		case provenance.KindCited:
			totals.Cited = sum
		}
	}
	if err := rows.Err(); err != nil {
		return Totals{}, fmt.Errorf("ledger: aggregate failed: %w", err)
	}
	return totals, nil
}

// Clear deletes all events and resets id assignment. Test/dev only.
func (s *SQLLedger) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("ledger: clear failed: %w", err)
	}
	switch s.dialect {
	case DialectSQLite:
		// The autoincrement counter lives in sqlite_sequence; the row does
		// not exist until the first insert.
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'events'`); err != nil {
			return fmt.Errorf("ledger: sequence reset failed: %w", err)
		}
	case DialectPostgres:
		if _, err := s.db.ExecContext(ctx, `ALTER SEQUENCE events_id_seq RESTART WITH 1`); err != nil {
			return fmt.Errorf("ledger: sequence reset failed: %w", err)
		}
	}
	return nil
}
