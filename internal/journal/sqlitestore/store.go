// Package sqlitestore implements journal.Store on top of an embedded
// SQLite database, for the optional durable-journal deployment spec.md
// §4.2 allows. Grounded on the teacher's SQLiteStorage (WAL mode,
// secure file permissions, goose-driven schema) adapted from a
// single-table alert store to an append-only event log with payload
// JSON columns decoded back through journal.DecodePayload.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/journal"
)

// Store is a durable, goose-migrated SQLite-backed journal.Store.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite file at path, running any
// pending goose migrations found under migrationsDir before returning.
func Open(ctx context.Context, path, migrationsDir string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitestore: path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set dialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}

	_ = os.Chmod(path, 0o600)

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

var _ journal.Store = (*Store)(nil)

// Append implements journal.Store.
func (s *Store) Append(ctx context.Context, event events.DomainEvent) (journal.Record, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return journal.Record{}, fmt.Errorf("sqlitestore: encode payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_events
			(event_id, aggregate_type, aggregate_id, aggregate_version, causal_predecessor_id,
			 correlation_id, schema_version, emitted_at, user_id, payload_type, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.AggregateType, event.AggregateID, event.AggregateVersion, event.CausalPredecessorID,
		event.CorrelationID, event.SchemaVersion, event.EmittedAt.UnixMilli(), event.UserID,
		string(event.PayloadType), string(payload),
	)
	if err != nil {
		return journal.Record{}, fmt.Errorf("sqlitestore: insert: %w", err)
	}

	offset, err := res.LastInsertId()
	if err != nil {
		return journal.Record{}, fmt.Errorf("sqlitestore: last insert id: %w", err)
	}

	return journal.Record{Offset: uint64(offset), Event: event}, nil
}

const selectColumns = `seq, event_id, aggregate_type, aggregate_id, aggregate_version,
	causal_predecessor_id, correlation_id, schema_version, emitted_at, user_id, payload_type, payload_json`

// ReadFrom implements journal.Store.
func (s *Store) ReadFrom(ctx context.Context, offset uint64) ([]journal.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE seq >= ? ORDER BY seq ASC`, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LatestVersion implements journal.Store.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(aggregate_version) FROM journal_events WHERE aggregate_id = ?`, aggregateID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: latest version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return uint64(version.Int64), nil
}

// ByCorrelationID implements journal.Store.
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) ([]journal.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE correlation_id = ? ORDER BY seq ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query by correlation id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ByAggregateID implements journal.Store.
func (s *Store) ByAggregateID(ctx context.Context, aggregateID string) ([]journal.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE aggregate_id = ? ORDER BY seq ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query by aggregate id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows *sql.Rows) ([]journal.Record, error) {
	var out []journal.Record
	for rows.Next() {
		var (
			offset          uint64
			causalPredID    sql.NullString
			userID          sql.NullString
			emittedAtMillis int64
			de              events.DomainEvent
			payloadTypeRaw  string
			payloadJSON     string
		)
		if err := rows.Scan(&offset, &de.EventID, &de.AggregateType, &de.AggregateID, &de.AggregateVersion,
			&causalPredID, &de.CorrelationID, &de.SchemaVersion, &emittedAtMillis, &userID,
			&payloadTypeRaw, &payloadJSON); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan: %w", err)
		}
		de.CausalPredecessorID = causalPredID.String
		de.UserID = userID.String
		de.EmittedAt = time.UnixMilli(emittedAtMillis).UTC()
		de.PayloadType = events.PayloadType(payloadTypeRaw)

		payload, err := journal.DecodePayload(de.PayloadType, []byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: decode payload: %w", err)
		}
		de.Payload = payload

		out = append(out, journal.Record{Offset: offset, Event: de})
	}
	return out, rows.Err()
}
