// Package pgstore implements journal.Store on top of Postgres, the
// durable-journal deployment spec.md §4.2 allows for multi-instance
// agents sharing one journal. Grounded on the teacher's PostgresPool
// (pgxpool sizing, health/stats surface) and PostgresHistoryRepository
// (promauto query-latency metrics), adapted from a single alerts table
// to an append-only event log with payload JSON columns decoded back
// through journal.DecodePayload.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/journal"
)

// Metrics are the query-latency observations a Prometheus scraper
// pulls from a Store, mirroring the teacher's HistoryMetrics.
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics registers Store's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "bytehotd_journal_pg_query_duration_seconds",
			Help: "Duration of journal queries against Postgres, by operation.",
		}, []string{"operation"}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bytehotd_journal_pg_query_errors_total",
			Help: "Count of failed journal queries against Postgres, by operation.",
		}, []string{"operation"}),
	}
}

// Store is a durable, goose-migrated Postgres-backed journal.Store.
type Store struct {
	pool    *pgxpool.Pool
	metrics *Metrics
}

// Open connects to dsn, running any pending goose migrations found
// under migrationsDir before returning. Migrations run through
// database/sql via pgx's stdlib driver; the pool returned for runtime
// queries is a separate pgxpool.Pool, matching the split the teacher's
// MigrationManager and PostgresPool keep between schema management and
// query traffic.
func Open(ctx context.Context, dsn, migrationsDir string, metrics *Metrics) (*Store, error) {
	if err := migrate(dsn, migrationsDir); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Store{pool: pool, metrics: metrics}, nil
}

func migrate(dsn, migrationsDir string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("pgstore: open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("pgstore: set dialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

var _ journal.Store = (*Store)(nil)

func (s *Store) observe(operation string, start time.Time, err error) {
	s.metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.QueryErrors.WithLabelValues(operation).Inc()
	}
}

// Append implements journal.Store.
func (s *Store) Append(ctx context.Context, event events.DomainEvent) (rec journal.Record, err error) {
	start := time.Now()
	defer func() { s.observe("append", start, err) }()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return journal.Record{}, fmt.Errorf("pgstore: encode payload: %w", err)
	}

	var offset uint64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO journal_events
			(event_id, aggregate_type, aggregate_id, aggregate_version, causal_predecessor_id,
			 correlation_id, schema_version, emitted_at, user_id, payload_type, payload_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`,
		event.EventID, event.AggregateType, event.AggregateID, event.AggregateVersion, nullableString(event.CausalPredecessorID),
		event.CorrelationID, event.SchemaVersion, event.EmittedAt.UnixMilli(), nullableString(event.UserID),
		string(event.PayloadType), payload,
	).Scan(&offset)
	if err != nil {
		return journal.Record{}, fmt.Errorf("pgstore: insert: %w", err)
	}

	return journal.Record{Offset: offset, Event: event}, nil
}

const selectColumns = `seq, event_id, aggregate_type, aggregate_id, aggregate_version,
	causal_predecessor_id, correlation_id, schema_version, emitted_at, user_id, payload_type, payload_json`

// ReadFrom implements journal.Store.
func (s *Store) ReadFrom(ctx context.Context, offset uint64) (recs []journal.Record, err error) {
	start := time.Now()
	defer func() { s.observe("read_from", start, err) }()

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE seq >= $1 ORDER BY seq ASC`, offset)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LatestVersion implements journal.Store.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (version uint64, err error) {
	start := time.Now()
	defer func() { s.observe("latest_version", start, err) }()

	var max sql.NullInt64
	err = s.pool.QueryRow(ctx,
		`SELECT MAX(aggregate_version) FROM journal_events WHERE aggregate_id = $1`, aggregateID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("pgstore: latest version: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}

// ByCorrelationID implements journal.Store.
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) (recs []journal.Record, err error) {
	start := time.Now()
	defer func() { s.observe("by_correlation_id", start, err) }()

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE correlation_id = $1 ORDER BY seq ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query by correlation id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ByAggregateID implements journal.Store.
func (s *Store) ByAggregateID(ctx context.Context, aggregateID string) (recs []journal.Record, err error) {
	start := time.Now()
	defer func() { s.observe("by_aggregate_id", start, err) }()

	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM journal_events WHERE aggregate_id = $1 ORDER BY seq ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query by aggregate id: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanAll(rows pgx.Rows) ([]journal.Record, error) {
	var out []journal.Record
	for rows.Next() {
		var (
			offset          uint64
			causalPredID    sql.NullString
			userID          sql.NullString
			emittedAtMillis int64
			de              events.DomainEvent
			payloadTypeRaw  string
			payloadJSON     []byte
		)
		if err := rows.Scan(&offset, &de.EventID, &de.AggregateType, &de.AggregateID, &de.AggregateVersion,
			&causalPredID, &de.CorrelationID, &de.SchemaVersion, &emittedAtMillis, &userID,
			&payloadTypeRaw, &payloadJSON); err != nil {
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		de.CausalPredecessorID = causalPredID.String
		de.UserID = userID.String
		de.EmittedAt = time.UnixMilli(emittedAtMillis).UTC()
		de.PayloadType = events.PayloadType(payloadTypeRaw)

		payload, err := journal.DecodePayload(de.PayloadType, payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("pgstore: decode payload: %w", err)
		}
		de.Payload = payload

		out = append(out, journal.Record{Offset: offset, Event: de})
	}
	return out, rows.Err()
}
