// Package journalsink selects and constructs the journal.Store backend
// the agent journals to, wrapping it in a journal.Writer that directly
// satisfies ports.EventSinkPort.
package journalsink

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bytehotd/bytehotd/internal/journal"
	"github.com/bytehotd/bytehotd/internal/journal/memstore"
	"github.com/bytehotd/bytehotd/internal/journal/pgstore"
	"github.com/bytehotd/bytehotd/internal/journal/sqlitestore"
)

// Driver names a journal.Store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Driver        Driver
	SQLitePath    string
	PostgresDSN   string
	MigrationsDir string
}

// Closer is satisfied by backends that hold an OS resource (a file
// handle or a connection pool); memstore has nothing to close.
type Closer interface {
	Close() error
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// pgCloser adapts pgstore.Store's void Close to the Closer interface.
type pgCloser struct{ store *pgstore.Store }

func (c pgCloser) Close() error {
	c.store.Close()
	return nil
}

// Open constructs a journal.Writer over the configured backend and
// returns a Closer to release its resources on shutdown.
func Open(ctx context.Context, cfg Config, reg prometheus.Registerer) (*journal.Writer, Closer, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return journal.New(memstore.New()), noopCloser{}, nil

	case DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath, cfg.MigrationsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("journalsink: open sqlite store: %w", err)
		}
		return journal.New(store), store, nil

	case DriverPostgres:
		var metrics *pgstore.Metrics
		if reg != nil {
			metrics = pgstore.NewMetrics(reg)
		}
		store, err := pgstore.Open(ctx, cfg.PostgresDSN, cfg.MigrationsDir, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("journalsink: open postgres store: %w", err)
		}
		return journal.New(store), pgCloser{store}, nil

	default:
		return nil, nil, fmt.Errorf("journalsink: unknown driver %q", cfg.Driver)
	}
}
