package journalsink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bytehotd/bytehotd/internal/events"
)

func TestOpenMemoryBackendDefaultsWhenDriverEmpty(t *testing.T) {
	writer, closer, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	defer closer.Close()

	ctx := context.Background()
	event := events.New(events.Header{
		AggregateType:    "Class",
		AggregateID:      "com/example/Greeter",
		AggregateVersion: 1,
		CorrelationID:    "corr-1",
		EmittedAt:        time.Unix(1_700_000_000, 0).UTC(),
	}, events.TypeFileChanged, nil)

	offset, err := writer.Append(ctx, event)
	require.NoError(t, err)
	require.Equal(t, uint64(1), offset)

	recs, err := writer.ReadFrom(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestOpenSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	writer, closer, err := Open(context.Background(), Config{
		Driver:        DriverSQLite,
		SQLitePath:    filepath.Join(dir, "journal.db"),
		MigrationsDir: "../../../migrations/sqlite",
	}, prometheus.NewRegistry())
	require.NoError(t, err)
	defer closer.Close()
	require.NotNil(t, writer)

	ctx := context.Background()
	event := events.New(events.Header{
		AggregateType:    "Class",
		AggregateID:      "com/example/Greeter",
		AggregateVersion: 1,
		CorrelationID:    "corr-1",
		EmittedAt:        time.Unix(1_700_000_000, 0).UTC(),
	}, events.TypeFileChanged, nil)

	offset, err := writer.Append(ctx, event)
	require.NoError(t, err)
	require.Equal(t, uint64(1), offset)
}

func TestOpenUnknownDriverErrors(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Driver: "carrier-pigeon"}, nil)
	require.Error(t, err)
}
