package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/journal/memstore"
)

func newEvent(aggregateID string, version uint64, correlationID string) events.DomainEvent {
	return events.New(events.Header{
		AggregateType:    "Class",
		AggregateID:      aggregateID,
		AggregateVersion: version,
		CorrelationID:    correlationID,
		EmittedAt:        time.Unix(0, 0),
	}, events.TypeFileChanged, events.FileChangedPayload{Path: "/Greeter.class"})
}

func TestAppendAssignsSequentialOffsets(t *testing.T) {
	w := New(memstore.New())

	o1, err := w.Append(context.Background(), newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)
	o2, err := w.Append(context.Background(), newEvent("com.example.Greeter", 2, "corr-1"))
	require.NoError(t, err)
	require.Less(t, o1, o2)
}

func TestAppendRejectsOutOfOrderVersion(t *testing.T) {
	w := New(memstore.New())

	_, err := w.Append(context.Background(), newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)

	_, err = w.Append(context.Background(), newEvent("com.example.Greeter", 3, "corr-1"))
	require.Error(t, err)
	var conflict *VersionConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, uint64(2), conflict.Expected)
}

func TestEventsByCorrelationIDSpansAggregates(t *testing.T) {
	w := New(memstore.New())
	ctx := context.Background()

	_, err := w.Append(ctx, newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)
	_, err = w.Append(ctx, newEvent("com.example.Other", 1, "corr-1"))
	require.NoError(t, err)
	_, err = w.Append(ctx, newEvent("com.example.Greeter", 2, "corr-2"))
	require.NoError(t, err)

	got, err := w.EventsByCorrelationID(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestEventsByClassFiltersByAggregate(t *testing.T) {
	w := New(memstore.New())
	ctx := context.Background()

	_, err := w.Append(ctx, newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)
	_, err = w.Append(ctx, newEvent("com.example.Greeter", 2, "corr-1"))
	require.NoError(t, err)
	_, err = w.Append(ctx, newEvent("com.example.Other", 1, "corr-2"))
	require.NoError(t, err)

	got, err := w.EventsByClass(ctx, "com.example.Greeter")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(1), got[0].AggregateVersion)
	require.Equal(t, uint64(2), got[1].AggregateVersion)
}

func TestReplayVisitsEveryEventInOrder(t *testing.T) {
	w := New(memstore.New())
	ctx := context.Background()

	_, err := w.Append(ctx, newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)
	_, err = w.Append(ctx, newEvent("com.example.Greeter", 2, "corr-1"))
	require.NoError(t, err)

	var versions []uint64
	err = w.Replay(ctx, func(e events.DomainEvent) error {
		versions = append(versions, e.AggregateVersion)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, versions)
}

func TestAppendBackfillsSchemaVersion(t *testing.T) {
	w := New(memstore.New())
	ctx := context.Background()

	_, err := w.Append(ctx, newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)

	got, err := w.EventsByClass(ctx, "com.example.Greeter")
	require.NoError(t, err)
	require.Equal(t, events.SchemaVersion, got[0].SchemaVersion)
}

func TestTailReceivesAppendedEvents(t *testing.T) {
	w := New(memstore.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail := w.Tail(ctx)

	_, err := w.Append(ctx, newEvent("com.example.Greeter", 1, "corr-1"))
	require.NoError(t, err)

	select {
	case e := <-tail:
		require.Equal(t, "com.example.Greeter", e.AggregateID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tailed event")
	}
}

func TestTailClosesWhenContextDone(t *testing.T) {
	w := New(memstore.New())
	ctx, cancel := context.WithCancel(context.Background())

	tail := w.Tail(ctx)
	cancel()

	select {
	case _, ok := <-tail:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tail channel to close")
	}
}
