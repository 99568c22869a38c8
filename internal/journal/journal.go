// Package journal implements C2, the append-only event journal
// (spec.md §4.2): per-aggregate monotonic versioning, causal chaining
// via correlation id, schema-version back-fill on read, and the query
// API replay and the admin surface need (events by correlation id,
// events by class).
package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
)

// Record pairs a DomainEvent with its journal-assigned offset.
type Record struct {
	Offset uint64
	Event  events.DomainEvent
}

// Store is the persistence seam a Writer is built on. Implementations
// (memstore, sqlitestore) only need to get appends and lookups right;
// version-conflict detection and schema back-fill live in Writer so
// every backend behaves identically.
type Store interface {
	// Append assigns event its offset and durably records it.
	Append(ctx context.Context, event events.DomainEvent) (Record, error)
	ReadFrom(ctx context.Context, offset uint64) ([]Record, error)
	LatestVersion(ctx context.Context, aggregateID string) (uint64, error)
	ByCorrelationID(ctx context.Context, correlationID string) ([]Record, error)
	ByAggregateID(ctx context.Context, aggregateID string) ([]Record, error)
}

// VersionConflictError reports an out-of-order append attempt against
// an aggregate (spec.md §4.2: per-aggregate monotonic versioning).
type VersionConflictError struct {
	AggregateID string
	Expected    uint64
	Got         uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("journal: aggregate %q expected version %d, got %d", e.AggregateID, e.Expected, e.Got)
}

// Writer is the EventSinkPort implementation every session wires
// against. It serializes appends so the read-then-compare-version
// check in Append can never race across goroutines sharing one Store.
type Writer struct {
	store Store
	mu    sync.Mutex

	tailMu sync.Mutex
	tails  map[chan events.DomainEvent]struct{}
}

// New wraps store in a Writer.
func New(store Store) *Writer {
	return &Writer{store: store, tails: map[chan events.DomainEvent]struct{}{}}
}

// Tail registers a live feed of every event appended from this point
// on, for the admin journal-tail surface. The returned channel is
// closed and deregistered when ctx is done; a slow consumer drops
// events rather than blocking Append.
func (w *Writer) Tail(ctx context.Context) <-chan events.DomainEvent {
	ch := make(chan events.DomainEvent, 64)

	w.tailMu.Lock()
	w.tails[ch] = struct{}{}
	w.tailMu.Unlock()

	go func() {
		<-ctx.Done()
		w.tailMu.Lock()
		delete(w.tails, ch)
		w.tailMu.Unlock()
		close(ch)
	}()

	return ch
}

func (w *Writer) broadcast(event events.DomainEvent) {
	w.tailMu.Lock()
	defer w.tailMu.Unlock()
	for ch := range w.tails {
		select {
		case ch <- event:
		default:
		}
	}
}

var _ ports.EventSinkPort = (*Writer)(nil)

// Append implements ports.EventSinkPort. event must be an
// events.DomainEvent; its AggregateVersion must be exactly one past
// the aggregate's current latest version.
func (w *Writer) Append(ctx context.Context, event ports.EventRecord) (uint64, error) {
	de, ok := event.(events.DomainEvent)
	if !ok {
		return 0, fmt.Errorf("journal: event is not a events.DomainEvent: %T", event)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.store.LatestVersion(ctx, de.AggregateID)
	if err != nil {
		return 0, err
	}
	if de.AggregateVersion != current+1 {
		return 0, &VersionConflictError{AggregateID: de.AggregateID, Expected: current + 1, Got: de.AggregateVersion}
	}

	de.SchemaVersion = events.SchemaVersion
	rec, err := w.store.Append(ctx, de)
	if err != nil {
		return 0, err
	}
	w.broadcast(rec.Event)
	return rec.Offset, nil
}

// ReadFrom implements ports.EventSinkPort.
func (w *Writer) ReadFrom(ctx context.Context, offset uint64) ([]ports.EventRecord, error) {
	recs, err := w.store.ReadFrom(ctx, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ports.EventRecord, len(recs))
	for i, r := range recs {
		out[i] = backfillSchema(r.Event)
	}
	return out, nil
}

// LatestVersion implements ports.EventSinkPort.
func (w *Writer) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	return w.store.LatestVersion(ctx, aggregateID)
}

// EventsByCorrelationID returns every event sharing correlationID, in
// causal (offset) order — the query a support engineer reaches for
// first when diagnosing one change's journey through the pipeline.
func (w *Writer) EventsByCorrelationID(ctx context.Context, correlationID string) ([]events.DomainEvent, error) {
	recs, err := w.store.ByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return sortedEvents(recs), nil
}

// EventsByClass returns every event recorded against className as its
// aggregate id, in occurrence order.
func (w *Writer) EventsByClass(ctx context.Context, className string) ([]events.DomainEvent, error) {
	recs, err := w.store.ByAggregateID(ctx, className)
	if err != nil {
		return nil, err
	}
	return sortedEvents(recs), nil
}

// Replay streams every event in the journal, in offset order, to
// handler — the contract cmd/replay drives to reconstruct state from
// nothing but the journal (spec.md §4.2).
func (w *Writer) Replay(ctx context.Context, handler func(events.DomainEvent) error) error {
	recs, err := w.store.ReadFrom(ctx, 0)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := handler(backfillSchema(r.Event)); err != nil {
			return err
		}
	}
	return nil
}

func sortedEvents(recs []Record) []events.DomainEvent {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Offset < recs[j].Offset })
	out := make([]events.DomainEvent, len(recs))
	for i, r := range recs {
		out[i] = backfillSchema(r.Event)
	}
	return out
}

// backfillSchema defaults SchemaVersion to 1 for records written
// before schema versioning existed (spec.md §4.2: schema evolution is
// additive-only, readers back-fill defaults for older versions).
func backfillSchema(e events.DomainEvent) events.DomainEvent {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = 1
	}
	return e
}
