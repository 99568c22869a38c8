// Package snapshot implements C8, the rollback and snapshot manager
// (spec.md §4.8). Snapshots are captured before a redefinition attempt
// and held for a retention window to support bytecode and
// instance-state rollback, including cascading multi-class rollback.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bytehotd/bytehotd/internal/ports"
)

// DefaultRetention matches spec.md §4.8's default retention window.
const DefaultRetention = 60 * time.Second

// Snapshot is the pre-redefinition capture for one class.
type Snapshot struct {
	ID               string
	ClassName        string
	OriginalBytecode []byte
	// InstanceFields is a shallow capture: primitive values and
	// references as InstrumentationPort.FieldsOf returned them, never
	// deep-copied (spec.md §9 open question resolution).
	InstanceFields map[ports.InstanceRef]map[string]any
	CapturedAt     time.Time
}

// Manager owns the snapshot store. It is the only component C6, C7,
// and C9 share write access to (spec.md §5 shared-resources table).
type Manager struct {
	instrumentation ports.InstrumentationPort
	clock           ports.ClockPort
	retention       time.Duration

	mu    sync.Mutex
	store map[string]Snapshot
}

// New constructs a Manager with the given retention window. A
// retention of zero uses DefaultRetention.
func New(instrumentation ports.InstrumentationPort, clock ports.ClockPort, retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		instrumentation: instrumentation,
		clock:           clock,
		retention:       retention,
		store:           map[string]Snapshot{},
	}
}

// Capture reads the current bytecode and every live instance's field
// values for handle, and stores the result under a fresh snapshot ID.
func (m *Manager) Capture(ctx context.Context, handle ports.ClassHandle) (Snapshot, error) {
	bytecode, err := m.instrumentation.BytecodeOf(ctx, handle)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read original bytecode: %w", err)
	}

	instances, err := m.instrumentation.InstancesOf(ctx, handle)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: enumerate instances: %w", err)
	}

	fields := make(map[ports.InstanceRef]map[string]any, len(instances))
	for _, inst := range instances {
		f, err := m.instrumentation.FieldsOf(ctx, inst)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot: read fields of %s: %w", inst.InstanceID(), err)
		}
		fields[inst] = f
	}

	snap := Snapshot{
		ID:               uuid.NewString(),
		ClassName:        handle.ClassName(),
		OriginalBytecode: bytecode,
		InstanceFields:   fields,
		CapturedAt:       m.clock.Now(),
	}

	m.mu.Lock()
	m.store[snap.ID] = snap
	m.mu.Unlock()

	return snap, nil
}

// Get returns a stored snapshot by ID.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	return s, ok
}

// RollbackResult mirrors events.RollbackResult without importing the
// events package, keeping snapshot's dependency surface narrow.
type RollbackResult string

const (
	RollbackSuccess RollbackResult = "success"
	RollbackPartial RollbackResult = "partial"
)

// Rollback restores bytecode and instance field state for a single
// snapshot (spec.md §4.8 bytecode/instance-state rollback).
func (m *Manager) Rollback(ctx context.Context, handle ports.ClassHandle, id string) (RollbackResult, error) {
	snap, ok := m.Get(id)
	if !ok {
		return "", fmt.Errorf("snapshot: unknown snapshot %s", id)
	}

	if err := m.instrumentation.Redefine(ctx, handle, snap.OriginalBytecode); err != nil {
		return "", fmt.Errorf("snapshot: bytecode rollback failed: %w", err)
	}

	result := RollbackSuccess
	for inst, fields := range snap.InstanceFields {
		if err := m.instrumentation.SetFields(ctx, inst, fields); err != nil {
			result = RollbackPartial
		}
	}

	return result, nil
}

// CascadingRollback rolls back snapshots in reverse order, continuing
// past individual failures and reporting the overall result as
// partial if any single rollback failed (spec.md §4.8).
func (m *Manager) CascadingRollback(ctx context.Context, handles map[string]ports.ClassHandle, ids []string) (RollbackResult, []error) {
	result := RollbackSuccess
	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		snap, ok := m.Get(id)
		if !ok {
			result = RollbackPartial
			errs = append(errs, fmt.Errorf("snapshot: unknown snapshot %s", id))
			continue
		}
		handle, ok := handles[snap.ClassName]
		if !ok {
			result = RollbackPartial
			errs = append(errs, fmt.Errorf("snapshot: no handle for class %s", snap.ClassName))
			continue
		}
		if _, err := m.Rollback(ctx, handle, id); err != nil {
			result = RollbackPartial
			errs = append(errs, err)
		}
	}
	return result, errs
}

// Cleanup discards snapshots captured before olderThan, per the
// configurable retention window (spec.md §4.8).
func (m *Manager) Cleanup(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, snap := range m.store {
		if snap.CapturedAt.Before(olderThan) {
			delete(m.store, id)
			removed++
		}
	}
	return removed
}

// RetentionDeadline returns the time before which snapshots may be
// pruned, given the manager's configured retention window.
func (m *Manager) RetentionDeadline() time.Time {
	return m.clock.Now().Add(-m.retention)
}
