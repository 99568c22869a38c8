// Package ports declares the four capability contracts the core
// pipeline consumes (spec.md §4.1). The core never names the host
// runtime; every hot-swap primitive is reached through these seams.
package ports

import (
	"context"
	"time"
)

// RuntimeErrorCategory classifies a failed redefine call.
type RuntimeErrorCategory string

const (
	RuntimeUnsupportedSchemaChange RuntimeErrorCategory = "UnsupportedSchemaChange"
	RuntimeClassNotLoaded          RuntimeErrorCategory = "ClassNotLoaded"
	RuntimeVerifyError             RuntimeErrorCategory = "VerifyError"
	RuntimeInternalError           RuntimeErrorCategory = "InternalError"
	RuntimeOther                   RuntimeErrorCategory = "Other"
)

// RuntimeError is returned by InstrumentationPort.Redefine on failure.
type RuntimeError struct {
	Category RuntimeErrorCategory
	Message  string
}

func (e *RuntimeError) Error() string {
	return string(e.Category) + ": " + e.Message
}

// ClassHandle opaquely identifies a loaded class within the host
// runtime; only the production adapter knows its concrete shape.
type ClassHandle interface {
	ClassName() string
}

// InstanceRef opaquely identifies a live instance of a loaded class.
type InstanceRef interface {
	InstanceID() string
}

// InstrumentationPort is the seam onto the host runtime's hot-swap
// facility (spec.md §4.1).
type InstrumentationPort interface {
	IsRedefineSupported() bool
	IsRetransformSupported() bool
	LoadedClasses(ctx context.Context) ([]ClassHandle, error)
	BytecodeOf(ctx context.Context, handle ClassHandle) ([]byte, error)
	Redefine(ctx context.Context, handle ClassHandle, newBytes []byte) error
	InstancesOf(ctx context.Context, handle ClassHandle) ([]InstanceRef, error)
	// FieldsOf/SetFields give C7/C8 the shallow, reference-preserving
	// state-preservation seam spec.md §4.7/§9 requires, without the
	// core ever doing reflection itself.
	FieldsOf(ctx context.Context, instance InstanceRef) (map[string]any, error)
	SetFields(ctx context.Context, instance InstanceRef, fields map[string]any) error
}

// ChangeKind enumerates raw filesystem change kinds.
type ChangeKind string

const (
	Created  ChangeKind = "Created"
	Modified ChangeKind = "Modified"
	Deleted  ChangeKind = "Deleted"
)

// RawChange is one unfiltered, undebounced filesystem observation.
type RawChange struct {
	Path       string
	Kind       ChangeKind
	ObservedAt time.Time
}

// FileSystemPort is the seam onto the filesystem (spec.md §4.1).
type FileSystemPort interface {
	// Watch returns a channel of raw changes under root. The channel is
	// closed when ctx is cancelled.
	Watch(ctx context.Context, root string, recursive bool) (<-chan RawChange, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)
}

// EventRecord is the wire-agnostic shape EventSinkPort operates on;
// concrete callers pass events.DomainEvent values through `any` to
// avoid a dependency cycle between ports and events.
type EventRecord = any

// EventSinkPort is the seam onto the append-only journal (spec.md §4.1).
type EventSinkPort interface {
	Append(ctx context.Context, event EventRecord) (offset uint64, err error)
	ReadFrom(ctx context.Context, offset uint64) ([]EventRecord, error)
	LatestVersion(ctx context.Context, aggregateID string) (uint64, error)
}

// ClockPort is the testability seam for `now()` and cancellation
// deadlines (spec.md §4.1); replaying a journal with a deterministic
// ClockPort reproduces the same event sequence.
type ClockPort interface {
	Now() time.Time
}
