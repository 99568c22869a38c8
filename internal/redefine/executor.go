// Package redefine implements C6, the redefinition executor
// (spec.md §4.6). It snapshots the class, calls
// InstrumentationPort.Redefine under a deadline, and classifies the
// outcome. It never appends to the journal itself — session.go owns
// event-envelope construction so every component stays a pure
// decision-maker over its inputs.
package redefine

import (
	"context"
	"errors"
	"time"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
	"github.com/bytehotd/bytehotd/internal/snapshot"
)

// DefaultDeadline matches spec.md §5's default redefine deadline.
const DefaultDeadline = 5 * time.Second

// Executor drives one class's redefinition attempt.
type Executor struct {
	instrumentation ports.InstrumentationPort
	snapshots       *snapshot.Manager
	clock           ports.ClockPort
	deadline        time.Duration
}

// New constructs an Executor. A deadline of zero uses DefaultDeadline.
func New(instrumentation ports.InstrumentationPort, snapshots *snapshot.Manager, clock ports.ClockPort, deadline time.Duration) *Executor {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Executor{instrumentation: instrumentation, snapshots: snapshots, clock: clock, deadline: deadline}
}

// Result is the tagged-union outcome of Execute.
type Result struct {
	SnapshotID string
	Succeeded  *events.RedefinitionSucceededPayload
	Failed     *events.RedefinitionFailedPayload
}

// Execute snapshots handle, calls Redefine under the configured
// deadline, and classifies the result (spec.md §4.6 steps 1-5).
func (e *Executor) Execute(ctx context.Context, handle ports.ClassHandle, newBytes []byte) Result {
	className := handle.ClassName()

	snap, err := e.snapshots.Capture(ctx, handle)
	if err != nil {
		return Result{Failed: &events.RedefinitionFailedPayload{
			ClassName:    className,
			Category:     events.RuntimeInternalError,
			Reason:       "failed to capture pre-redefinition snapshot",
			JVMError:     err.Error(),
			RecoveryHint: "verify InstrumentationPort.bytecode_of and instances_of are reachable",
		}}
	}

	start := e.clock.Now()
	deadlineCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	redefineErr := e.instrumentation.Redefine(deadlineCtx, handle, newBytes)
	duration := e.clock.Now().Sub(start)

	if redefineErr != nil {
		return Result{SnapshotID: snap.ID, Failed: classifyFailure(className, deadlineCtx, redefineErr)}
	}

	instances, err := e.instrumentation.InstancesOf(ctx, handle)
	affected := 0
	if err == nil {
		affected = len(instances)
	}

	return Result{
		SnapshotID: snap.ID,
		Succeeded: &events.RedefinitionSucceededPayload{
			ClassName:         className,
			Duration:          duration,
			AffectedInstances: affected,
		},
	}
}

func classifyFailure(className string, ctx context.Context, err error) *events.RedefinitionFailedPayload {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &events.RedefinitionFailedPayload{
			ClassName:    className,
			Category:     events.RuntimeTimeout,
			Reason:       "redefine exceeded the configured deadline",
			JVMError:     err.Error(),
			RecoveryHint: "increase redefine_timeout_ms or investigate host-side latency",
		}
	}

	var rtErr *ports.RuntimeError
	if errors.As(err, &rtErr) {
		return &events.RedefinitionFailedPayload{
			ClassName:    className,
			Category:     mapRuntimeCategory(rtErr.Category),
			Reason:       rtErr.Message,
			JVMError:     rtErr.Error(),
			RecoveryHint: recoveryHintFor(rtErr.Category),
		}
	}

	return &events.RedefinitionFailedPayload{
		ClassName:    className,
		Category:     events.RuntimeOther,
		Reason:       "redefine failed",
		JVMError:     err.Error(),
		RecoveryHint: "inspect the host runtime logs for details",
	}
}

func mapRuntimeCategory(c ports.RuntimeErrorCategory) events.RuntimeErrorCategory {
	switch c {
	case ports.RuntimeUnsupportedSchemaChange:
		return events.RuntimeUnsupportedSchemaChange
	case ports.RuntimeClassNotLoaded:
		return events.RuntimeClassNotLoaded
	case ports.RuntimeVerifyError:
		return events.RuntimeVerifyError
	case ports.RuntimeInternalError:
		return events.RuntimeInternalError
	default:
		return events.RuntimeOther
	}
}

func recoveryHintFor(c ports.RuntimeErrorCategory) string {
	switch c {
	case ports.RuntimeUnsupportedSchemaChange:
		return "the host runtime rejected a change the validator accepted; tighten allow_method_addition or the validator rules"
	case ports.RuntimeClassNotLoaded:
		return "the target class was unloaded between resolution and redefine; rescan the watch root"
	case ports.RuntimeVerifyError:
		return "the new bytecode failed JVM verification; recompile and retry"
	case ports.RuntimeInternalError:
		return "the host runtime reported an internal error; retry or restart the JVM"
	default:
		return "inspect the host runtime logs for details"
	}
}
