// Package reconcile implements C7, the instance reconciler
// (spec.md §4.7). After a successful redefinition it walks every live
// instance of the redefined class, initializes newly-added field slots
// to their language-default zero values, and reports per-hook
// framework notifications — without implementing any framework itself.
package reconcile

import (
	"context"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
	"github.com/bytehotd/bytehotd/pkg/bytecode"
)

// Reconciler walks instances of a redefined class.
type Reconciler struct {
	instrumentation ports.InstrumentationPort
	frameworkHooks  []string
}

// New constructs a Reconciler. frameworkHooks are hook names supplied
// via configuration (spec.md §4.7); C7 emits one FrameworkNotified
// event per hook and never calls into the named framework.
func New(instrumentation ports.InstrumentationPort, frameworkHooks []string) *Reconciler {
	return &Reconciler{instrumentation: instrumentation, frameworkHooks: frameworkHooks}
}

// Result collects every event C7 produces for one redefinition.
type Result struct {
	Updated          *events.InstancesUpdatedPayload
	Failures         []events.InstanceUpdateFailedPayload
	FrameworkNotices []events.FrameworkNotifiedPayload
}

// Reconcile enumerates instances of handle and initializes any
// addedFields to their zero values. A method-only change (no added
// fields) is a no-op per instance — the method table swap already
// took effect (spec.md §4.7).
func (r *Reconciler) Reconcile(ctx context.Context, handle ports.ClassHandle, addedFields []bytecode.Member) Result {
	className := handle.ClassName()
	result := Result{}

	instances, err := r.instrumentation.InstancesOf(ctx, handle)
	if err != nil {
		result.Failures = append(result.Failures, events.InstanceUpdateFailedPayload{
			ClassName: className,
			Cause:     "failed to enumerate instances: " + err.Error(),
		})
		return r.withFrameworkNotices(className, result)
	}

	updated := 0
	for _, inst := range instances {
		if len(addedFields) == 0 {
			updated++
			continue
		}
		if err := r.initializeAddedFields(ctx, inst, addedFields); err != nil {
			result.Failures = append(result.Failures, events.InstanceUpdateFailedPayload{
				ClassName:  className,
				InstanceID: inst.InstanceID(),
				Cause:      err.Error(),
			})
			continue
		}
		updated++
	}

	result.Updated = &events.InstancesUpdatedPayload{
		ClassName:      className,
		Count:          updated,
		StatePreserved: len(addedFields) == 0,
	}

	return r.withFrameworkNotices(className, result)
}

func (r *Reconciler) initializeAddedFields(ctx context.Context, inst ports.InstanceRef, addedFields []bytecode.Member) error {
	defaults := make(map[string]any, len(addedFields))
	for _, f := range addedFields {
		defaults[f.Name] = bytecode.ZeroValue(f.Descriptor)
	}
	return r.instrumentation.SetFields(ctx, inst, defaults)
}

func (r *Reconciler) withFrameworkNotices(className string, result Result) Result {
	for _, hook := range r.frameworkHooks {
		result.FrameworkNotices = append(result.FrameworkNotices, events.FrameworkNotifiedPayload{
			ClassName: className,
			HookName:  hook,
		})
	}
	return result
}
