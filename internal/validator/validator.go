// Package validator implements C5, the bytecode compatibility gate
// (spec.md §4.5). It is a pure function over two byte strings: given
// the same old and new bytes it always returns the same outcome, and
// it never touches InstrumentationPort.
package validator

import (
	"fmt"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/pkg/bytecode"
)

// Config governs the one policy knob spec.md §4.5 names.
type Config struct {
	// AllowMethodAddition permits new methods when the host runtime
	// supports method-table retransformation. Default false (spec.md
	// §4.5, §9 open question — conservative mode wins by default).
	AllowMethodAddition bool
}

// DefaultConfig matches spec.md §4.5's conservative default.
func DefaultConfig() Config {
	return Config{AllowMethodAddition: false}
}

// Outcome is the tagged-union result of Validate: exactly one of
// Accepted or Rejected is non-nil (spec.md §9 redesign: no exceptions).
type Outcome struct {
	Accepted *events.BytecodeValidatedPayload
	Rejected *events.BytecodeRejectedPayload
	// AddedFields carries the structural detail behind an Accepted
	// outcome's added-field names, so the reconciler (C7) can derive
	// language-default zero values without re-parsing bytecode.
	AddedFields []bytecode.Member
}

// Validate classifies newBytes against oldBytes for className,
// following spec.md §4.5's acceptance rule and rejection-category
// mapping exactly.
func Validate(cfg Config, className string, oldBytes, newBytes []byte) Outcome {
	newCF, err := bytecode.Parse(newBytes)
	if err != nil {
		return Outcome{Rejected: &events.BytecodeRejectedPayload{
			ClassName:      className,
			Category:       events.CategoryUnknown,
			Reason:         "malformed bytecode",
			ViolatedRules:  []string{"parseable class file"},
			SafetyConcerns: []string{err.Error()},
			RemediationHints: []string{
				"confirm the compiler emitted a valid .class file",
				"recompile and retry the change",
			},
		}}
	}

	oldCF, err := bytecode.Parse(oldBytes)
	if err != nil {
		return Outcome{Rejected: &events.BytecodeRejectedPayload{
			ClassName:      className,
			Category:       events.CategoryUnknown,
			Reason:         "malformed bytecode",
			ViolatedRules:  []string{"parseable class file"},
			SafetyConcerns: []string{fmt.Sprintf("previously-loaded bytes unparseable: %v", err)},
			RemediationHints: []string{
				"report this to the agent maintainers — loaded bytecode should always parse",
			},
		}}
	}

	if newCF.ClassName != className || oldCF.ClassName != className {
		return Outcome{Rejected: &events.BytecodeRejectedPayload{
			ClassName:        className,
			Category:         events.CategoryStructuralIncompatibility,
			Reason:           "type hierarchy change",
			ViolatedRules:    []string{"same class name"},
			SafetyConcerns:   []string{"this_class constant does not match the expected class name"},
			RemediationHints: []string{"ensure the recompiled file still declares " + className},
		}}
	}

	diff := bytecode.Compare(oldCF, newCF)

	if diff.SupertypeChanged || diff.InterfacesChanged || diff.NestHostChanged {
		return Outcome{Rejected: rejectTypeHierarchy(className, diff)}
	}

	if len(diff.RemovedFields) > 0 || len(diff.RetypedFields) > 0 || len(diff.AddedFields) > 0 {
		return Outcome{Rejected: rejectFieldSchema(className, diff)}
	}

	if len(diff.RemovedMethods) > 0 || len(diff.ChangedMethodFlags) > 0 {
		return Outcome{Rejected: rejectMethodSchema(className, diff, "removed or re-signatured")}
	}

	if len(diff.AddedMethods) > 0 && !cfg.AllowMethodAddition {
		return Outcome{Rejected: rejectMethodSchema(className, diff, "added while allow_method_addition is false")}
	}

	if diff.ClassFlagsChanged {
		return Outcome{Rejected: &events.BytecodeRejectedPayload{
			ClassName:     className,
			Category:      events.CategoryJVMLimitation,
			Reason:        "class modifiers changed",
			ViolatedRules: []string{"class access flags unchanged"},
			SafetyConcerns: []string{
				fmt.Sprintf("access flags changed from 0x%04x to 0x%04x", oldCF.AccessFlags, newCF.AccessFlags),
			},
			RemediationHints: []string{"revert the public/final/abstract/enum/interface modifiers"},
		}}
	}

	return Outcome{
		Accepted: &events.BytecodeValidatedPayload{
			ClassName: className,
			Accepted:  true,
			Diff:      summarize(diff),
		},
		AddedFields: diff.AddedFields,
	}
}

func summarize(diff bytecode.Diff) events.DiffSummary {
	names := func(members []bytecode.Member) []string {
		out := make([]string, 0, len(members))
		for _, m := range members {
			out = append(out, m.Name+m.Descriptor)
		}
		return out
	}
	return events.DiffSummary{
		AddedMethods:         names(diff.AddedMethods),
		RemovedMethods:       names(diff.RemovedMethods),
		AddedFields:          names(diff.AddedFields),
		RemovedFields:        names(diff.RemovedFields),
		ChangedFieldTypes:    names(diff.RetypedFields),
		ConstantPoolExpanded: diff.Class == bytecode.ChangeBodyOnly,
	}
}

func rejectTypeHierarchy(className string, diff bytecode.Diff) *events.BytecodeRejectedPayload {
	concerns := []string{}
	rules := []string{"same superclass", "same direct interface set"}
	if diff.SupertypeChanged {
		concerns = append(concerns, "superclass changed")
	}
	if diff.InterfacesChanged {
		concerns = append(concerns, "implemented interface set changed")
	}
	if diff.NestHostChanged {
		concerns = append(concerns, "nest host changed")
		rules = append(rules, "same nest host")
	}
	return &events.BytecodeRejectedPayload{
		ClassName:        className,
		Category:         events.CategoryStructuralIncompatibility,
		Reason:           "type hierarchy change",
		ViolatedRules:    rules,
		SafetyConcerns:   concerns,
		RemediationHints: []string{"revert the class/interface hierarchy change", "restart the JVM to apply this change"},
	}
}

func rejectFieldSchema(className string, diff bytecode.Diff) *events.BytecodeRejectedPayload {
	concerns := make([]string, 0, len(diff.RemovedFields)+len(diff.RetypedFields)+len(diff.AddedFields))
	for _, f := range diff.RemovedFields {
		concerns = append(concerns, "field removed: "+f.Name)
	}
	for _, f := range diff.RetypedFields {
		concerns = append(concerns, "field retyped: "+f.Name)
	}
	for _, f := range diff.AddedFields {
		concerns = append(concerns, "field added: "+f.Name)
	}
	return &events.BytecodeRejectedPayload{
		ClassName:        className,
		Category:         events.CategoryStructuralIncompatibility,
		Reason:           "field schema change",
		ViolatedRules:    []string{"no field added, removed, renamed, or retyped"},
		SafetyConcerns:   concerns,
		RemediationHints: []string{"revert field change", "restart the JVM to apply this change"},
	}
}

func rejectMethodSchema(className string, diff bytecode.Diff, cause string) *events.BytecodeRejectedPayload {
	concerns := make([]string, 0)
	for _, m := range diff.RemovedMethods {
		concerns = append(concerns, "method removed: "+m.Name+m.Descriptor)
	}
	for _, m := range diff.ChangedMethodFlags {
		concerns = append(concerns, "method modifiers changed: "+m.Name+m.Descriptor)
	}
	for _, m := range diff.AddedMethods {
		concerns = append(concerns, "method "+cause+": "+m.Name+m.Descriptor)
	}
	return &events.BytecodeRejectedPayload{
		ClassName:        className,
		Category:         events.CategoryStructuralIncompatibility,
		Reason:           "method schema change",
		ViolatedRules:    []string{"no method removed or re-signatured", "no method added unless allow_method_addition is true"},
		SafetyConcerns:   concerns,
		RemediationHints: []string{"revert the method signature change", "set allow_method_addition=true if the new method is intentional and the host supports it"},
	}
}
