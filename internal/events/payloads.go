package events

import "time"

// ChangeKind mirrors FileSystemPort's change kind (spec.md §4.1).
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "Created"
	ChangeModified ChangeKind = "Modified"
	ChangeDeleted  ChangeKind = "Deleted"
)

// FileChangedPayload corresponds to the ChangeEvent data model
// (spec.md §3), forwarded by the watcher after debounce+dedup.
type FileChangedPayload struct {
	Path        string     `json:"path"`
	ClassName   string     `json:"class_name,omitempty"`
	Kind        ChangeKind `json:"kind"`
	FileSize    int64      `json:"file_size"`
	DetectedAt  time.Time  `json:"detected_at"`
	Fingerprint string     `json:"fingerprint"`
}

// ProcessedResult enumerates terminal non-redefinition outcomes for a
// FileChanged event (spec.md §4.3-4.4, §8).
type ProcessedResult string

const (
	ProcessedIgnored  ProcessedResult = "IGNORED"
	ProcessedFailed   ProcessedResult = "FAILED"
	ProcessedDeferred ProcessedResult = "DEFERRED"
)

// FileProcessedPayload closes out a change that never reached
// validation (ignored duplicate, parse failure, quarantined class, or
// persistent I/O failure).
type FileProcessedPayload struct {
	Path   string          `json:"path"`
	Result ProcessedResult `json:"result"`
	Reason string          `json:"reason"`
}

// FileDeletedPayload marks a class file removal; never triggers
// redefinition (spec.md §4.3).
type FileDeletedPayload struct {
	Path      string `json:"path"`
	ClassName string `json:"class_name,omitempty"`
}

// DroppedChangePayload records a watcher backpressure drop
// (spec.md §4.3: latest-wins under backpressure).
type DroppedChangePayload struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RejectCategory mirrors ValidationOutcome's category (spec.md §3).
type RejectCategory string

const (
	CategoryStructuralIncompatibility RejectCategory = "STRUCTURAL_INCOMPATIBILITY"
	CategoryJVMLimitation             RejectCategory = "JVM_LIMITATION"
	CategoryFrameworkConflict         RejectCategory = "FRAMEWORK_CONFLICT"
	CategorySecurity                  RejectCategory = "SECURITY"
	CategoryUnknown                   RejectCategory = "UNKNOWN"
)

// DiffSummary is the serializable projection of BytecodeDiff
// (spec.md §3) attached to an Accepted outcome.
type DiffSummary struct {
	AddedMethods            []string `json:"added_methods,omitempty"`
	RemovedMethods          []string `json:"removed_methods,omitempty"`
	ChangedMethodSignatures []string `json:"changed_method_signatures,omitempty"`
	AddedFields             []string `json:"added_fields,omitempty"`
	RemovedFields           []string `json:"removed_fields,omitempty"`
	ChangedFieldTypes       []string `json:"changed_field_types,omitempty"`
	ConstantPoolExpanded    bool     `json:"constant_pool_expanded_only"`
}

// BytecodeValidatedPayload is emitted on Accepted.
type BytecodeValidatedPayload struct {
	ClassName string      `json:"class_name"`
	Accepted  bool        `json:"accepted"`
	Diff      DiffSummary `json:"diff_summary"`
}

// BytecodeRejectedPayload is emitted on Rejected.
type BytecodeRejectedPayload struct {
	ClassName        string         `json:"class_name"`
	Category         RejectCategory `json:"category"`
	Reason           string         `json:"reason"`
	ViolatedRules    []string       `json:"violated_rules"`
	SafetyConcerns   []string       `json:"safety_concerns,omitempty"`
	RemediationHints []string       `json:"remediation_hints"`
}

// HotSwapRequestedPayload records the decision to proceed to redefine.
type HotSwapRequestedPayload struct {
	ClassName string `json:"class_name"`
}

// RedefinitionSucceededPayload mirrors spec.md §4.6 step 4.
type RedefinitionSucceededPayload struct {
	ClassName         string        `json:"class_name"`
	Duration          time.Duration `json:"duration"`
	AffectedInstances int           `json:"affected_instances"`
}

// RuntimeErrorCategory mirrors InstrumentationPort's RuntimeError
// category (spec.md §4.1).
type RuntimeErrorCategory string

const (
	RuntimeUnsupportedSchemaChange RuntimeErrorCategory = "UnsupportedSchemaChange"
	RuntimeClassNotLoaded          RuntimeErrorCategory = "ClassNotLoaded"
	RuntimeVerifyError             RuntimeErrorCategory = "VerifyError"
	RuntimeInternalError           RuntimeErrorCategory = "InternalError"
	RuntimeTimeout                 RuntimeErrorCategory = "Timeout"
	RuntimeOther                   RuntimeErrorCategory = "Other"
)

// RedefinitionFailedPayload mirrors spec.md §4.6 step 5.
type RedefinitionFailedPayload struct {
	ClassName     string                `json:"class_name"`
	Category      RuntimeErrorCategory  `json:"category"`
	Reason        string                `json:"reason"`
	JVMError      string                `json:"jvm_error,omitempty"`
	RecoveryHint  string                `json:"recovery_hint"`
}

// SnapshotCreatedPayload records a pre-redefinition snapshot capture
// (spec.md §4.8).
type SnapshotCreatedPayload struct {
	SnapshotID    string `json:"snapshot_id"`
	ClassName     string `json:"class_name"`
	InstanceCount int    `json:"instance_count"`
}

// InstancesUpdatedPayload closes out a successful reconciliation
// (spec.md §4.7).
type InstancesUpdatedPayload struct {
	ClassName      string `json:"class_name"`
	Count          int    `json:"count"`
	StatePreserved bool   `json:"state_preserved"`
}

// InstanceUpdateFailedPayload records a per-instance reconciliation
// failure (spec.md §4.7).
type InstanceUpdateFailedPayload struct {
	ClassName  string `json:"class_name"`
	InstanceID string `json:"instance_id"`
	Cause      string `json:"cause"`
}

// FrameworkNotifiedPayload records a framework-hook notification
// (spec.md §4.7: the core never implements the frameworks themselves).
type FrameworkNotifiedPayload struct {
	ClassName string `json:"class_name"`
	HookName  string `json:"hook_name"`
}

// RollbackResult enumerates cascading-rollback outcomes (spec.md §4.8).
type RollbackResult string

const (
	RollbackSuccess RollbackResult = "success"
	RollbackPartial RollbackResult = "partial"
)

// RollbackPerformedPayload records a (possibly cascading) rollback.
type RollbackPerformedPayload struct {
	SnapshotID string         `json:"snapshot_id"`
	ClassName  string         `json:"class_name"`
	Result     RollbackResult `json:"result"`
}

// RollbackFailedPayload is a fatal outcome requiring operator attention
// (spec.md §4.8).
type RollbackFailedPayload struct {
	SnapshotID string `json:"snapshot_id"`
	ClassName  string `json:"class_name"`
	Cause      string `json:"cause"`
}

// RollbackSkippedPayload records that no rollback was necessary
// (e.g. a RedefinitionFailed whose underlying call never mutated state).
type RollbackSkippedPayload struct {
	ClassName string `json:"class_name"`
	Reason    string `json:"reason"`
}

// ClassQuarantinedPayload records a quarantine transition
// (spec.md §4.9).
type ClassQuarantinedPayload struct {
	ClassName  string `json:"class_name"`
	ErrorCount int    `json:"error_count"`
	WindowMS   int64  `json:"window_ms"`
}

// ClassResetPayload records a manual (or auto-expired) quarantine
// reset. OperatorID is empty for auto-expiry.
type ClassResetPayload struct {
	ClassName  string `json:"class_name"`
	OperatorID string `json:"operator_id,omitempty"`
}

// PatternDetectedPayload fires when repeated same-kind errors recur on
// the same class (spec.md §4.9).
type PatternDetectedPayload struct {
	ClassName string `json:"class_name"`
	ErrorKind string `json:"error_kind"`
	Count     int    `json:"count"`
}

// SessionStartedPayload / SessionTerminatedPayload bracket an agent
// attach (spec.md §3 SessionState).
type SessionStartedPayload struct {
	WatchRoots []string `json:"watch_roots"`
}

type SessionTerminatedPayload struct {
	Reason string `json:"reason"`
}

// WatchPathConfiguredPayload records a configured watch root
// (spec.md §6).
type WatchPathConfiguredPayload struct {
	Root      string `json:"root"`
	Recursive bool   `json:"recursive"`
}

// AgentAttachedPayload records the host process attaching the agent.
type AgentAttachedPayload struct {
	RedefineSupported    bool `json:"redefine_supported"`
	RetransformSupported bool `json:"retransform_supported"`
}
