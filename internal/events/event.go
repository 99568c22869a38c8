// Package events defines the flat DomainEvent envelope and the
// exhaustive set of payload variants the core pipeline produces
// (spec.md §3, §6). Polymorphism is expressed by switching on
// PayloadType rather than by a class hierarchy (spec.md §9).
package events

import (
	"time"

	"github.com/google/uuid"
)

// PayloadType enumerates every event variant the core emits.
type PayloadType string

const (
	TypeFileChanged            PayloadType = "FileChanged"
	TypeFileProcessed          PayloadType = "FileProcessed"
	TypeFileDeleted            PayloadType = "FileDeleted"
	TypeDroppedChange          PayloadType = "DroppedChange"
	TypeBytecodeValidated      PayloadType = "BytecodeValidated"
	TypeBytecodeRejected       PayloadType = "BytecodeRejected"
	TypeHotSwapRequested       PayloadType = "HotSwapRequested"
	TypeRedefinitionSucceeded  PayloadType = "RedefinitionSucceeded"
	TypeRedefinitionFailed     PayloadType = "RedefinitionFailed"
	TypeSnapshotCreated        PayloadType = "SnapshotCreated"
	TypeInstancesUpdated       PayloadType = "InstancesUpdated"
	TypeInstanceUpdateFailed   PayloadType = "InstanceUpdateFailed"
	TypeFrameworkNotified      PayloadType = "FrameworkNotified"
	TypeRollbackPerformed      PayloadType = "RollbackPerformed"
	TypeRollbackFailed         PayloadType = "RollbackFailed"
	TypeRollbackSkipped        PayloadType = "RollbackSkipped"
	TypeClassQuarantined       PayloadType = "ClassQuarantined"
	TypeClassReset             PayloadType = "ClassReset"
	TypePatternDetected        PayloadType = "PatternDetected"
	TypeSessionStarted         PayloadType = "SessionStarted"
	TypeSessionTerminated      PayloadType = "SessionTerminated"
	TypeWatchPathConfigured    PayloadType = "WatchPathConfigured"
	TypeAgentAttached          PayloadType = "AgentAttached"
)

// SchemaVersion is the current wire-record schema version (spec.md §4.2:
// schema evolution is additive-only; readers back-fill defaults for
// older versions and preserve unknown fields from newer ones).
const SchemaVersion uint32 = 1

// DomainEvent is the common header shared by every variant. Payload
// carries variant-specific fields keyed by PayloadType; once appended
// an event is immutable (spec.md §3).
type DomainEvent struct {
	EventID              string      `json:"event_id"`
	AggregateType        string      `json:"aggregate_type"`
	AggregateID          string      `json:"aggregate_id"`
	AggregateVersion     uint64      `json:"aggregate_version"`
	CausalPredecessorID  string      `json:"causal_predecessor_id,omitempty"`
	CorrelationID        string      `json:"correlation_id"`
	SchemaVersion        uint32      `json:"schema_version"`
	EmittedAt            time.Time   `json:"emitted_at"`
	UserID               string      `json:"user_id,omitempty"`
	PayloadType          PayloadType `json:"payload_type"`
	Payload              any         `json:"payload"`
}

// Header carries the fields a caller supplies; EventID, SchemaVersion,
// and EmittedAt are filled in by New.
type Header struct {
	AggregateType       string
	AggregateID         string
	AggregateVersion    uint64
	CausalPredecessorID string
	CorrelationID       string
	UserID              string
	EmittedAt           time.Time
}

// New constructs a DomainEvent envelope around payload. EmittedAt must
// be supplied by the caller (via a ClockPort) so that replay with a
// deterministic clock is reproducible (spec.md §4.2 replay contract).
func New(h Header, payloadType PayloadType, payload any) DomainEvent {
	return DomainEvent{
		EventID:             uuid.NewString(),
		AggregateType:       h.AggregateType,
		AggregateID:         h.AggregateID,
		AggregateVersion:    h.AggregateVersion,
		CausalPredecessorID: h.CausalPredecessorID,
		CorrelationID:       h.CorrelationID,
		SchemaVersion:       SchemaVersion,
		EmittedAt:           h.EmittedAt,
		UserID:              h.UserID,
		PayloadType:         payloadType,
		Payload:             payload,
	}
}

// NewCorrelationID generates a fresh correlation id for a newly
// observed file change; every downstream event for that change shares
// it (spec.md glossary: "Correlation id").
func NewCorrelationID() string {
	return uuid.NewString()
}
