package journal

import (
	"encoding/json"
	"fmt"

	"github.com/bytehotd/bytehotd/internal/events"
)

// payloadDecoders maps each PayloadType to the concrete struct a
// durable backend must unmarshal its stored JSON into. A backend that
// keeps DomainEvent.Payload as a live Go value (memstore) never needs
// this; one that round-trips through a column (sqlitestore) does.
var payloadDecoders = map[events.PayloadType]func([]byte) (any, error){
	events.TypeFileChanged:           decodeInto[events.FileChangedPayload],
	events.TypeFileProcessed:         decodeInto[events.FileProcessedPayload],
	events.TypeFileDeleted:           decodeInto[events.FileDeletedPayload],
	events.TypeDroppedChange:         decodeInto[events.DroppedChangePayload],
	events.TypeBytecodeValidated:     decodeInto[events.BytecodeValidatedPayload],
	events.TypeBytecodeRejected:      decodeInto[events.BytecodeRejectedPayload],
	events.TypeHotSwapRequested:      decodeInto[events.HotSwapRequestedPayload],
	events.TypeRedefinitionSucceeded: decodeInto[events.RedefinitionSucceededPayload],
	events.TypeRedefinitionFailed:    decodeInto[events.RedefinitionFailedPayload],
	events.TypeSnapshotCreated:       decodeInto[events.SnapshotCreatedPayload],
	events.TypeInstancesUpdated:      decodeInto[events.InstancesUpdatedPayload],
	events.TypeInstanceUpdateFailed:  decodeInto[events.InstanceUpdateFailedPayload],
	events.TypeFrameworkNotified:     decodeInto[events.FrameworkNotifiedPayload],
	events.TypeRollbackPerformed:     decodeInto[events.RollbackPerformedPayload],
	events.TypeRollbackFailed:        decodeInto[events.RollbackFailedPayload],
	events.TypeRollbackSkipped:       decodeInto[events.RollbackSkippedPayload],
	events.TypeClassQuarantined:      decodeInto[events.ClassQuarantinedPayload],
	events.TypeClassReset:            decodeInto[events.ClassResetPayload],
	events.TypePatternDetected:       decodeInto[events.PatternDetectedPayload],
	events.TypeSessionStarted:        decodeInto[events.SessionStartedPayload],
	events.TypeSessionTerminated:     decodeInto[events.SessionTerminatedPayload],
	events.TypeWatchPathConfigured:   decodeInto[events.WatchPathConfiguredPayload],
	events.TypeAgentAttached:         decodeInto[events.AgentAttachedPayload],
}

func decodeInto[T any](raw []byte) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodePayload unmarshals raw JSON into the concrete struct
// registered for payloadType.
func DecodePayload(payloadType events.PayloadType, raw []byte) (any, error) {
	decode, ok := payloadDecoders[payloadType]
	if !ok {
		return nil, fmt.Errorf("journal: unknown payload type %q", payloadType)
	}
	return decode(raw)
}
