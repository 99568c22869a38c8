// Package errors implements C9, the error classifier and recovery
// coordinator (spec.md §4.9). It never panics across a pipeline stage
// boundary: every classification is a plain value the caller routes
// into the next step.
package errors

import (
	"context"
	"sync"
	"time"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
)

// Kind enumerates the throwable categories spec.md §4.9 names.
type Kind string

const (
	KindValidationError     Kind = "ValidationError"
	KindRedefinitionFailure Kind = "RedefinitionFailure"
	KindInstanceUpdateError Kind = "InstanceUpdateError"
	KindFileSystemError     Kind = "FileSystemError"
	KindConfigurationError  Kind = "ConfigurationError"
	KindCriticalSystemError Kind = "CriticalSystemError"
)

// Severity mirrors spec.md §4.9's severity column.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Strategy mirrors spec.md §4.9's default-strategy column.
type Strategy string

const (
	StrategyRejectChange        Strategy = "REJECT_CHANGE"
	StrategyRollbackChanges     Strategy = "ROLLBACK_CHANGES"
	StrategyPreserveCurrentState Strategy = "PRESERVE_CURRENT_STATE"
	StrategyRetryOperation      Strategy = "RETRY_OPERATION"
	StrategyFallbackMode        Strategy = "FALLBACK_MODE"
	StrategyEmergencyShutdown   Strategy = "EMERGENCY_SHUTDOWN"
)

type classification struct {
	severity Severity
	strategy Strategy
}

// table is the fixed Kind → (Severity, Strategy) mapping from
// spec.md §4.9's table, verbatim.
var table = map[Kind]classification{
	KindValidationError:     {SeverityWarning, StrategyRejectChange},
	KindRedefinitionFailure: {SeverityError, StrategyRollbackChanges},
	KindInstanceUpdateError: {SeverityError, StrategyPreserveCurrentState},
	KindFileSystemError:     {SeverityWarning, StrategyRetryOperation},
	KindConfigurationError:  {SeverityError, StrategyFallbackMode},
	KindCriticalSystemError: {SeverityCritical, StrategyEmergencyShutdown},
}

// Result is the classification of one error occurrence, carrying the
// correlation id and cause spec.md §4.9 requires on every ErrorResult.
type Result struct {
	Kind          Kind
	Severity      Severity
	Strategy      Strategy
	ClassName     string
	CorrelationID string
	Cause         string
	OccurredAt    time.Time
}

// Classify maps kind to its severity and strategy and stamps the
// result with the triggering change's correlation id and cause.
func Classify(kind Kind, className, correlationID, cause string, now time.Time) Result {
	c := table[kind]
	return Result{
		Kind:          kind,
		Severity:      c.severity,
		Strategy:      c.strategy,
		ClassName:     className,
		CorrelationID: correlationID,
		Cause:         cause,
		OccurredAt:    now,
	}
}

// DefaultQuarantineThreshold and DefaultQuarantineWindow match
// spec.md §4.9's defaults (N=5 errors within 60s).
const (
	DefaultQuarantineThreshold = 5
	DefaultQuarantineWindow    = 60 * time.Second
)

// patternThreshold is this implementation's resolution of spec.md §9's
// open question on pattern-detection sensitivity: spec.md names the
// PatternDetected trigger ("repeated same-kind errors on the same
// class") without a number. Three same-kind occurrences within the
// quarantine window is chosen as a detectable-but-not-noisy signal,
// always reached strictly before the default quarantine threshold of
// five so operators see the pattern before the class goes dark.
const patternThreshold = 3

type occurrence struct {
	kind Kind
	at   time.Time
}

// Coordinator tracks per-class error history and quarantine state
// (spec.md §4.9).
type Coordinator struct {
	clock     ports.ClockPort
	threshold int
	window    time.Duration

	mu          sync.Mutex
	history     map[string][]occurrence
	quarantined map[string]bool
	subscribers []func(events.PatternDetectedPayload)
	mirror      Mirror
}

// Mirror shares quarantine membership across processes (see
// internal/errors/quarantinecache). Record and Reset best-effort
// update it; a Mirror error never blocks or fails the pipeline, since
// the in-memory map stays authoritative for this process.
type Mirror interface {
	Mark(ctx context.Context, className string, ttl time.Duration) error
	Clear(ctx context.Context, className string) error
}

// WithMirror attaches a cross-process quarantine mirror.
func (c *Coordinator) WithMirror(m Mirror) *Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = m
	return c
}

// NewCoordinator constructs a Coordinator. A zero threshold or window
// uses the spec's defaults.
func NewCoordinator(clock ports.ClockPort, threshold int, window time.Duration) *Coordinator {
	if threshold <= 0 {
		threshold = DefaultQuarantineThreshold
	}
	if window <= 0 {
		window = DefaultQuarantineWindow
	}
	return &Coordinator{
		clock:       clock,
		threshold:   threshold,
		window:      window,
		history:     map[string][]occurrence{},
		quarantined: map[string]bool{},
	}
}

// Outcome bundles everything Record learns about one error occurrence.
type Outcome struct {
	Result      Result
	Quarantine  *events.ClassQuarantinedPayload
	Pattern     *events.PatternDetectedPayload
}

// IsQuarantined reports whether className currently rejects changes.
func (c *Coordinator) IsQuarantined(className string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quarantined[className]
}

// QuarantinedClasses lists every class currently rejecting changes,
// for the admin surface's GET /quarantine.
func (c *Coordinator) QuarantinedClasses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	classes := make([]string, 0, len(c.quarantined))
	for name := range c.quarantined {
		classes = append(classes, name)
	}
	return classes
}

// Record classifies kind for className and updates the sliding-window
// error count, quarantining the class when the threshold is crossed
// and flagging a recurring-pattern when the same kind repeats.
func (c *Coordinator) Record(kind Kind, className, correlationID, cause string) Outcome {
	now := c.clock.Now()
	result := Classify(kind, className, correlationID, cause, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.window)
	kept := c.history[className][:0]
	for _, occ := range c.history[className] {
		if occ.at.After(cutoff) {
			kept = append(kept, occ)
		}
	}
	kept = append(kept, occurrence{kind: kind, at: now})
	c.history[className] = kept

	outcome := Outcome{Result: result}

	sameKind := 0
	for _, occ := range kept {
		if occ.kind == kind {
			sameKind++
		}
	}
	if sameKind == patternThreshold {
		pattern := events.PatternDetectedPayload{
			ClassName: className,
			ErrorKind: string(kind),
			Count:     sameKind,
		}
		outcome.Pattern = &pattern
		for _, sub := range c.subscribers {
			sub(pattern)
		}
	}

	if !c.quarantined[className] && len(kept) >= c.threshold {
		c.quarantined[className] = true
		outcome.Quarantine = &events.ClassQuarantinedPayload{
			ClassName:  className,
			ErrorCount: len(kept),
			WindowMS:   c.window.Milliseconds(),
		}
		if c.mirror != nil {
			_ = c.mirror.Mark(context.Background(), className, c.window)
		}
	}

	return outcome
}

// Subscribe registers fn to be called synchronously whenever Record
// detects a repeated same-kind error pattern (SPEC_FULL.md §4 C9a).
// Subscribers must not call back into the Coordinator.
func (c *Coordinator) Subscribe(fn func(events.PatternDetectedPayload)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Reset clears quarantine and history for className, recording the
// operator identity performing the reset (empty for auto-expiry).
func (c *Coordinator) Reset(className, operatorID string) events.ClassResetPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quarantined, className)
	delete(c.history, className)
	if c.mirror != nil {
		_ = c.mirror.Clear(context.Background(), className)
	}
	return events.ClassResetPayload{ClassName: className, OperatorID: operatorID}
}
