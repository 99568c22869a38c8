// Package session wires C1-C9 into the orchestration spec.md §5
// describes: one watcher task per root, a single pipeline per class
// enforcing the strict per-class ordering (FileChanged → Validated or
// Rejected → HotSwapRequested → Succeeded or Failed → InstancesUpdated
// or Rollback), with cross-class work running concurrently. Session
// owns every event-envelope construction; every other component
// reports plain result values and never touches the journal itself.
package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytehotd/bytehotd/internal/classid"
	"github.com/bytehotd/bytehotd/internal/errors"
	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/metrics"
	"github.com/bytehotd/bytehotd/internal/ports"
	"github.com/bytehotd/bytehotd/internal/reconcile"
	"github.com/bytehotd/bytehotd/internal/redefine"
	"github.com/bytehotd/bytehotd/internal/snapshot"
	"github.com/bytehotd/bytehotd/internal/validator"
	"github.com/bytehotd/bytehotd/internal/watcher"
	"github.com/bytehotd/bytehotd/pkg/bytecode"
)

// WatchRoot is one configured directory the session watches (spec.md §6).
type WatchRoot struct {
	Path      string
	Recursive bool
}

// Config governs the session's policy knobs, sourced from
// ConfigurationPort (spec.md §6). A zero value for any duration or
// count field falls back to spec.md's stated default.
type Config struct {
	WatchRoots             []WatchRoot
	Debounce               time.Duration
	IncludePatterns        []string
	ExcludePatterns        []string
	AllowMethodAddition    bool
	RedefineTimeout        time.Duration
	SnapshotRetention      time.Duration
	QuarantineErrorCount   int
	QuarantineWindow       time.Duration
	FrameworkHooks         []string
	ClassIdentityCacheSize int
	TeardownGrace          time.Duration
}

// DefaultConfig applies spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:               watcher.DefaultDebounce,
		RedefineTimeout:        redefine.DefaultDeadline,
		SnapshotRetention:      snapshot.DefaultRetention,
		QuarantineErrorCount:   errors.DefaultQuarantineThreshold,
		QuarantineWindow:       errors.DefaultQuarantineWindow,
		ClassIdentityCacheSize: 2048,
		TeardownGrace:          5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.RedefineTimeout <= 0 {
		c.RedefineTimeout = def.RedefineTimeout
	}
	if c.SnapshotRetention <= 0 {
		c.SnapshotRetention = def.SnapshotRetention
	}
	if c.QuarantineErrorCount <= 0 {
		c.QuarantineErrorCount = def.QuarantineErrorCount
	}
	if c.QuarantineWindow <= 0 {
		c.QuarantineWindow = def.QuarantineWindow
	}
	if c.ClassIdentityCacheSize <= 0 {
		c.ClassIdentityCacheSize = def.ClassIdentityCacheSize
	}
	if c.TeardownGrace <= 0 {
		c.TeardownGrace = def.TeardownGrace
	}
	return c
}

// Session is one agent attach's worth of state (spec.md §3
// SessionState). Configuration is immutable after construction; a
// different configuration takes a new Session rather than a change to
// this one (spec.md §5 shared-resources table).
type Session struct {
	id   string
	cfg  Config
	fs   ports.FileSystemPort
	inst ports.InstrumentationPort
	clk  ports.ClockPort
	sink ports.EventSinkPort

	resolver     *classid.Resolver
	validatorCfg validator.Config
	snapshots    *snapshot.Manager
	executor     *redefine.Executor
	reconciler   *reconcile.Reconciler
	Coordinator  *errors.Coordinator

	watch *watcher.Watcher

	classLocksMu sync.Mutex
	classLocks   map[string]*sync.Mutex

	handlesMu sync.Mutex
	handles   map[string]ports.ClassHandle

	metrics *metrics.Metrics

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Session over the given ports. Every subcomponent
// (classid, validator, snapshot, redefine, reconcile, errors) is a
// plain value built from cfg; Session is the only thing that
// constructs event envelopes and appends them to sink.
func New(inst ports.InstrumentationPort, fs ports.FileSystemPort, sink ports.EventSinkPort, clk ports.ClockPort, cfg Config) (*Session, error) {
	if len(cfg.WatchRoots) == 0 {
		return nil, fmt.Errorf("session: at least one watch root is required")
	}
	cfg = cfg.withDefaults()

	resolver, err := classid.New(cfg.ClassIdentityCacheSize)
	if err != nil {
		return nil, fmt.Errorf("session: construct class identity resolver: %w", err)
	}

	snapshots := snapshot.New(inst, clk, cfg.SnapshotRetention)
	matcher := watcher.NewPathMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)
	watch := watcher.New(fs, clk, watcher.Config{Debounce: cfg.Debounce, Matcher: matcher})

	return &Session{
		id:           events.NewCorrelationID(),
		cfg:          cfg,
		fs:           fs,
		inst:         inst,
		clk:          clk,
		sink:         sink,
		resolver:     resolver,
		validatorCfg: validator.Config{AllowMethodAddition: cfg.AllowMethodAddition},
		snapshots:    snapshots,
		executor:     redefine.New(inst, snapshots, clk, cfg.RedefineTimeout),
		reconciler:   reconcile.New(inst, cfg.FrameworkHooks),
		Coordinator:  errors.NewCoordinator(clk, cfg.QuarantineErrorCount, cfg.QuarantineWindow),
		watch:        watch,
		classLocks:   map[string]*sync.Mutex{},
		handles:      map[string]ports.ClassHandle{},
	}, nil
}

// ID returns the session's aggregate id, stable for its lifetime.
func (s *Session) ID() string { return s.id }

// WithMetrics attaches a Prometheus collector set. Unset, the session
// emits no metrics; set, every journaled event updates the matching
// collector. Must be called before Start.
func (s *Session) WithMetrics(m *metrics.Metrics) *Session {
	s.metrics = m
	return s
}

func (s *Session) recordMetric(payloadType events.PayloadType, payload any) {
	if s.metrics == nil {
		return
	}
	switch payloadType {
	case events.TypeFileChanged:
		s.metrics.FilesChangedTotal.Inc()
	case events.TypeFileProcessed:
		if p, ok := payload.(events.FileProcessedPayload); ok {
			s.metrics.FilesIgnoredTotal.WithLabelValues(string(p.Result)).Inc()
		}
	case events.TypeBytecodeValidated:
		s.metrics.BytecodeValidatedTotal.Inc()
	case events.TypeBytecodeRejected:
		if p, ok := payload.(events.BytecodeRejectedPayload); ok {
			s.metrics.BytecodeRejectedTotal.WithLabelValues(string(p.Category)).Inc()
		}
	case events.TypeSnapshotCreated:
		s.metrics.SnapshotsActive.Inc()
	case events.TypeRedefinitionSucceeded:
		s.metrics.RedefinitionsSucceeded.Inc()
		s.metrics.SnapshotsActive.Dec()
	case events.TypeRedefinitionFailed:
		if p, ok := payload.(events.RedefinitionFailedPayload); ok {
			s.metrics.RedefinitionsFailed.WithLabelValues(string(p.Category)).Inc()
		}
	case events.TypeRollbackPerformed:
		if p, ok := payload.(events.RollbackPerformedPayload); ok {
			s.metrics.RollbacksTotal.WithLabelValues(string(p.Result)).Inc()
		}
		s.metrics.SnapshotsActive.Dec()
	case events.TypeRollbackFailed:
		s.metrics.RollbacksTotal.WithLabelValues("failed").Inc()
		s.metrics.SnapshotsActive.Dec()
	case events.TypeClassQuarantined:
		s.metrics.ClassesQuarantinedTotal.Inc()
		s.metrics.ClassesQuarantinedActive.Inc()
	case events.TypeClassReset:
		s.metrics.ClassesQuarantinedActive.Dec()
	}
}

// Start attaches to the host runtime, begins watching every configured
// root, and launches the dispatch loop. It returns once watching has
// begun; the pipeline runs in background goroutines until Shutdown.
func (s *Session) Start(ctx context.Context) error {
	s.runCtx, s.cancel = context.WithCancel(ctx)

	if err := s.appendSession(events.TypeAgentAttached, events.AgentAttachedPayload{
		RedefineSupported:    s.inst.IsRedefineSupported(),
		RetransformSupported: s.inst.IsRetransformSupported(),
	}, ""); err != nil {
		return fmt.Errorf("session: record agent attach: %w", err)
	}

	roots := make([]string, len(s.cfg.WatchRoots))
	var out <-chan watcher.Output
	for i, root := range s.cfg.WatchRoots {
		roots[i] = root.Path
		ch, err := s.watch.Run(s.runCtx, root.Path, root.Recursive)
		if err != nil {
			s.cancel()
			return fmt.Errorf("session: watch %s: %w", root.Path, err)
		}
		out = ch
		if err := s.appendSession(events.TypeWatchPathConfigured, events.WatchPathConfiguredPayload{
			Root: root.Path, Recursive: root.Recursive,
		}, ""); err != nil {
			s.cancel()
			return fmt.Errorf("session: record watch path: %w", err)
		}
	}

	if err := s.appendSession(events.TypeSessionStarted, events.SessionStartedPayload{WatchRoots: roots}, ""); err != nil {
		s.cancel()
		return fmt.Errorf("session: record session start: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(out)
	}()

	return nil
}

// dispatch fans out each watcher output to its own goroutine so
// different classes' pipelines run concurrently (spec.md §5:
// cross-class parallelism permitted); per-class ordering is enforced
// by classLock, not by this loop's sequencing.
func (s *Session) dispatch(out <-chan watcher.Output) {
	for o := range out {
		o := o
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleOutput(s.runCtx, o)
		}()
	}
}

func (s *Session) handleOutput(ctx context.Context, o watcher.Output) {
	switch {
	case o.Changed != nil:
		s.processChange(ctx, o.Changed)
	case o.Deleted != nil:
		s.processDeleted(ctx, o.Deleted)
	case o.Dropped != nil:
		s.processAggregateless(ctx, o.Dropped.Path, events.TypeDroppedChange, *o.Dropped)
	case o.Processed != nil:
		className, _ := s.resolver.Lookup(o.Processed.Path)
		aggregateID := o.Processed.Path
		if className != "" {
			aggregateID = className
		}
		s.appendClass(aggregateID, events.TypeFileProcessed, *o.Processed, events.NewCorrelationID(), "")
	}
}

func (s *Session) processDeleted(ctx context.Context, deleted *events.FileDeletedPayload) {
	className, _ := s.resolver.Lookup(deleted.Path)
	deleted.ClassName = className
	s.resolver.Forget(deleted.Path)

	aggregateID := deleted.Path
	if className != "" {
		aggregateID = className
	}
	s.appendClass(aggregateID, events.TypeFileDeleted, *deleted, events.NewCorrelationID(), "")
}

func (s *Session) processAggregateless(ctx context.Context, path string, payloadType events.PayloadType, payload any) {
	s.appendClass(path, payloadType, payload, events.NewCorrelationID(), "")
}

// processChange drives one FileChanged through validate → redefine →
// reconcile, enforcing per-class serialization and the exact event
// ordering spec.md §5 requires.
func (s *Session) processChange(ctx context.Context, change *events.FileChangedPayload) {
	correlationID := events.NewCorrelationID()

	content, err := s.fs.Read(ctx, change.Path)
	if err != nil {
		s.appendClass(change.Path, events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedFailed,
			Reason: "failed to read file: " + err.Error(),
		}, correlationID, "")
		return
	}

	className, err := s.resolver.Resolve(ctx, change.Path, content, change.Fingerprint)
	if err != nil {
		s.appendClass(change.Path, events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedIgnored,
			Reason: "not a class file",
		}, correlationID, "")
		return
	}
	change.ClassName = className

	lock := s.classLock(className)
	lock.Lock()
	defer lock.Unlock()

	changedID, err := s.append(className, "Class", events.TypeFileChanged, *change, correlationID, "")
	if err != nil {
		return
	}

	if s.Coordinator.IsQuarantined(className) {
		s.append(className, "Class", events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedDeferred,
			Reason: fmt.Sprintf("class %q is quarantined", className),
		}, correlationID, changedID)
		return
	}

	handle, ok := s.handleFor(ctx, className)
	if !ok {
		s.append(className, "Class", events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedFailed,
			Reason: fmt.Sprintf("class %q not loaded", className),
		}, correlationID, changedID)
		return
	}

	oldBytes, err := s.inst.BytecodeOf(ctx, handle)
	if err != nil {
		s.append(className, "Class", events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedFailed,
			Reason: "failed to read loaded bytecode: " + err.Error(),
		}, correlationID, changedID)
		return
	}

	if bytes.Equal(oldBytes, content) {
		s.append(className, "Class", events.TypeFileProcessed, events.FileProcessedPayload{
			Path: change.Path, Result: events.ProcessedIgnored,
			Reason: "no effective change",
		}, correlationID, changedID)
		return
	}

	outcome := validator.Validate(s.validatorCfg, className, oldBytes, content)
	if outcome.Rejected != nil {
		rejectedID, _ := s.append(className, "Class", events.TypeBytecodeRejected, *outcome.Rejected, correlationID, changedID)
		s.recordError(errors.KindValidationError, className, correlationID, outcome.Rejected.Reason, rejectedID)
		return
	}

	validatedID, err := s.append(className, "Class", events.TypeBytecodeValidated, *outcome.Accepted, correlationID, changedID)
	if err != nil {
		return
	}

	hotswapID, err := s.append(className, "Class", events.TypeHotSwapRequested, events.HotSwapRequestedPayload{ClassName: className}, correlationID, validatedID)
	if err != nil {
		return
	}

	s.executeRedefine(ctx, handle, className, content, outcome.AddedFields, correlationID, hotswapID)
}

func (s *Session) executeRedefine(ctx context.Context, handle ports.ClassHandle, className string, newBytes []byte, addedFields []bytecode.Member, correlationID, causalID string) {
	result := s.executor.Execute(ctx, handle, newBytes)

	if snap, ok := s.snapshots.Get(result.SnapshotID); ok {
		snapID, _ := s.append(className, "Class", events.TypeSnapshotCreated, events.SnapshotCreatedPayload{
			SnapshotID:    snap.ID,
			ClassName:     className,
			InstanceCount: len(snap.InstanceFields),
		}, correlationID, causalID)
		if snapID != "" {
			causalID = snapID
		}
	}

	if result.Failed != nil {
		failedID, _ := s.append(className, "Class", events.TypeRedefinitionFailed, *result.Failed, correlationID, causalID)
		s.recordError(errors.KindRedefinitionFailure, className, correlationID, result.Failed.Reason, failedID)

		rollbackResult, rollbackErr := s.snapshots.Rollback(ctx, handle, result.SnapshotID)
		if rollbackErr != nil {
			s.append(className, "Class", events.TypeRollbackFailed, events.RollbackFailedPayload{
				SnapshotID: result.SnapshotID, ClassName: className, Cause: rollbackErr.Error(),
			}, correlationID, failedID)
			return
		}
		s.append(className, "Class", events.TypeRollbackPerformed, events.RollbackPerformedPayload{
			SnapshotID: result.SnapshotID, ClassName: className, Result: events.RollbackResult(rollbackResult),
		}, correlationID, failedID)
		return
	}

	succeededID, err := s.append(className, "Class", events.TypeRedefinitionSucceeded, *result.Succeeded, correlationID, causalID)
	if err != nil {
		return
	}

	recon := s.reconciler.Reconcile(ctx, handle, addedFields)
	lastID := succeededID
	if recon.Updated != nil {
		id, _ := s.append(className, "Class", events.TypeInstancesUpdated, *recon.Updated, correlationID, lastID)
		if id != "" {
			lastID = id
		}
	}
	for _, failure := range recon.Failures {
		id, _ := s.append(className, "Class", events.TypeInstanceUpdateFailed, failure, correlationID, lastID)
		s.recordError(errors.KindInstanceUpdateError, className, correlationID, failure.Cause, id)
	}
	for _, notice := range recon.FrameworkNotices {
		s.append(className, "Class", events.TypeFrameworkNotified, notice, correlationID, lastID)
	}
}

func (s *Session) recordError(kind errors.Kind, className, correlationID, cause, causalID string) {
	outcome := s.Coordinator.Record(kind, className, correlationID, cause)
	if outcome.Quarantine != nil {
		id, _ := s.append(className, "Class", events.TypeClassQuarantined, *outcome.Quarantine, correlationID, causalID)
		causalID = id
	}
	if outcome.Pattern != nil {
		s.append(className, "Class", events.TypePatternDetected, *outcome.Pattern, correlationID, causalID)
	}
}

// ResetQuarantine clears className's quarantine state and journals the
// reset (SPEC_FULL.md §4 Quarantine reset audit). operatorID is empty
// for internal auto-expiry.
func (s *Session) ResetQuarantine(className, operatorID string) error {
	payload := s.Coordinator.Reset(className, operatorID)
	_, err := s.append(className, "Class", events.TypeClassReset, payload, events.NewCorrelationID(), "")
	return err
}

// Shutdown cancels every watch, waits up to the session's configured
// grace period for in-flight pipelines to drain, then journals
// SessionTerminated regardless of whether everything drained in time
// (spec.md §5: teardown drains with a bounded grace period, then drops
// the rest).
func (s *Session) Shutdown(reason string) {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.TeardownGrace):
		reason = reason + " (teardown grace period exceeded, remaining changes dropped)"
	}

	s.appendSession(events.TypeSessionTerminated, events.SessionTerminatedPayload{Reason: reason}, "")
}

func (s *Session) classLock(className string) *sync.Mutex {
	s.classLocksMu.Lock()
	defer s.classLocksMu.Unlock()
	l, ok := s.classLocks[className]
	if !ok {
		l = &sync.Mutex{}
		s.classLocks[className] = l
	}
	return l
}

// handleFor resolves className to a live ClassHandle, refreshing the
// cache from the host runtime once on a cache miss to pick up classes
// loaded after this session started (spec.md §4.4).
func (s *Session) handleFor(ctx context.Context, className string) (ports.ClassHandle, bool) {
	s.handlesMu.Lock()
	h, ok := s.handles[className]
	s.handlesMu.Unlock()
	if ok {
		return h, true
	}

	classes, err := s.inst.LoadedClasses(ctx)
	if err != nil {
		return nil, false
	}

	s.handlesMu.Lock()
	for _, c := range classes {
		s.handles[c.ClassName()] = c
	}
	h, ok = s.handles[className]
	s.handlesMu.Unlock()
	return h, ok
}

func (s *Session) append(aggregateID, aggregateType string, payloadType events.PayloadType, payload any, correlationID, causalID string) (string, error) {
	version, err := s.sink.LatestVersion(s.bgCtx(), aggregateID)
	if err != nil {
		return "", err
	}
	event := events.New(events.Header{
		AggregateType:       aggregateType,
		AggregateID:         aggregateID,
		AggregateVersion:    version + 1,
		CausalPredecessorID: causalID,
		CorrelationID:       correlationID,
		EmittedAt:           s.clk.Now(),
	}, payloadType, payload)

	if _, err := s.sink.Append(s.bgCtx(), event); err != nil {
		return "", err
	}
	s.recordMetric(payloadType, payload)
	return event.EventID, nil
}

// appendClass appends an event whose aggregate type is always "Class".
func (s *Session) appendClass(aggregateID string, payloadType events.PayloadType, payload any, correlationID, causalID string) {
	s.append(aggregateID, "Class", payloadType, payload, correlationID, causalID)
}

func (s *Session) appendSession(payloadType events.PayloadType, payload any, causalID string) error {
	_, err := s.append(s.id, "Session", payloadType, payload, s.id, causalID)
	return err
}

// bgCtx is the context event appends run under: never tied to a
// per-change deadline, since a journal write must outlive the stage
// that produced it (spec.md §5: the journal writer is single-writer,
// owned by the pipeline task, not by any one stage's cancellation).
func (s *Session) bgCtx() context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}
