// Package watcher implements C3, the file watcher (spec.md §4.3): a
// debounced, content-deduplicating, per-path-ordered stream of class
// file changes, with bounded retry on transient reads and
// latest-wins backpressure.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/ports"
	"github.com/bytehotd/bytehotd/internal/retry"
	"github.com/bytehotd/bytehotd/pkg/fingerprint"
)

// DefaultDebounce matches spec.md §4.3's default debounce window.
const DefaultDebounce = 200 * time.Millisecond

// Output is the tagged-union of everything the watcher forwards
// downstream for one path.
type Output struct {
	Changed   *events.FileChangedPayload
	Deleted   *events.FileDeletedPayload
	Dropped   *events.DroppedChangePayload
	Processed *events.FileProcessedPayload
}

// DefaultRetryRate caps how many transient-read retry attempts the
// watcher issues per second across all watched paths, so a flaky
// filesystem producing widespread read errors can't turn into a
// retry storm.
const DefaultRetryRate = rate.Limit(20)

// Config governs the watcher's policy knobs (spec.md §4.3, §6).
type Config struct {
	Debounce     time.Duration
	Extensions   []string // e.g. ".class"; empty means no extension filter
	Matcher      *PathMatcher
	Retry        retry.Policy
	RetryLimiter *rate.Limiter
	QueueSize    int
}

// DefaultConfig applies spec.md §4.3/§6's defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:     DefaultDebounce,
		Extensions:   []string{".class"},
		Matcher:      NewPathMatcher(nil, nil),
		Retry:        retry.DefaultPolicy(),
		RetryLimiter: rate.NewLimiter(DefaultRetryRate, int(DefaultRetryRate)),
		QueueSize:    256,
	}
}

// pathState tracks per-path debounce, dedup, and delivery bookkeeping.
// Each path has its own delivery goroutine so that latest-wins
// backpressure never reorders a different path's changes.
type pathState struct {
	mu              sync.Mutex
	timer           *time.Timer
	lastForwardedFP string
	pending         ports.RawChange
	hasPending      bool

	deliverMu  sync.Mutex
	pendingOut *Output
	signal     chan struct{}
	started    bool
}

// Watcher drives the raw-change stream from a FileSystemPort into a
// debounced, deduplicated Output stream.
type Watcher struct {
	fs    ports.FileSystemPort
	clock ports.ClockPort
	cfg   Config

	mu     sync.Mutex
	states map[string]*pathState

	out chan Output
	ctx context.Context
}

// New constructs a Watcher over fs. A zero-value Debounce, Matcher,
// Retry, RetryLimiter or QueueSize falls back to DefaultConfig's value;
// an empty Extensions list stays empty and applies no extension filter.
func New(fs ports.FileSystemPort, clock ports.ClockPort, cfg Config) *Watcher {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Matcher == nil {
		cfg.Matcher = def.Matcher
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.RetryLimiter == nil {
		cfg.RetryLimiter = def.RetryLimiter
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Watcher{
		fs:     fs,
		clock:  clock,
		cfg:    cfg,
		states: map[string]*pathState{},
		out:    make(chan Output, cfg.QueueSize),
	}
}

// Run watches root and forwards a debounced, deduplicated Output
// stream until ctx is canceled, at which point the channel is closed.
func (w *Watcher) Run(ctx context.Context, root string, recursive bool) (<-chan Output, error) {
	raw, err := w.fs.Watch(ctx, root, recursive)
	if err != nil {
		return nil, err
	}
	w.ctx = ctx

	go func() {
		defer close(w.out)
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-raw:
				if !ok {
					return
				}
				w.handleRaw(ctx, change)
			}
		}
	}()

	return w.out, nil
}

func (w *Watcher) handleRaw(ctx context.Context, change ports.RawChange) {
	if !w.passesFilters(change.Path) {
		return
	}

	if change.Kind == ports.Deleted {
		w.forgetState(change.Path)
		w.send(change.Path, Output{Deleted: &events.FileDeletedPayload{Path: change.Path}})
		return
	}

	state := w.stateFor(change.Path)
	state.mu.Lock()
	state.pending = change
	state.hasPending = true
	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(w.cfg.Debounce, func() {
		w.fireDebounced(ctx, change.Path)
	})
	state.mu.Unlock()
}

func (w *Watcher) passesFilters(path string) bool {
	if len(w.cfg.Extensions) > 0 {
		ext := filepath.Ext(path)
		matched := false
		for _, allowed := range w.cfg.Extensions {
			if ext == allowed {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return w.cfg.Matcher.Allows(path)
}

func (w *Watcher) stateFor(path string) *pathState {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.states[path]
	if !ok {
		s = &pathState{}
		w.states[path] = s
	}
	return s
}

func (w *Watcher) forgetState(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.states[path]; ok {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(w.states, path)
	}
}

func (w *Watcher) fireDebounced(ctx context.Context, path string) {
	state := w.stateFor(path)
	state.mu.Lock()
	if !state.hasPending {
		state.mu.Unlock()
		return
	}
	change := state.pending
	state.hasPending = false
	state.mu.Unlock()

	content, err := w.readWithRetry(ctx, path)
	if err != nil {
		w.send(path, Output{Processed: &events.FileProcessedPayload{
			Path:   path,
			Result: events.ProcessedFailed,
			Reason: err.Error(),
		}})
		return
	}

	fp := fingerprint.Of(content)

	state.mu.Lock()
	duplicate := fingerprint.Equal(fp, state.lastForwardedFP)
	if !duplicate {
		state.lastForwardedFP = fp
	}
	state.mu.Unlock()

	if duplicate {
		w.send(path, Output{Processed: &events.FileProcessedPayload{
			Path:   path,
			Result: events.ProcessedIgnored,
			Reason: "duplicate content fingerprint",
		}})
		return
	}

	size := int64(len(content))
	w.send(path, Output{Changed: &events.FileChangedPayload{
		Path:        path,
		Kind:        events.ChangeKind(change.Kind),
		FileSize:    size,
		DetectedAt:  w.clock.Now(),
		Fingerprint: fp,
	}})
}

func (w *Watcher) readWithRetry(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	err := retry.Do(ctx, w.cfg.Retry, func() error {
		if err := w.cfg.RetryLimiter.Wait(ctx); err != nil {
			return err
		}
		b, err := w.fs.Read(ctx, path)
		if err != nil {
			return err
		}
		content = b
		return nil
	})
	return content, err
}

// send queues out for delivery on path's dedicated dispatcher, with
// latest-wins backpressure: if a prior output for the same path is
// still waiting to be dispatched, it is replaced and a DroppedChange
// is emitted for it when the output channel has room; with the channel
// full the DroppedChange itself is discarded (spec.md §4.3). Delivery is per-path ordered;
// cross-path ordering is unspecified, matching spec.md §4.3.
func (w *Watcher) send(path string, out Output) {
	state := w.stateFor(path)

	state.deliverMu.Lock()
	if state.pendingOut != nil {
		dropped := Output{Dropped: &events.DroppedChangePayload{Path: path, Reason: "downstream backpressure"}}
		select {
		case w.out <- dropped:
		default:
		}
	}
	state.pendingOut = &out
	if state.signal == nil {
		state.signal = make(chan struct{}, 1)
	}
	started := state.started
	state.started = true
	state.deliverMu.Unlock()

	select {
	case state.signal <- struct{}{}:
	default:
	}

	if !started {
		go w.dispatch(state)
	}
}

// dispatch delivers whatever is pending for one path, one at a time,
// until the watcher's context is canceled.
func (w *Watcher) dispatch(state *pathState) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-state.signal:
		}

		state.deliverMu.Lock()
		o := state.pendingOut
		state.pendingOut = nil
		state.deliverMu.Unlock()
		if o == nil {
			continue
		}

		select {
		case w.out <- *o:
		case <-w.ctx.Done():
			return
		}
	}
}
