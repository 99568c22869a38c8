// Package classid resolves a changed file path to the fully-qualified
// class name it defines, caching the result until the path is deleted,
// renamed, or its content fingerprint changes (spec.md §4.4 — C4 Class
// Identity Resolver).
package classid

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bytehotd/bytehotd/pkg/bytecode"
)

// entry is the cached identity for one path.
type entry struct {
	className   string
	fingerprint string
}

// Resolver maps a watched path to the class name its bytes declare. It
// is the only component that parses a class file merely to learn its
// name; C5 re-parses the same bytes for structural comparison.
type Resolver struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
}

// New creates a Resolver with an LRU cache bounded to capacity entries.
// A bound is required because long-running agents watch directories
// that accumulate thousands of distinct paths over a session.
func New(capacity int) (*Resolver, error) {
	cache, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("classid: construct cache: %w", err)
	}
	return &Resolver{cache: cache}, nil
}

// Resolve returns the class name defined by content, reusing the
// cached identity for path when its fingerprint is unchanged.
func (r *Resolver) Resolve(ctx context.Context, path string, content []byte, fingerprint string) (string, error) {
	r.mu.Lock()
	if cached, ok := r.cache.Get(path); ok && cached.fingerprint == fingerprint {
		r.mu.Unlock()
		return cached.className, nil
	}
	r.mu.Unlock()

	cf, err := bytecode.Parse(content)
	if err != nil {
		return "", fmt.Errorf("classid: resolve %s: %w", path, err)
	}

	r.mu.Lock()
	r.cache.Add(path, entry{className: cf.ClassName, fingerprint: fingerprint})
	r.mu.Unlock()

	return cf.ClassName, nil
}

// Forget evicts a path's cached identity — called when the watcher
// observes a delete or a rename (spec.md §4.4 invalidation rule).
func (r *Resolver) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(path)
}

// Lookup returns the cached class name for path without parsing,
// reporting whether an entry was present.
func (r *Resolver) Lookup(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache.Get(path)
	if !ok {
		return "", false
	}
	return e.className, true
}

// Len reports the number of cached identities, exposed for metrics.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
