// Package cororeg is a concrete corort.LifecycleRegistry: a process-wide
// table of every Scheduler's Lifecycle handle, keyed by a generated UUID,
// supporting coordinated shutdown of every registered scheduler at once.
//
// corort.LifecycleRegistry is deliberately narrow (spec.md §1 lists the
// process-wide lifecycle registry among the excluded external
// collaborators corort only consumes); cororeg is one reasonable
// implementation of that contract, not part of corort itself.
package cororeg

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/joeycumines/go-corort"
)

// Registry tracks every Lifecycle handed to it via Manage, plus every
// awaitable registered via AwaitBeforeExit.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*corort.Lifecycle
	pending map[uuid.UUID]corort.Awaitable
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*corort.Lifecycle),
		pending: make(map[uuid.UUID]corort.Awaitable),
	}
}

// Manage implements corort.LifecycleRegistry: it assigns lc a fresh UUID
// and tracks it until DropAll forgets it.
func (r *Registry) Manage(lc *corort.Lifecycle) {
	id := uuid.New()
	r.mu.Lock()
	r.entries[id] = lc
	r.mu.Unlock()
}

// AwaitBeforeExit implements corort.LifecycleRegistry: a registers a key
// the registry guarantees to await, successfully or not, before the next
// DropAll returns -- even if nothing else in the process ever awaits it.
// It is the Go analogue of the original engine's register_awaitable:
// stash the awaitable until process shutdown, then join it.
func (r *Registry) AwaitBeforeExit(a corort.Awaitable) {
	id := uuid.New()
	r.mu.Lock()
	r.pending[id] = a
	r.mu.Unlock()
}

// PendingCount returns the number of awaitables registered via
// AwaitBeforeExit that have not yet been drained by a DropAll call.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Count returns the number of currently-tracked Lifecycle handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DropAll calls Drop(ctx) on every tracked Lifecycle, and awaits every
// awaitable registered via AwaitBeforeExit, all concurrently; it waits
// for all of them to finish and returns the first non-nil error
// encountered (if any). Every scheduler and every pending awaitable is
// forgotten afterward, whether or not it succeeded.
func (r *Registry) DropAll(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*corort.Lifecycle, 0, len(r.entries))
	for _, lc := range r.entries {
		handles = append(handles, lc)
	}
	r.entries = make(map[uuid.UUID]*corort.Lifecycle)
	awaitables := make([]corort.Awaitable, 0, len(r.pending))
	for _, a := range r.pending {
		awaitables = append(awaitables, a)
	}
	r.pending = make(map[uuid.UUID]corort.Awaitable)
	r.mu.Unlock()

	errs := make([]error, len(handles)+len(awaitables))
	var wg sync.WaitGroup
	wg.Add(len(handles) + len(awaitables))
	for i, lc := range handles {
		go func(i int, lc *corort.Lifecycle) {
			defer wg.Done()
			errs[i] = lc.Drop(ctx)
		}(i, lc)
	}
	for i, a := range awaitables {
		go func(i int, a corort.Awaitable) {
			defer wg.Done()
			_, err := corort.AwaitResult[any](a)
			errs[len(handles)+i] = err
		}(i, a)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
