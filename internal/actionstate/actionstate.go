// Package actionstate implements the Action-State Registry (C3): a
// per-(kind,id) busy-flag map guarding at-most-one-in-flight mutating
// operations, plus a single batch-only lock for admin-global operations.
// The mutex-guarded map with RAII-style release is lifted directly from
// the teacher's internal/engine/queue.go (Queue.mu sync.Mutex guarding a
// map, with Add/Remove/Approve all taking the lock around a single
// critical section) generalized from "one pending-update map" to "one
// busy-flag struct per resource".
package actionstate

import (
	"sync"

	"github.com/komodore/core/internal/model"
)

// Flags is the set of busy indicators a single resource can carry at
// once. Only one is expected to be true at a time in practice, but the
// struct allows future overlap (e.g. "syncing" while "deploying" a
// different stage) without widening the registry's key space.
type Flags struct {
	Deploying bool
	Building  bool
	Syncing   bool
	Running   bool
}

// Busy reports whether any flag is set.
func (f Flags) Busy() bool {
	return f.Deploying || f.Building || f.Syncing || f.Running
}

// Guard releases the busy flag it was issued for when Release is called.
// Handlers defer guard.Release() immediately after a successful Acquire,
// the same RAII shape the teacher's Queue.Approve uses around persist().
type Guard struct {
	release func()
	once    sync.Once
}

// Release resets the flag this guard was issued for. Safe to call more
// than once; only the first call has effect.
func (g *Guard) Release() {
	g.once.Do(g.release)
}

// Registry is the process-local, in-memory busy-flag map (spec §3:
// "Action-State entries live in-process only and are discarded on
// restart"). Entries are created lazily and never explicitly removed —
// their zero value (not busy) is indistinguishable from "never seen".
type Registry struct {
	mu    sync.Mutex
	flags map[model.ResourceTarget]*Flags

	batchMu sync.Mutex
	batchBusy bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{flags: make(map[model.ResourceTarget]*Flags)}
}

// Acquire atomically checks busy-predicate `pred` against the current
// flags for target and, if not busy, applies `set` to mark the new busy
// state, returning a Guard that resets via `reset` when released. Returns
// model.ErrBusy if pred reports busy — "a second request during a busy
// period fails fast with Resource is busy" (spec §5).
func (r *Registry) Acquire(target model.ResourceTarget, pred func(Flags) bool, set func(*Flags), reset func(*Flags)) (*Guard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[target]
	if !ok {
		f = &Flags{}
		r.flags[target] = f
	}
	if pred(*f) {
		return nil, model.ErrBusy
	}
	set(f)

	return &Guard{release: func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		reset(f)
	}}, nil
}

// AcquireDeploying is the common case: a deploy-shaped operation busy on
// any of Deploying/Building/Syncing/Running.
func (r *Registry) AcquireDeploying(target model.ResourceTarget) (*Guard, error) {
	return r.Acquire(target,
		func(f Flags) bool { return f.Busy() },
		func(f *Flags) { f.Deploying = true },
		func(f *Flags) { f.Deploying = false },
	)
}

// AcquireBuilding acquires the Building flag.
func (r *Registry) AcquireBuilding(target model.ResourceTarget) (*Guard, error) {
	return r.Acquire(target,
		func(f Flags) bool { return f.Busy() },
		func(f *Flags) { f.Building = true },
		func(f *Flags) { f.Building = false },
	)
}

// AcquireSyncing acquires the Syncing flag.
func (r *Registry) AcquireSyncing(target model.ResourceTarget) (*Guard, error) {
	return r.Acquire(target,
		func(f Flags) bool { return f.Busy() },
		func(f *Flags) { f.Syncing = true },
		func(f *Flags) { f.Syncing = false },
	)
}

// AcquireRunning acquires the Running flag (Action/Procedure execution).
func (r *Registry) AcquireRunning(target model.ResourceTarget) (*Guard, error) {
	return r.Acquire(target,
		func(f Flags) bool { return f.Busy() },
		func(f *Flags) { f.Running = true },
		func(f *Flags) { f.Running = false },
	)
}

// Snapshot returns a copy of the current flags for target, for read-only
// status display.
func (r *Registry) Snapshot(target model.ResourceTarget) Flags {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flags[target]; ok {
		return *f
	}
	return Flags{}
}

// AcquireBatch takes the single global batch-only lock used to prevent
// overlap between ClearRepoCache, BackupCoreDatabase, and
// GlobalAutoUpdate (spec §4.3, §5).
func (r *Registry) AcquireBatch() (*Guard, error) {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	if r.batchBusy {
		return nil, model.ErrBusy
	}
	r.batchBusy = true
	return &Guard{release: func() {
		r.batchMu.Lock()
		defer r.batchMu.Unlock()
		r.batchBusy = false
	}}, nil
}
