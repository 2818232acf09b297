package runguard

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Run is one invocation of a guarded operation
type Run struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	guard  *Guard

	mu    sync.Mutex
	log   []catalog.ProgressEvent
	index map[string]int
}

// ID returns the run id
func (r *Run) ID() uint64 {
	return r.id
}

// Context returns a context cancelled when the run is superseded or finished
func (r *Run) Context() context.Context {
	return r.ctx
}

// Stale reports whether a newer run has begun
func (r *Run) Stale() bool {
	return !r.guard.isCurrent(r.id)
}

// Check returns ErrStaleRun when the run has been superseded
func (r *Run) Check() error {
	if r.Stale() {
		return errors.Wrapf(ErrStaleRun, "%s run %d", r.guard.name, r.id)
	}
	return nil
}

// Finish releases the run's context. The run's log stays readable.
func (r *Run) Finish() {
	r.cancel()
}

// Report applies ev to the run's progress log with upsert-by-id semantics:
// a new id appends an entry, a known id replaces its label, status and
// progress in place. Events of a stale run are dropped and Report returns
// false.
func (r *Run) Report(ev catalog.ProgressEvent) bool {
	if r.Stale() {
		return false
	}

	ev.Progress = catalog.ClampProgress(ev.Progress)

	r.mu.Lock()
	if idx, ok := r.index[ev.ID]; ok {
		r.log[idx] = ev
	} else {
		r.index[ev.ID] = len(r.log)
		r.log = append(r.log, ev)
	}
	entries := slices.Clone(r.log)
	r.mu.Unlock()

	if obs := r.guard.observer; obs != nil {
		obs(r.id, entries)
	}
	return true
}

// Progress adapts Report to a catalog.ProgressFunc
func (r *Run) Progress() catalog.ProgressFunc {
	return func(ev catalog.ProgressEvent) {
		r.Report(ev)
	}
}

// Log returns a copy of the run's progress log in first-seen order
func (r *Run) Log() []catalog.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.log)
}

// Percent returns the highest progress reported so far
func (r *Run) Percent() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := 0.0
	for _, ev := range r.log {
		if ev.Progress > best {
			best = ev.Progress
		}
	}
	return best
}
