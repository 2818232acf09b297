// Package runguard provides cooperative cancellation for bulk operations.
//
// Each invocation of a guarded operation begins a new Run, which supersedes
// every earlier run of the same Guard. A superseded run's context is
// cancelled, its progress events are dropped and its results must be
// discarded by the caller (see Run.Stale and Run.Check). Work already handed
// to an external collaborator is not interrupted; only its outcome is ignored.
package runguard

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// ErrStaleRun is returned by Run.Check once a newer run has begun
var ErrStaleRun = errors.New("run superseded by a newer run")

// Observer receives the live run's progress log after every accepted event
type Observer func(runID uint64, entries []catalog.ProgressEvent)

// Guard issues monotonically increasing run ids for one operation
type Guard struct {
	mu       sync.Mutex
	name     string
	current  uint64
	cancel   context.CancelFunc
	observer Observer
}

// Option configures a Guard
type Option func(*Guard)

// WithObserver registers fn to receive progress log updates of live runs
func WithObserver(fn Observer) Option {
	return func(g *Guard) {
		g.observer = fn
	}
}

// New creates a Guard for the operation called name
func New(name string, opts ...Option) *Guard {
	g := &Guard{name: name}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the operation name
func (g *Guard) Name() string {
	return g.name
}

// Current returns the id of the most recently issued run, or 0 if none
func (g *Guard) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Begin starts a new run, superseding and cancelling the previous one
func (g *Guard) Begin(ctx context.Context) *Run {
	runCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.current++
	g.cancel = cancel
	id := g.current
	g.mu.Unlock()

	return &Run{
		id:     id,
		ctx:    runCtx,
		cancel: cancel,
		guard:  g,
		index:  make(map[string]int),
	}
}

// Invalidate supersedes the live run without starting a new one, e.g. when
// the caller stops caring about its outcome
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.current++
}

func (g *Guard) isCurrent(id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current == id
}
