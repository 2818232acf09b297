// Package watch keeps an eye on the enabled platform directories. A burst of
// filesystem changes triggers one untracked-skill detection after a quiet
// period, and expired recycle bin entries are swept on a cron schedule.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Detector finds skills present in platform directories but not in the catalog
type Detector interface {
	DetectUntracked(ctx context.Context, match string) ([]catalogtypes.Candidate, error)
}

// SweepFunc purges expired recycle bin entries, returning how many were purged
type SweepFunc func(ctx context.Context) (int, error)

// Config configures a Watcher
type Config struct {
	// Roots are the directories to watch; missing ones are skipped
	Roots    []string
	Debounce time.Duration
	// Schedule is a standard cron expression or descriptor; empty disables sweeping
	Schedule string
	// Match optionally restricts detection to names matching a glob
	Match string
}

// Watcher reports newly appeared untracked skills
type Watcher struct {
	config   Config
	detector Detector
	sweep    SweepFunc
	onFound  func([]catalogtypes.Candidate)
	onSwept  func(int)

	mu       sync.Mutex
	reported map[string]struct{}
}

// Option configures a Watcher
type Option func(*Watcher)

// OnCandidates is called with candidates not reported before
func OnCandidates(fn func([]catalogtypes.Candidate)) Option {
	return func(w *Watcher) {
		w.onFound = fn
	}
}

// OnSweep is called after a sweep purged at least one entry
func OnSweep(fn func(int)) Option {
	return func(w *Watcher) {
		w.onSwept = fn
	}
}

// New creates a Watcher
func New(config Config, detector Detector, sweep SweepFunc, opts ...Option) *Watcher {
	w := &Watcher{
		config:   config,
		detector: detector,
		sweep:    sweep,
		onFound:  func([]catalogtypes.Candidate) {},
		onSwept:  func(int) {},
		reported: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Detection runs once at start.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.G(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fsw.Close()

	watched := 0
	for _, root := range w.config.Roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			log.WithField("root", root).Debug("skipping missing platform directory")
			continue
		}
		if err := fsw.Add(root); err != nil {
			return errors.Wrapf(err, "failed to watch %s", root)
		}
		watched++
	}
	log.WithField("roots", watched).Info("watching platform directories")

	scheduler, err := w.startSweeper(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	w.Detect(ctx)

	triggers := make(chan struct{}, 1)
	go debounce(ctx, fsw.Events, triggers, w.config.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggers:
			w.Detect(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) startSweeper(ctx context.Context) (*cron.Cron, error) {
	if w.config.Schedule == "" || w.sweep == nil {
		return nil, nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(w.config.Schedule, func() {
		w.Sweep(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid trash schedule %q", w.config.Schedule)
	}
	scheduler.Start()
	return scheduler, nil
}

// Sweep runs one recycle bin sweep
func (w *Watcher) Sweep(ctx context.Context) {
	purged, err := w.sweep(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("recycle bin sweep failed")
	}
	if purged > 0 {
		w.onSwept(purged)
	}
}

// Detect runs detection and reports candidates that were not reported by an
// earlier pass. A candidate that disappears and comes back is reported again.
func (w *Watcher) Detect(ctx context.Context) {
	candidates, err := w.detector.DetectUntracked(ctx, w.config.Match)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("untracked skill detection failed")
		return
	}

	w.mu.Lock()
	current := make(map[string]struct{}, len(candidates))
	var fresh []catalogtypes.Candidate
	for _, c := range candidates {
		key := catalogtypes.NormalizeName(c.Name)
		current[key] = struct{}{}
		if _, seen := w.reported[key]; !seen {
			fresh = append(fresh, c)
		}
	}
	w.reported = current
	w.mu.Unlock()

	if len(fresh) > 0 {
		w.onFound(fresh)
	}
}

// debounce forwards one trigger after events stop arriving for delay.
// Events on hidden entries are ignored.
func debounce(ctx context.Context, events <-chan fsnotify.Event, out chan<- struct{}, delay time.Duration) {
	var (
		timer  *time.Timer
		expiry <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") || ev.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			expiry = timer.C
		case <-expiry:
			expiry = nil
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}
