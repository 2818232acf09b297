package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

type dirDetector struct {
	root string
	err  error
}

func (d *dirDetector) DetectUntracked(_ context.Context, _ string) ([]catalogtypes.Candidate, error) {
	if d.err != nil {
		return nil, d.err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var out []catalogtypes.Candidate
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, catalogtypes.Candidate{Name: e.Name(), SourceAgentIDs: []catalogtypes.AgentID{"codex"}})
		}
	}
	return out, nil
}

type found struct {
	mu    sync.Mutex
	names []string
}

func (f *found) add(cands []catalogtypes.Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cands {
		f.names = append(f.names, c.Name)
	}
}

func (f *found) get() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.names...)
	sort.Strings(out)
	return out
}

func TestDetectReportsOnlyNewCandidates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "alpha"), 0o755))

	var f found
	w := New(Config{Roots: []string{root}}, &dirDetector{root: root}, nil, OnCandidates(f.add))
	ctx := context.Background()

	w.Detect(ctx)
	w.Detect(ctx)
	assert.Equal(t, []string{"alpha"}, f.get())

	require.NoError(t, os.Mkdir(filepath.Join(root, "beta"), 0o755))
	w.Detect(ctx)
	assert.Equal(t, []string{"alpha", "beta"}, f.get())

	require.NoError(t, os.Remove(filepath.Join(root, "alpha")))
	w.Detect(ctx)
	require.NoError(t, os.Mkdir(filepath.Join(root, "Alpha"), 0o755))
	w.Detect(ctx)
	assert.Equal(t, []string{"Alpha", "alpha", "beta"}, f.get(), "a candidate that comes back is reported again")
}

func TestDetectFailureReportsNothing(t *testing.T) {
	var f found
	w := New(Config{}, &dirDetector{err: errors.New("scan failed")}, nil, OnCandidates(f.add))
	w.Detect(context.Background())
	assert.Empty(t, f.get())
}

func TestDebounceCoalescesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	out := make(chan struct{}, 1)
	go debounce(ctx, events, out, 30*time.Millisecond)

	for i := 0; i < 5; i++ {
		events <- fsnotify.Event{Name: "/skills/alpha", Op: fsnotify.Create}
	}
	events <- fsnotify.Event{Name: "/skills/.DS_Store", Op: fsnotify.Create}

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected a trigger")
	}
	select {
	case <-out:
		t.Fatal("burst must produce a single trigger")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebounceIgnoresHiddenAndChmod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	out := make(chan struct{}, 1)
	go debounce(ctx, events, out, 10*time.Millisecond)

	events <- fsnotify.Event{Name: "/skills/.git", Op: fsnotify.Create}
	events <- fsnotify.Event{Name: "/skills/alpha", Op: fsnotify.Chmod}

	select {
	case <-out:
		t.Fatal("hidden entries and chmod events do not trigger detection")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestRunDetectsNewSkillDirectories(t *testing.T) {
	root := t.TempDir()
	var f found
	w := New(Config{Roots: []string{root, filepath.Join(root, "missing")}, Debounce: 20 * time.Millisecond},
		&dirDetector{root: root}, nil, OnCandidates(f.add))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		if err := os.MkdirAll(filepath.Join(root, "gamma"), 0o755); err != nil {
			return false
		}
		return len(f.get()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"gamma"}, f.get())

	cancel()
	require.NoError(t, <-done)
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	w := New(Config{Schedule: "sometimes"}, &dirDetector{root: t.TempDir()},
		func(context.Context) (int, error) { return 0, nil })

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid trash schedule")
}

func TestSweep(t *testing.T) {
	var swept []int
	results := []struct {
		n   int
		err error
	}{{2, nil}, {0, nil}, {0, errors.New("disk full")}}
	call := 0
	w := New(Config{}, &dirDetector{}, func(context.Context) (int, error) {
		r := results[call]
		call++
		return r.n, r.err
	}, OnSweep(func(n int) { swept = append(swept, n) }))

	for range results {
		w.Sweep(context.Background())
	}
	assert.Equal(t, []int{2}, swept)
}
