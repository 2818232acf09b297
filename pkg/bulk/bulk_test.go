package bulk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend"
	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/reconcile"
	"github.com/d0ublecl1ck/skills-manager/pkg/runguard"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

type stubBackend struct {
	backend.Backend

	mu          sync.Mutex
	syncCalls   int
	syncRecords [][]catalogtypes.Skill
	syncGate    chan struct{}
	syncEntered chan struct{}

	distributed []string
	reinstalled []string
	reinstallFn func(req backend.ReinstallRequest) (catalogtypes.Skill, error)
}

func (s *stubBackend) SyncAll(_ context.Context, _ []catalogtypes.Platform, _ string, progress catalogtypes.ProgressFunc) ([]catalogtypes.Skill, error) {
	s.mu.Lock()
	call := s.syncCalls
	s.syncCalls++
	s.mu.Unlock()

	progress.Emit(catalogtypes.ProgressEvent{ID: "init", Label: "Indexing", Status: catalogtypes.ProgressLoading})
	if call == 0 && s.syncGate != nil {
		s.syncEntered <- struct{}{}
		<-s.syncGate
	}
	progress.Emit(catalogtypes.ProgressEvent{ID: "merge", Label: "Merged", Status: catalogtypes.ProgressSuccess, Progress: 100})
	return s.syncRecords[call], nil
}

func (s *stubBackend) DistributeOne(_ context.Context, skill catalogtypes.Skill, _ []catalogtypes.Platform, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distributed = append(s.distributed, skill.ID)
	return nil
}

func (s *stubBackend) Reinstall(_ context.Context, req backend.ReinstallRequest) (catalogtypes.Skill, error) {
	s.mu.Lock()
	s.reinstalled = append(s.reinstalled, req.SkillID)
	s.mu.Unlock()
	return s.reinstallFn(req)
}

type observed struct {
	mu     sync.Mutex
	events map[string][]uint64
	last   map[string][]catalogtypes.ProgressEvent
}

func (o *observed) observe(channel string, runID uint64, entries []catalogtypes.ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[channel] = append(o.events[channel], runID)
	o.last[channel] = entries
}

func newTestRunner(t *testing.T, sb *stubBackend, skills ...catalogtypes.Skill) (*Runner, *catalog.Store, *observed) {
	t.Helper()
	store := catalog.NewStore(catalog.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}))
	store.SetSkills(skills)
	svc := reconcile.NewService(store, sb, reconcile.StaticEnvironment{Path: t.TempDir()})
	obs := &observed{events: map[string][]uint64{}, last: map[string][]catalogtypes.ProgressEvent{}}
	return NewRunner(catalog.NewManager(store, svc), svc, WithObserver(obs.observe)), store, obs
}

func TestSyncAllSupersededRunIsDiscarded(t *testing.T) {
	sb := &stubBackend{
		syncGate:    make(chan struct{}),
		syncEntered: make(chan struct{}),
		syncRecords: [][]catalogtypes.Skill{
			{{ID: "stale", Name: "stale"}},
			{{ID: "fresh", Name: "fresh"}},
		},
	}
	runner, store, obs := newTestRunner(t, sb)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		staleErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleErr = runner.SyncAll(ctx)
	}()
	<-sb.syncEntered

	records, err := runner.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	close(sb.syncGate)
	wg.Wait()

	assert.ErrorIs(t, staleErr, runguard.ErrStaleRun)
	skills := store.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "fresh", skills[0].Name)

	runs := obs.events[catalogtypes.ChannelSyncAll]
	assert.Equal(t, uint64(2), runs[len(runs)-1], "late events of run 1 are never observed")
	for i, id := range runs {
		if id == 2 {
			for _, later := range runs[i:] {
				assert.Equal(t, uint64(2), later)
			}
			break
		}
	}
}

func TestEnableAll(t *testing.T) {
	sb := &stubBackend{}
	runner, store, obs := newTestRunner(t, sb,
		catalogtypes.Skill{ID: "a", Name: "A", EnabledAgents: []catalogtypes.AgentID{platforms.Codex}},
		catalogtypes.Skill{ID: "b", Name: "B"},
	)
	ctx := context.Background()

	changed, err := runner.EnableAll(ctx, platforms.Codex)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b"}, sb.distributed)
	for _, sk := range store.Skills() {
		assert.True(t, sk.HasAgent(platforms.Codex))
	}
	assert.NotEmpty(t, obs.last[catalogtypes.ChannelDistributeAll])

	changed, err = runner.EnableAll(ctx, platforms.Codex)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, sb.distributed, 2, "no-op must not distribute")
}

func TestUpdateAll(t *testing.T) {
	sb := &stubBackend{reinstallFn: func(req backend.ReinstallRequest) (catalogtypes.Skill, error) {
		if req.SkillID == "broken" {
			return catalogtypes.Skill{}, errors.New("clone failed")
		}
		return catalogtypes.Skill{ID: req.SkillID, Name: req.SkillName, SourceURL: req.RepoURL, LastUpdate: "2026-03-01T00:00:00Z"}, nil
	}}
	runner, store, obs := newTestRunner(t, sb,
		catalogtypes.Skill{ID: "ok", Name: "ok", SourceURL: "o/ok", EnabledAgents: []catalogtypes.AgentID{platforms.Codex}},
		catalogtypes.Skill{ID: "broken", Name: "broken", SourceURL: "o/broken"},
		catalogtypes.Skill{ID: "local", Name: "local"},
	)

	updated, err := runner.UpdateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clone failed")
	require.Len(t, updated, 1)
	assert.Equal(t, "ok", updated[0].ID)
	assert.Equal(t, []string{"ok", "broken"}, sb.reinstalled, "external skills are never updated")
	assert.Equal(t, []string{"ok"}, sb.distributed)

	got, ok := store.Get("ok")
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T00:00:00Z", got.LastUpdate)

	entries := obs.last[catalogtypes.ChannelUpdateAll]
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"init", "update-ok", "update-broken", "done"}, ids)
	assert.Equal(t, catalogtypes.ProgressError, entries[2].Status)
	assert.Equal(t, catalogtypes.ProgressError, entries[3].Status)

	var failures int
	for _, l := range store.Logs() {
		if l.Status == catalogtypes.LogStatusError && l.SkillID == "broken" {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestUpdateAllSupersededDoesNotApply(t *testing.T) {
	var runner *Runner
	sb := &stubBackend{}
	sb.reinstallFn = func(req backend.ReinstallRequest) (catalogtypes.Skill, error) {
		runner.Cancel()
		return catalogtypes.Skill{ID: req.SkillID, SourceURL: "o/new", LastUpdate: "2030-01-01T00:00:00Z"}, nil
	}
	r, store, _ := newTestRunner(t, sb, catalogtypes.Skill{ID: "ok", Name: "ok", SourceURL: "o/ok"})
	runner = r

	_, err := runner.UpdateAll(context.Background())
	assert.ErrorIs(t, err, runguard.ErrStaleRun)

	got, _ := store.Get("ok")
	assert.Equal(t, "o/ok", got.SourceURL)
	assert.Empty(t, sb.distributed)
}
