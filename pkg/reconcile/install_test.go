package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend/local"
	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRunner) Run(context.Context, string, string, ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func TestTrashedNameIsNotReused(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", root)
	storePath := filepath.Join(root, "store")
	codexRoot := filepath.Join(root, "codex")
	require.NoError(t, os.MkdirAll(filepath.Join(storePath, "Alpha"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storePath, "Alpha", "SKILL.md"), []byte("---\nname: Alpha\n---\n"), 0o644))

	runner := &countingRunner{}
	store := catalog.NewStore()
	store.SetSkills([]catalogtypes.Skill{{ID: "s1", Name: "Alpha", EnabledAgents: []catalogtypes.AgentID{platforms.Codex}}})
	svc := NewService(store, local.New(local.WithRunner(runner)), StaticEnvironment{
		Platforms: []catalogtypes.Platform{{ID: platforms.Codex, Name: "Codex", CurrentPath: codexRoot, Enabled: true}},
		Path:      storePath,
	})
	manager := catalog.NewManager(store, svc)
	ctx := context.Background()

	require.NoError(t, manager.RemoveSkill(ctx, "s1"))
	assert.NoDirExists(t, filepath.Join(codexRoot, "Alpha"))

	_, err := svc.Install(ctx, "acme/alpha", "alpha")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)
	assert.Zero(t, runner.calls, "the name check runs before any download")

	assert.ErrorIs(t, store.AddSkill(catalogtypes.Skill{ID: "s2", Name: " ALPHA "}), catalog.ErrDuplicateName)
	assert.Empty(t, store.Skills())

	require.NoError(t, manager.RestoreSkill(ctx, "s1"))
	assert.FileExists(t, filepath.Join(codexRoot, "Alpha", "SKILL.md"))
	assert.FileExists(t, filepath.Join(storePath, "Alpha", "SKILL.md"))
}

func TestInstallRejectsTakenNameWithoutFetching(t *testing.T) {
	fb := &fakeBackend{installed: catalogtypes.Skill{ID: "u1", Name: "pdf"}}
	svc, store := newTestService(t, fb, catalogtypes.Skill{ID: "s1", Name: "PDF"})

	_, err := svc.Install(context.Background(), "o/pdf", "pdf")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)

	_, err = svc.Install(context.Background(), "o/pdf", "")
	assert.ErrorIs(t, err, catalog.ErrDuplicateName)
	assert.Equal(t, []string{"u1"}, fb.uninstalled, "a rejected fresh copy is removed again")
	assert.Len(t, store.Skills(), 1)
}
