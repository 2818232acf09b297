package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

func names(skills []catalog.Skill) []string {
	out := make([]string, 0, len(skills))
	for _, sk := range skills {
		out = append(out, sk.Name)
	}
	return out
}

func TestMergeSkills(t *testing.T) {
	t.Run("matched records are merged in place", func(t *testing.T) {
		store := NewStore()
		store.SetSkills([]catalog.Skill{
			{ID: "s1", Name: "Alpha", EnabledAgents: []catalog.AgentID{"codex"}, SourceURL: "github.com/foo/bar"},
		})

		store.MergeSkills([]catalog.Skill{
			{ID: "Alpha", Name: "Alpha", EnabledAgents: []catalog.AgentID{"cursor", "codex"}, LastSync: "2026-01-01T00:00:00Z", SourceURL: "other"},
		})

		skills := store.Skills()
		require.Len(t, skills, 1)
		got := skills[0]
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, []catalog.AgentID{"codex", "cursor"}, got.EnabledAgents)
		assert.Equal(t, "2026-01-01T00:00:00Z", got.LastSync)
		assert.Equal(t, "github.com/foo/bar", got.SourceURL)
		assert.Equal(t, catalog.InstallSourcePlatform, got.InstallSource)
		assert.True(t, *got.IsAdopted)
	})

	t.Run("existing timestamps win", func(t *testing.T) {
		merged := mergeRecord(
			catalog.Skill{ID: "a", Name: "A", LastSync: "old", LastUpdate: "old"},
			catalog.Skill{ID: "a", Name: "A", LastSync: "new", LastUpdate: "new"},
		)
		assert.Equal(t, "old", merged.LastSync)
		assert.Equal(t, "old", merged.LastUpdate)
	})

	t.Run("missing source url is adopted from incoming and reclassifies", func(t *testing.T) {
		merged := mergeRecord(
			catalog.Skill{ID: "a", Name: "A"},
			catalog.Skill{ID: "a", Name: "A", SourceURL: "x/y"},
		)
		assert.Equal(t, "x/y", merged.SourceURL)
		assert.Equal(t, catalog.InstallSourcePlatform, merged.InstallSource)
	})

	t.Run("existing classification is preferred", func(t *testing.T) {
		merged := mergeRecord(
			catalog.Skill{ID: "a", Name: "A", InstallSource: catalog.InstallSourceExternal, IsAdopted: catalog.Bool(false)},
			catalog.Skill{ID: "a", Name: "A", SourceURL: "x/y", InstallSource: catalog.InstallSourcePlatform},
		)
		assert.Equal(t, catalog.InstallSourceExternal, merged.InstallSource)
		assert.False(t, *merged.IsAdopted)
	})

	t.Run("names match case and whitespace insensitively", func(t *testing.T) {
		store := NewStore()
		store.SetSkills([]catalog.Skill{{ID: "s1", Name: "Alpha"}})
		store.MergeSkills([]catalog.Skill{{ID: "alpha", Name: " alpha ", EnabledAgents: []catalog.AgentID{"amp"}}})

		skills := store.Skills()
		require.Len(t, skills, 1)
		assert.Equal(t, []catalog.AgentID{"amp"}, skills[0].EnabledAgents)
	})

	t.Run("unmatched records are appended with derived classification", func(t *testing.T) {
		store := NewStore()
		store.SetSkills([]catalog.Skill{{ID: "s1", Name: "Alpha"}})
		store.MergeSkills([]catalog.Skill{{ID: "Beta", Name: "Beta", EnabledAgents: []catalog.AgentID{"codex"}}})

		skills := store.Skills()
		assert.Equal(t, []string{"Alpha", "Beta"}, names(skills))
		assert.Equal(t, catalog.InstallSourceExternal, skills[1].InstallSource)
		assert.False(t, *skills[1].IsAdopted)
	})

	t.Run("duplicate incoming names collapse into one record", func(t *testing.T) {
		store := NewStore()
		store.MergeSkills([]catalog.Skill{
			{ID: "Beta", Name: "Beta", EnabledAgents: []catalog.AgentID{"codex"}},
			{ID: "beta", Name: "beta", EnabledAgents: []catalog.AgentID{"cursor"}},
		})

		skills := store.Skills()
		require.Len(t, skills, 1)
		assert.Equal(t, "Beta", skills[0].ID)
		assert.Equal(t, []catalog.AgentID{"codex", "cursor"}, skills[0].EnabledAgents)
	})

	t.Run("colliding ids are suffixed", func(t *testing.T) {
		store := NewStore()
		store.SetSkills([]catalog.Skill{{ID: "shared", Name: "One"}})
		store.MergeSkills([]catalog.Skill{{ID: "shared", Name: "Two"}})

		skills := store.Skills()
		require.Len(t, skills, 2)
		assert.Equal(t, "shared-2", skills[1].ID)
	})

	t.Run("names held by the recycle bin are not re-added", func(t *testing.T) {
		store := NewStore()
		store.SetSkills([]catalog.Skill{{ID: "s1", Name: "Alpha"}})
		store.RemoveSkill("s1")

		store.MergeSkills([]catalog.Skill{{ID: "Alpha", Name: "Alpha"}})
		assert.Empty(t, store.Skills())
		assert.Len(t, store.RecycleBin(), 1)
	})

	t.Run("blank names are ignored", func(t *testing.T) {
		store := NewStore()
		store.MergeSkills([]catalog.Skill{{ID: "x", Name: "   "}})
		assert.Empty(t, store.Skills())
	})
}

func TestMergeSkillsIdempotent(t *testing.T) {
	store := NewStore()
	store.SetSkills([]catalog.Skill{
		{ID: "s1", Name: "Alpha", EnabledAgents: []catalog.AgentID{"codex"}},
		{ID: "s2", Name: "Gamma"},
	})
	incoming := []catalog.Skill{
		{ID: "Alpha", Name: "alpha", EnabledAgents: []catalog.AgentID{"cursor"}, LastSync: "2026-01-01T00:00:00Z"},
		{ID: "Beta", Name: "Beta", EnabledAgents: []catalog.AgentID{"codex", "codex"}},
		{ID: "s2", Name: "Delta"},
	}

	store.MergeSkills(incoming)
	once := store.Skills()

	notified := 0
	unsubscribe := store.Subscribe(func(State) { notified++ })
	defer unsubscribe()

	store.MergeSkills(incoming)
	twice := store.Skills()

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"Alpha", "Gamma", "Beta", "Delta"}, names(twice))
	assert.Zero(t, notified, "a merge that changes nothing is not published")
}

func TestMergeSkipsTrashedNames(t *testing.T) {
	store := NewStore()
	store.SetSkills([]catalog.Skill{
		{ID: "s1", Name: "Alpha", EnabledAgents: []catalog.AgentID{"codex"}},
		{ID: "s2", Name: "Beta"},
	})
	store.RemoveSkill("s1")

	// a full sync reports every store directory, trashed ones included
	store.MergeSkills([]catalog.Skill{
		{ID: "Alpha", Name: "alpha", EnabledAgents: []catalog.AgentID{"cursor"}},
		{ID: "Beta", Name: "Beta", EnabledAgents: []catalog.AgentID{"cursor"}},
	})
	assert.Equal(t, []string{"Beta"}, names(store.Skills()))
	require.Len(t, store.RecycleBin(), 1)

	effects, err := store.RestoreSkill("s1")
	require.NoError(t, err)
	require.Len(t, effects, 1)
	restored, ok := store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, []catalog.AgentID{"codex"}, restored.EnabledAgents)
	assert.Empty(t, store.RecycleBin())
}

func TestMergeUnionInvariant(t *testing.T) {
	existing := []catalog.AgentID{"codex", "amp"}
	incoming := []catalog.AgentID{"amp", "cursor", "cursor"}

	merged := mergeRecord(
		catalog.Skill{ID: "a", Name: "A", EnabledAgents: existing},
		catalog.Skill{ID: "a", Name: "A", EnabledAgents: incoming},
	)

	for _, id := range append(existing, incoming...) {
		assert.Contains(t, merged.EnabledAgents, id)
	}
	seen := make(map[catalog.AgentID]bool)
	for _, id := range merged.EnabledAgents {
		assert.False(t, seen[id], "duplicate agent %s", id)
		seen[id] = true
	}
}
