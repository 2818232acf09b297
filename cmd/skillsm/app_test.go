package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/config"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

func TestFindSkill(t *testing.T) {
	list := []catalogtypes.Skill{
		{ID: "s1", Name: "Release Notes"},
		{ID: "release notes", Name: "Other"},
	}

	sk, err := findSkill(list, "release notes")
	require.NoError(t, err)
	assert.Equal(t, "release notes", sk.ID, "an exact id match wins over a name match")

	sk, err = findSkill(list, "  RELEASE NOTES ")
	require.NoError(t, err)
	assert.Equal(t, "s1", sk.ID)

	_, err = findSkill(list, "missing")
	assert.ErrorIs(t, err, catalog.ErrSkillNotFound)
}

func TestParseAgents(t *testing.T) {
	ids, err := parseAgents([]string{"codex,cursor", " claude-code ", ""})
	require.NoError(t, err)
	assert.Equal(t, []catalogtypes.AgentID{platforms.Codex, platforms.Cursor, platforms.ClaudeCode}, ids)

	_, err = parseAgents([]string{"codex,notepad"})
	assert.ErrorIs(t, err, platforms.ErrUnknownPlatform)
}

func TestListConfigValidate(t *testing.T) {
	config := NewListConfig()
	assert.NoError(t, config.Validate())

	config.Output = "xml"
	assert.Error(t, config.Validate())
}

func TestWriteSkills(t *testing.T) {
	skills := []catalogtypes.Skill{
		{ID: "s1", Name: "Alpha", SourceURL: "https://github.com/acme/alpha", EnabledAgents: []catalogtypes.AgentID{"codex", "cursor"}},
		{ID: "s2", Name: "Beta", EnabledAgents: []catalogtypes.AgentID{}},
	}

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeSkills(&out, skills, "table", false))
		assert.Contains(t, out.String(), "ID  NAME   SOURCE    PLATFORMS")
		assert.Contains(t, out.String(), "s1  Alpha  platform  codex,cursor")
		assert.Contains(t, out.String(), "s2  Beta   external  -")
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeSkills(&out, skills[:1], "yaml", false))
		assert.Contains(t, out.String(), "- id: s1\n  name: Alpha\n  sourceUrl: https://github.com/acme/alpha\n")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeSkills(&out, skills[1:], "json", false))
		assert.Contains(t, out.String(), `"enabledAgents": []`)
	})

	t.Run("empty trash", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeSkills(&out, nil, "table", true))
		assert.Equal(t, "Recycle bin is empty.\n", out.String())
	})
}

func setupApp(t *testing.T) (string, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	storage := filepath.Join(home, "store")
	viper.Set(config.KeyStoragePath, storage)
	viper.Set(config.KeyDBPath, filepath.Join(home, "state", "state.db"))
	t.Cleanup(func() {
		viper.Set(config.KeyStoragePath, "")
		viper.Set(config.KeyDBPath, "")
	})
	return home, storage
}

func TestOpenAppPersistsCatalog(t *testing.T) {
	_, storage := setupApp(t)
	ctx := context.Background()

	a, err := openApp(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage, a.storagePath())
	require.NoError(t, a.store.AddSkill(catalogtypes.Skill{ID: "s1", Name: "Alpha"}))
	a.Close()

	b, err := openApp(ctx)
	require.NoError(t, err)
	defer b.Close()

	skills := b.store.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "Alpha", skills[0].Name)

	_, err = os.Stat(filepath.Join(storage, "Alpha", "SKILL.md"))
	assert.NoError(t, err, "startup bootstraps a store directory for every tracked skill")
}

func TestOpenAppSweepsExpiredTrash(t *testing.T) {
	setupApp(t)
	ctx := context.Background()

	a, err := openApp(ctx)
	require.NoError(t, err)
	a.store.Load(catalog.State{
		Skills: []catalogtypes.Skill{},
		RecycleBin: []catalogtypes.Skill{
			{ID: "old", Name: "Old", DeletedAt: "2000-01-01T00:00:00Z"},
			{ID: "new", Name: "New", DeletedAt: catalogtypes.FormatTime(time.Now())},
		},
	})
	a.Close()

	b, err := openApp(ctx)
	require.NoError(t, err)
	defer b.Close()

	bin := b.store.RecycleBin()
	require.Len(t, bin, 1)
	assert.Equal(t, "new", bin[0].ID)
}

func TestEditPlatforms(t *testing.T) {
	setupApp(t)
	ctx := context.Background()

	require.NoError(t, updatePlatform(ctx, platforms.Cursor, func(p *catalogtypes.Platform) {
		p.Enabled = true
		p.CurrentPath = "/tmp/cursor-skills"
	}))

	a, err := openApp(ctx)
	require.NoError(t, err)
	defer a.Close()

	cursor, ok := platforms.Find(a.platforms, platforms.Cursor)
	require.True(t, ok)
	assert.True(t, cursor.Enabled)
	assert.Equal(t, "/tmp/cursor-skills", cursor.CurrentPath)

	assert.ErrorIs(t, updatePlatform(ctx, "notepad", func(*catalogtypes.Platform) {}), platforms.ErrUnknownPlatform)
}

func TestAdoptKeepsName(t *testing.T) {
	assert.Nil(t, adoptCmd.Flags().Lookup("name"), "renaming would orphan the store directory")

	require.NoError(t, adoptCmd.Flags().Set("source", "acme/alpha"))
	t.Cleanup(func() { adoptCmd.Flags().Set("source", "") })
	config := getAdoptConfigFromFlags(adoptCmd)
	assert.Equal(t, "acme/alpha", config.Source)
}
