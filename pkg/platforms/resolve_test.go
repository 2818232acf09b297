package platforms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

func TestDefaults(t *testing.T) {
	defaults := Defaults()
	assert.Len(t, defaults, 25)

	enabled := Enabled(defaults)
	ids := make([]catalog.AgentID, 0, len(enabled))
	for _, p := range enabled {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []catalog.AgentID{ClaudeCode, Codex}, ids)

	defaults[0].SuggestedPaths[0] = "mutated"
	assert.NotEqual(t, "mutated", Defaults()[0].SuggestedPaths[0])
}

func TestLookup(t *testing.T) {
	p, err := Lookup(Codex)
	require.NoError(t, err)
	assert.Equal(t, "Codex", p.Name)
	assert.Equal(t, "~/.codex/skills/", p.DefaultPath)

	_, err = Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.False(t, IsKnown("nope"))
}

func TestResolve(t *testing.T) {
	t.Run("empty input yields full registry", func(t *testing.T) {
		got := Resolve(nil)
		assert.Equal(t, Defaults(), got)
	})

	t.Run("stored list missing a platform still includes it", func(t *testing.T) {
		stored := []catalog.Platform{
			{ID: ClaudeCode, Name: "Claude Code", CurrentPath: "~/custom/claude", DefaultPath: "~/.claude/skills/", Enabled: false},
		}
		got := Resolve(stored)
		assert.Len(t, got, 25)

		codex, ok := Find(got, Codex)
		require.True(t, ok)
		assert.True(t, codex.Enabled)

		claude, ok := Find(got, ClaudeCode)
		require.True(t, ok)
		assert.Equal(t, "~/custom/claude", claude.CurrentPath)
		assert.False(t, claude.Enabled)
	})

	t.Run("blank paths fall back to registry defaults", func(t *testing.T) {
		got := Resolve([]catalog.Platform{{ID: Cursor, CurrentPath: "   ", Enabled: true}})
		cursor, ok := Find(got, Cursor)
		require.True(t, ok)
		assert.Equal(t, "~/.cursor/skills/", cursor.CurrentPath)
		assert.Equal(t, "~/.cursor/skills/", cursor.DefaultPath)
		assert.Equal(t, "Cursor", cursor.Name)
		assert.True(t, cursor.Enabled)
	})

	t.Run("unknown platforms are appended", func(t *testing.T) {
		custom := catalog.Platform{ID: "my-agent", Name: "Mine", CurrentPath: "/tmp/mine", Enabled: true}
		got := Resolve([]catalog.Platform{custom})
		assert.Len(t, got, 26)
		assert.Equal(t, custom.ID, got[25].ID)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := Resolve([]catalog.Platform{{ID: Codex, CurrentPath: "/x", Enabled: false}})
		assert.Equal(t, once, Resolve(once))
	})
}

func TestRoots(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("same current and default collapse", func(t *testing.T) {
		p, _ := Lookup(Codex)
		assert.Equal(t, []string{filepath.Join(home, ".codex", "skills")}, Roots(p))
	})

	t.Run("distinct paths are both returned", func(t *testing.T) {
		p := catalog.Platform{ID: "x", CurrentPath: "/tmp/current", DefaultPath: "/tmp/default"}
		assert.Equal(t, []string{"/tmp/current", "/tmp/default"}, Roots(p))
	})

	t.Run("blank paths are skipped", func(t *testing.T) {
		p := catalog.Platform{ID: "x", CurrentPath: "", DefaultPath: "/tmp/default"}
		assert.Equal(t, []string{"/tmp/default"}, Roots(p))
	})
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, ".skillsm"), ExpandTilde(" ~/.skillsm "))
	assert.Equal(t, "/abs/path", ExpandTilde("/abs/path"))
}
