package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedInstallSource(t *testing.T) {
	tests := []struct {
		name    string
		skill   Skill
		source  InstallSource
		adopted bool
	}{
		{name: "source url means platform", skill: Skill{SourceURL: "github.com/foo/bar"}, source: InstallSourcePlatform, adopted: true},
		{name: "no source url means external", skill: Skill{}, source: InstallSourceExternal, adopted: false},
		{name: "explicit source wins", skill: Skill{SourceURL: "x/y", InstallSource: InstallSourceExternal}, source: InstallSourceExternal, adopted: false},
		{name: "explicit adoption wins", skill: Skill{IsAdopted: Bool(true)}, source: InstallSourceExternal, adopted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.source, tt.skill.DerivedInstallSource())
			assert.Equal(t, tt.adopted, tt.skill.Adopted())

			classified := tt.skill.WithClassification()
			assert.Equal(t, tt.source, classified.InstallSource)
			require.NotNil(t, classified.IsAdopted)
			assert.Equal(t, tt.adopted, *classified.IsAdopted)
			assert.NotNil(t, classified.EnabledAgents)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Skill{ID: "s1", EnabledAgents: []AgentID{"codex"}, IsAdopted: Bool(true)}
	cp := orig.Clone()
	cp.EnabledAgents[0] = "cursor"
	*cp.IsAdopted = false

	assert.Equal(t, AgentID("codex"), orig.EnabledAgents[0])
	assert.True(t, *orig.IsAdopted)
}

func TestUnionAgents(t *testing.T) {
	got := UnionAgents([]AgentID{"codex", "cursor"}, []AgentID{"cursor", "amp", "codex"}, nil)
	assert.Equal(t, []AgentID{"codex", "cursor", "amp"}, got)
	assert.Empty(t, UnionAgents())
	assert.NotNil(t, UnionAgents())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "new skill", NormalizeName("  New Skill "))
	assert.Equal(t, NormalizeName("Alpha"), NormalizeName("alpha"))
}

func TestParseTime(t *testing.T) {
	ts := time.Date(2026, 1, 23, 2, 15, 34, 0, time.UTC)

	parsed, ok := ParseTime(FormatTime(ts))
	require.True(t, ok)
	assert.True(t, ts.Equal(parsed))

	parsed, ok = ParseTime("2026-01-23T02:15:34.123Z")
	require.True(t, ok)
	assert.Equal(t, 2026, parsed.Year())

	_, ok = ParseTime("not a date")
	assert.False(t, ok)
	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestUpdatable(t *testing.T) {
	assert.True(t, Skill{SourceURL: "foo/bar"}.Updatable())
	assert.False(t, Skill{}.Updatable())
	assert.False(t, Skill{SourceURL: "foo/bar", InstallSource: InstallSourceExternal}.Updatable())
}

func TestClampProgress(t *testing.T) {
	assert.Equal(t, 0.0, ClampProgress(-3))
	assert.Equal(t, 100.0, ClampProgress(120))
	assert.Equal(t, 42.5, ClampProgress(42.5))
}
