// Package persist stores the catalog, the platform list and the settings as
// versioned JSON documents in the state database. Older document versions
// are upgraded on load by pure migration functions.
package persist

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Current document versions
const (
	CatalogVersion   = 3
	PlatformsVersion = 1
	SettingsVersion  = 1
)

// Defaults applied to missing settings
const (
	DefaultStoragePath   = "~/.skillsm"
	DefaultRetentionDays = 15
)

// ErrFutureVersion is returned for documents written by a newer release
var ErrFutureVersion = errors.New("document version is newer than supported")

// seed records shipped by early releases, removed on migration
var (
	demoSkillIDs   = map[string]struct{}{"1": {}, "2": {}, "3": {}}
	demoSkillNames = map[string]struct{}{
		"Git Workflow Helper":       {},
		"Rust Analyzer Pro":         {},
		"Tailwind CSS IntelliSense": {},
	}
)

// Settings are the user preferences kept alongside the catalog
type Settings struct {
	StoragePath             string `json:"storagePath"`
	HasCompletedOnboarding  bool   `json:"hasCompletedOnboarding"`
	RecycleBinRetentionDays int    `json:"recycleBinRetentionDays"`
}

// DefaultSettings returns the settings of a fresh installation
func DefaultSettings() Settings {
	return Settings{StoragePath: DefaultStoragePath, RecycleBinRetentionDays: DefaultRetentionDays}
}

// rawCatalog tolerates missing or null lists in old documents
type rawCatalog struct {
	Skills     []catalogtypes.Skill    `json:"skills"`
	RecycleBin []catalogtypes.Skill    `json:"recycleBin"`
	Logs       []catalogtypes.LogEntry `json:"logs"`
}

// MigrateCatalog upgrades a catalog document of the given version to the
// current version. Empty or non-object data yields an empty catalog.
// Versions before 3 lose the demo seed records; every version gets its
// install classification back-filled.
func MigrateCatalog(version int, data []byte) (catalog.State, error) {
	if version > CatalogVersion {
		return catalog.State{}, errors.Wrapf(ErrFutureVersion, "catalog version %d", version)
	}

	var raw rawCatalog
	if !isObject(data) {
		return emptyState(), nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return catalog.State{}, errors.Wrap(err, "failed to decode catalog document")
	}

	if version < 3 {
		raw.Skills = withoutDemo(raw.Skills)
		raw.RecycleBin = withoutDemo(raw.RecycleBin)
	}

	state := catalog.State{
		Skills:     normalizeSkills(raw.Skills),
		RecycleBin: normalizeSkills(raw.RecycleBin),
		Logs:       raw.Logs,
	}
	if state.Logs == nil {
		state.Logs = []catalogtypes.LogEntry{}
	}
	return state, nil
}

// MigratePlatforms decodes a stored platform list and resolves it against the
// registry, so platforms added by newer releases always appear
func MigratePlatforms(version int, data []byte) ([]catalogtypes.Platform, error) {
	if version > PlatformsVersion {
		return nil, errors.Wrapf(ErrFutureVersion, "platforms version %d", version)
	}
	var stored []catalogtypes.Platform
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, errors.Wrap(err, "failed to decode platforms document")
		}
	}
	return platforms.Resolve(stored), nil
}

// MigrateSettings decodes stored settings, filling defaults for missing fields
func MigrateSettings(version int, data []byte) (Settings, error) {
	if version > SettingsVersion {
		return Settings{}, errors.Wrapf(ErrFutureVersion, "settings version %d", version)
	}
	settings := DefaultSettings()
	if isObject(data) {
		if err := json.Unmarshal(data, &settings); err != nil {
			return Settings{}, errors.Wrap(err, "failed to decode settings document")
		}
	}
	if strings.TrimSpace(settings.StoragePath) == "" {
		settings.StoragePath = DefaultStoragePath
	}
	if settings.RecycleBinRetentionDays == 0 {
		settings.RecycleBinRetentionDays = DefaultRetentionDays
	}
	settings.RecycleBinRetentionDays = catalog.ClampRetention(settings.RecycleBinRetentionDays)
	return settings, nil
}

func emptyState() catalog.State {
	return catalog.State{
		Skills:     []catalogtypes.Skill{},
		RecycleBin: []catalogtypes.Skill{},
		Logs:       []catalogtypes.LogEntry{},
	}
}

func isObject(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "{")
}

func withoutDemo(skills []catalogtypes.Skill) []catalogtypes.Skill {
	out := make([]catalogtypes.Skill, 0, len(skills))
	for _, sk := range skills {
		if _, ok := demoSkillIDs[sk.ID]; ok {
			continue
		}
		if _, ok := demoSkillNames[sk.Name]; ok {
			continue
		}
		out = append(out, sk)
	}
	return out
}

func normalizeSkills(skills []catalogtypes.Skill) []catalogtypes.Skill {
	out := make([]catalogtypes.Skill, 0, len(skills))
	for _, sk := range skills {
		sk = sk.WithClassification()
		if sk.EnabledAgents == nil {
			sk.EnabledAgents = []catalogtypes.AgentID{}
		}
		out = append(out, sk)
	}
	return out
}
