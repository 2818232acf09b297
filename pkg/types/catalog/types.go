// Package catalog defines the data types shared by the skill catalog,
// the reconciliation and distribution services, and the command boundary
// to the filesystem backend: skills, agent platforms, detected candidates,
// operation log entries and progress events.
package catalog

import (
	"slices"
	"strings"
	"time"
)

// AgentID identifies a supported agent platform (e.g. "codex", "claude-code")
type AgentID string

// InstallSource classifies who manages a skill's lifecycle
type InstallSource string

const (
	// InstallSourcePlatform means the skill was installed by this application and may be reinstalled or updated
	InstallSourcePlatform InstallSource = "platform"
	// InstallSourceExternal means the skill was discovered in a platform directory and not yet adopted
	InstallSourceExternal InstallSource = "external"
)

// TimeLayout is the ISO-8601 layout used for every persisted timestamp
const TimeLayout = time.RFC3339

// Skill is a tracked asset. A record with DeletedAt set lives in the recycle bin.
type Skill struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	SourceURL     string        `json:"sourceUrl,omitempty" yaml:"sourceUrl,omitempty"`
	InstallSource InstallSource `json:"installSource,omitempty" yaml:"installSource,omitempty"`
	IsAdopted     *bool         `json:"isAdopted,omitempty" yaml:"isAdopted,omitempty"`
	EnabledAgents []AgentID     `json:"enabledAgents" yaml:"enabledAgents"`
	LastSync      string        `json:"lastSync,omitempty" yaml:"lastSync,omitempty"`
	LastUpdate    string        `json:"lastUpdate,omitempty" yaml:"lastUpdate,omitempty"`
	DeletedAt     string        `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

// Clone returns a deep copy of the skill
func (s Skill) Clone() Skill {
	out := s
	out.EnabledAgents = slices.Clone(s.EnabledAgents)
	if s.IsAdopted != nil {
		adopted := *s.IsAdopted
		out.IsAdopted = &adopted
	}
	return out
}

// DerivedInstallSource returns the explicit install source, or platform when a
// source URL is bound and external otherwise.
func (s Skill) DerivedInstallSource() InstallSource {
	if s.InstallSource != "" {
		return s.InstallSource
	}
	if s.SourceURL != "" {
		return InstallSourcePlatform
	}
	return InstallSourceExternal
}

// Adopted reports whether the skill is adopted, deriving it from the install source when unset
func (s Skill) Adopted() bool {
	if s.IsAdopted != nil {
		return *s.IsAdopted
	}
	return s.DerivedInstallSource() == InstallSourcePlatform
}

// WithClassification back-fills InstallSource and IsAdopted when they are absent
func (s Skill) WithClassification() Skill {
	out := s.Clone()
	out.InstallSource = s.DerivedInstallSource()
	out.IsAdopted = Bool(out.Adopted())
	if out.EnabledAgents == nil {
		out.EnabledAgents = []AgentID{}
	}
	return out
}

// HasAgent reports whether the skill is enabled for the given platform
func (s Skill) HasAgent(id AgentID) bool {
	return slices.Contains(s.EnabledAgents, id)
}

// Updatable reports whether update-all may reinstall the skill
func (s Skill) Updatable() bool {
	return s.DerivedInstallSource() == InstallSourcePlatform && s.SourceURL != ""
}

// UnionAgents merges agent sets preserving first-seen order and dropping duplicates
func UnionAgents(sets ...[]AgentID) []AgentID {
	out := []AgentID{}
	seen := make(map[AgentID]struct{})
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// NormalizeName is the single dedup key used for every name comparison
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Bool returns a pointer to v
func Bool(v bool) *bool {
	return &v
}

// FormatTime renders t in the persisted timestamp layout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. Fractional seconds are accepted.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Platform is one supported agent target directory
type Platform struct {
	ID             AgentID  `json:"id" yaml:"id" mapstructure:"id"`
	Name           string   `json:"name" yaml:"name" mapstructure:"name"`
	DefaultPath    string   `json:"defaultPath" yaml:"defaultPath" mapstructure:"default_path"`
	CurrentPath    string   `json:"currentPath" yaml:"currentPath" mapstructure:"current_path"`
	Enabled        bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	SuggestedPaths []string `json:"suggestedPaths,omitempty" yaml:"suggestedPaths,omitempty" mapstructure:"suggested_paths"`
}

// Candidate is an untracked skill found in one or more platform directories
type Candidate struct {
	Name             string    `json:"name"`
	SourceAgentIDs   []AgentID `json:"sourceAgentIds"`
	SourceAgentNames []string  `json:"sourceAgentNames"`
}

// LogAction is the kind of operation recorded in the operation log
type LogAction string

const (
	LogActionInstall   LogAction = "install"
	LogActionUninstall LogAction = "uninstall"
	LogActionEnable    LogAction = "enable"
	LogActionDisable   LogAction = "disable"
	LogActionSync      LogAction = "sync"
	LogActionRestore   LogAction = "restore"
	LogActionUpdate    LogAction = "update"
)

// LogStatus is the outcome of a logged operation
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// LogEntry is one operation log record
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Action    LogAction `json:"action"`
	SkillID   string    `json:"skillId"`
	AgentID   AgentID   `json:"agentId,omitempty"`
	Status    LogStatus `json:"status"`
	Message   string    `json:"message"`
}
