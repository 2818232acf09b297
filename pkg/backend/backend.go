// Package backend defines the command boundary between the catalog core and
// the executor that performs file operations on the central store and on
// platform directories. The core decides what should exist where; a Backend
// makes it so.
package backend

import (
	"context"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// ReinstallRequest identifies the skill to refresh from its source
type ReinstallRequest struct {
	SkillID       string
	SkillName     string
	RepoURL       string
	EnabledAgents []catalog.AgentID
	StoragePath   string
}

// Details describes a skill directory in the central store
type Details struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Directory   string `json:"directory" yaml:"directory"`
}

// Backend is the external executor. Implementations must be safe for
// concurrent use across different skills.
type Backend interface {
	// Bootstrap makes sure every tracked skill has a directory in the store
	Bootstrap(ctx context.Context, skills []catalog.Skill, storagePath string) ([]catalog.Skill, error)
	// InstallNew fetches a skill from repoURL into the store. A non-empty
	// skillName selects one skill from a multi-skill repository.
	InstallNew(ctx context.Context, repoURL, skillName, storagePath string) (catalog.Skill, error)
	// Reinstall refreshes an existing skill from its source
	Reinstall(ctx context.Context, req ReinstallRequest) (catalog.Skill, error)
	// Uninstall removes the skill from the store and from every platform root
	Uninstall(ctx context.Context, skill catalog.Skill, agents []catalog.Platform, storagePath string) error
	// DistributeOne makes every enabled platform match skill.EnabledAgents
	DistributeOne(ctx context.Context, skill catalog.Skill, agents []catalog.Platform, storagePath string) error
	// DetectUntracked lists skills present in enabled platform directories
	DetectUntracked(ctx context.Context, agents []catalog.Platform, storagePath string) ([]catalog.Candidate, error)
	// SyncSelected copies the named skills from platform directories into the store
	SyncSelected(ctx context.Context, agents []catalog.Platform, names []string, storagePath string) ([]catalog.Skill, error)
	// SyncAll copies every platform skill into the store and returns a record per store directory
	SyncAll(ctx context.Context, agents []catalog.Platform, storagePath string, progress catalog.ProgressFunc) ([]catalog.Skill, error)
	// Describe reads a store skill's manifest
	Describe(ctx context.Context, skillName, storagePath string) (Details, error)
	// ResetStore deletes the central store
	ResetStore(ctx context.Context, storagePath string) error
	// MigrateStore moves the store contents to a new location
	MigrateStore(ctx context.Context, fromStoragePath, toStoragePath string) error
}
