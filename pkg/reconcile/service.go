// Package reconcile connects the catalog to a backend.Backend. It detects
// skills that live only in platform directories, folds synced records into
// the catalog, and pushes each skill's enabled set out to the platforms.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend"
	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/skills"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Environment supplies the effective platform list and the central store
// location at call time
type Environment interface {
	Agents() []catalogtypes.Platform
	StoragePath() string
}

// StaticEnvironment is an Environment with fixed values
type StaticEnvironment struct {
	Platforms []catalogtypes.Platform
	Path      string
}

// Agents returns the platform list resolved against the registry
func (e StaticEnvironment) Agents() []catalogtypes.Platform {
	return platforms.Resolve(e.Platforms)
}

// StoragePath returns the central store path
func (e StaticEnvironment) StoragePath() string {
	return e.Path
}

var _ catalog.Executor = (*Service)(nil)

// Service implements catalog.Executor on top of a Backend and adds the
// reconciliation operations
type Service struct {
	store   *catalog.Store
	backend backend.Backend
	env     Environment

	mu    sync.Mutex
	lanes map[string]*lane
}

// NewService creates a Service
func NewService(store *catalog.Store, b backend.Backend, env Environment) *Service {
	return &Service{
		store:   store,
		backend: b,
		env:     env,
		lanes:   make(map[string]*lane),
	}
}

// Backend returns the underlying backend
func (s *Service) Backend() backend.Backend {
	return s.backend
}

// Bootstrap makes sure every tracked skill has a directory in the central store
func (s *Service) Bootstrap(ctx context.Context) error {
	_, err := s.backend.Bootstrap(ctx, s.store.Skills(), s.env.StoragePath())
	return errors.Wrap(err, "failed to bootstrap central store")
}

// compileMatch builds a case-insensitive name filter. An empty pattern
// matches everything.
func compileMatch(pattern string) (glob.Glob, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(catalogtypes.NormalizeName(pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid match pattern %q", pattern)
	}
	return g, nil
}

func (s *Service) tracked() map[string]struct{} {
	snap := s.store.Snapshot()
	names := make(map[string]struct{}, len(snap.Skills)+len(snap.RecycleBin))
	for _, list := range [][]catalogtypes.Skill{snap.Skills, snap.RecycleBin} {
		for _, sk := range list {
			names[catalogtypes.NormalizeName(sk.Name)] = struct{}{}
		}
	}
	return names
}

// DetectUntracked returns skills found in enabled platform directories whose
// normalized name is neither in the catalog nor in the recycle bin. match is
// an optional glob over the normalized name.
func (s *Service) DetectUntracked(ctx context.Context, match string) ([]catalogtypes.Candidate, error) {
	filter, err := compileMatch(match)
	if err != nil {
		return nil, err
	}

	found, err := s.backend.DetectUntracked(ctx, s.env.Agents(), s.env.StoragePath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to detect untracked skills")
	}

	tracked := s.tracked()
	out := make([]catalogtypes.Candidate, 0, len(found))
	for _, c := range found {
		key := catalogtypes.NormalizeName(c.Name)
		if key == "" {
			continue
		}
		if _, ok := tracked[key]; ok {
			continue
		}
		if filter != nil && !filter.Match(key) {
			continue
		}
		out = append(out, c)
	}

	logger.G(ctx).WithField("candidates", len(out)).Debug("untracked skill detection finished")
	return out, nil
}

// SyncSelected copies the named skills into the central store and merges the
// resulting records into the catalog
func (s *Service) SyncSelected(ctx context.Context, names []string) ([]catalogtypes.Skill, error) {
	if len(names) == 0 {
		return nil, nil
	}
	records, err := s.backend.SyncSelected(ctx, s.env.Agents(), names, s.env.StoragePath())
	if err != nil {
		s.recordSyncFailure(ctx, err)
		return nil, errors.Wrap(err, "failed to sync selected skills")
	}
	s.merge(ctx, records)
	return records, nil
}

// SyncAll imports every platform skill into the central store and merges the
// resulting records into the catalog
func (s *Service) SyncAll(ctx context.Context, progress catalogtypes.ProgressFunc) ([]catalogtypes.Skill, error) {
	records, err := s.Collect(ctx, progress)
	if err != nil {
		s.recordSyncFailure(ctx, err)
		return nil, err
	}
	s.merge(ctx, records)
	return records, nil
}

// Collect fetches every platform skill like SyncAll but leaves merging to the
// caller, which may discard the result of a superseded run
func (s *Service) Collect(ctx context.Context, progress catalogtypes.ProgressFunc) ([]catalogtypes.Skill, error) {
	records, err := s.backend.SyncAll(ctx, s.env.Agents(), s.env.StoragePath(), progress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sync skills")
	}
	return records, nil
}

// Merge folds synced records into the catalog and logs one sync entry
func (s *Service) Merge(ctx context.Context, records []catalogtypes.Skill) {
	s.merge(ctx, records)
}

func (s *Service) merge(ctx context.Context, records []catalogtypes.Skill) {
	s.store.MergeSkills(records)
	s.store.AddLog(catalogtypes.LogEntry{
		Action:  catalogtypes.LogActionSync,
		Status:  catalogtypes.LogStatusSuccess,
		Message: syncMessage(len(records)),
	})
	logger.G(ctx).WithField("records", len(records)).Info("merged synced skills into catalog")
}

func (s *Service) recordSyncFailure(ctx context.Context, err error) {
	logger.G(ctx).WithError(err).Warn("sync failed")
	s.store.AddLog(catalogtypes.LogEntry{
		Action:  catalogtypes.LogActionSync,
		Status:  catalogtypes.LogStatusError,
		Message: fmt.Sprintf("sync failed: %v", err),
	})
}

// Reinstall asks the backend to refresh skill from its source
func (s *Service) Reinstall(ctx context.Context, skill catalogtypes.Skill) (catalogtypes.Skill, error) {
	return s.backend.Reinstall(ctx, backend.ReinstallRequest{
		SkillID:       skill.ID,
		SkillName:     skill.Name,
		RepoURL:       skill.SourceURL,
		EnabledAgents: skill.EnabledAgents,
		StoragePath:   s.env.StoragePath(),
	})
}

// Uninstall removes the skill from the central store and every platform
func (s *Service) Uninstall(ctx context.Context, skill catalogtypes.Skill) error {
	return s.backend.Uninstall(ctx, skill, s.env.Agents(), s.env.StoragePath())
}

// Install fetches a new skill and adds it to the catalog
func (s *Service) Install(ctx context.Context, repoURL, skillName string) (catalogtypes.Skill, error) {
	if name := strings.TrimSpace(skillName); name != "" {
		if s.store.NameTaken(name) || s.store.NameTaken(skills.SafeDirName(name)) {
			return catalogtypes.Skill{}, errors.Wrapf(catalog.ErrDuplicateName, "skill %q", name)
		}
	}

	skill, err := s.backend.InstallNew(ctx, repoURL, skillName, s.env.StoragePath())
	if err != nil {
		logger.G(ctx).WithError(err).WithField("url", repoURL).Warn("install failed")
		s.store.AddLog(catalogtypes.LogEntry{
			Action:  catalogtypes.LogActionInstall,
			Status:  catalogtypes.LogStatusError,
			Message: fmt.Sprintf("install %s: %v", repoURL, err),
		})
		return catalogtypes.Skill{}, errors.Wrap(err, "failed to install skill")
	}
	if err := s.store.AddSkill(skill); err != nil {
		// the fresh copy went into its own directory; drop it so nothing is orphaned
		if cleanupErr := s.backend.Uninstall(ctx, skill, nil, s.env.StoragePath()); cleanupErr != nil {
			logger.G(ctx).WithError(cleanupErr).WithField("skill_name", skill.Name).Warn("failed to remove rejected install")
		}
		return catalogtypes.Skill{}, err
	}
	s.store.AddLog(catalogtypes.LogEntry{
		Action:  catalogtypes.LogActionInstall,
		SkillID: skill.ID,
		Status:  catalogtypes.LogStatusSuccess,
		Message: fmt.Sprintf("installed %s from %s", skill.Name, repoURL),
	})
	return skill, nil
}

// Describe reads a tracked skill's manifest from the central store
func (s *Service) Describe(ctx context.Context, skill catalogtypes.Skill) (backend.Details, error) {
	return s.backend.Describe(ctx, skill.Name, s.env.StoragePath())
}

func syncMessage(n int) string {
	if n == 1 {
		return "synced 1 skill into the catalog"
	}
	return fmt.Sprintf("synced %d skills into the catalog", n)
}
