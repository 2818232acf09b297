package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/skills"
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// platformSkill is a skill directory found under a platform root
type platformSkill struct {
	agent catalog.Platform
	dir   string
	name  string
}

// scan walks the roots of every enabled platform and calls fn for each skill
// directory found. Unreadable roots are logged and skipped.
func scan(ctx context.Context, agent catalog.Platform, fn func(platformSkill) error) error {
	if !agent.Enabled {
		return nil
	}
	for _, root := range platforms.Roots(agent) {
		dirs, err := skills.FindRoots(root)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("agent_id", agent.ID).Warn("failed to scan platform root")
			continue
		}
		for _, dir := range dirs {
			name := filepath.Base(dir)
			if name == "" || strings.HasPrefix(name, ".") {
				continue
			}
			if err := fn(platformSkill{agent: agent, dir: dir, name: name}); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetectUntracked lists every skill present in an enabled platform directory,
// annotated with the platforms it was found on. Tracked-ness is decided by
// the caller, which owns the catalog.
func (b *Backend) DetectUntracked(ctx context.Context, agents []catalog.Platform, _ string) ([]catalog.Candidate, error) {
	byKey := make(map[string]*catalog.Candidate)

	for _, agent := range agents {
		if !agent.Enabled {
			continue
		}
		discovery, err := skills.NewDiscovery(skills.WithSkillDirs(platforms.Roots(agent)...))
		if err != nil {
			return nil, err
		}
		names, err := discovery.ListSkillNames(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			dirName := skills.SafeDirName(name)
			key := catalog.NormalizeName(dirName)
			c, ok := byKey[key]
			if !ok {
				c = &catalog.Candidate{Name: dirName, SourceAgentIDs: []catalog.AgentID{}, SourceAgentNames: []string{}}
				byKey[key] = c
			}
			if !slices.Contains(c.SourceAgentIDs, agent.ID) {
				c.SourceAgentIDs = append(c.SourceAgentIDs, agent.ID)
				c.SourceAgentNames = append(c.SourceAgentNames, agent.Name)
			}
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := make([]catalog.Candidate, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, *byKey[k])
	}
	return candidates, nil
}

// importInto copies a platform skill into the store unless the store already
// holds a copy that is preferred over it
func importInto(store string, ps platformSkill) (string, error) {
	dirName := skills.SafeDirName(ps.name)
	dst := filepath.Join(store, dirName)
	if samePath(ps.dir, dst) {
		return dirName, nil
	}
	if !exists(dst) || skills.Prefer(ps.dir, dst) {
		if err := copyDir(ps.dir, dst); err != nil {
			return "", err
		}
	}
	return dirName, nil
}

// SyncSelected copies the named skills from enabled platforms into the store
// and returns one record per name found, in the order requested
func (b *Backend) SyncSelected(ctx context.Context, agents []catalog.Platform, names []string, storagePath string) ([]catalog.Skill, error) {
	store, err := storeRoot(storagePath)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[catalog.NormalizeName(skills.SafeDirName(n))] = struct{}{}
	}

	dirNames := make(map[string]string)
	found := make(map[string][]catalog.AgentID)
	for _, agent := range agents {
		err := scan(ctx, agent, func(ps platformSkill) error {
			key := catalog.NormalizeName(skills.SafeDirName(ps.name))
			if _, ok := wanted[key]; !ok {
				return nil
			}
			dirName, err := importInto(store, ps)
			if err != nil {
				return err
			}
			if _, ok := dirNames[key]; !ok {
				dirNames[key] = dirName
			}
			if !slices.Contains(found[key], ps.agent.ID) {
				found[key] = append(found[key], ps.agent.ID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	now := b.stamp()
	out := make([]catalog.Skill, 0, len(found))
	emitted := make(map[string]struct{})
	for _, n := range names {
		key := catalog.NormalizeName(skills.SafeDirName(n))
		dirName, ok := dirNames[key]
		if !ok {
			continue
		}
		if _, dup := emitted[key]; dup {
			continue
		}
		emitted[key] = struct{}{}
		out = append(out, catalog.Skill{
			ID:            dirName,
			Name:          dirName,
			EnabledAgents: found[key],
			LastSync:      now,
			LastUpdate:    now,
		})
	}
	return out, nil
}

// SyncAll imports every skill from every enabled platform into the store and
// returns a record for each store directory. Progress is reported in three
// phases: index (0-15), per-platform extraction (15-85) and merge (90-100).
func (b *Backend) SyncAll(ctx context.Context, agents []catalog.Platform, storagePath string, progress catalog.ProgressFunc) ([]catalog.Skill, error) {
	progress.Emit(catalog.ProgressEvent{ID: "init", Label: "Indexing central store", Status: catalog.ProgressLoading, Progress: 0})

	result, err := b.syncAll(ctx, agents, storagePath, progress)
	if err != nil {
		progress.Emit(catalog.ProgressEvent{ID: "error", Label: fmt.Sprintf("Sync failed: %v", err), Status: catalog.ProgressError, Progress: 100})
		return nil, err
	}
	return result, nil
}

func (b *Backend) syncAll(ctx context.Context, agents []catalog.Platform, storagePath string, progress catalog.ProgressFunc) ([]catalog.Skill, error) {
	store, err := storeRoot(storagePath)
	if err != nil {
		return nil, err
	}
	progress.Emit(catalog.ProgressEvent{ID: "init", Label: "Indexing central store", Status: catalog.ProgressSuccess, Progress: 15})

	found := make(map[string][]catalog.AgentID)
	total := float64(max(len(agents), 1))
	for idx, agent := range agents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := "extract-" + string(agent.ID)
		label := fmt.Sprintf("Extracting skills from %s", agent.Name)
		progress.Emit(catalog.ProgressEvent{ID: id, Label: label, Status: catalog.ProgressLoading, Progress: 15 + float64(idx)/total*70})

		err := scan(ctx, agent, func(ps platformSkill) error {
			dirName, err := importInto(store, ps)
			if err != nil {
				return err
			}
			if !slices.Contains(found[dirName], agent.ID) {
				found[dirName] = append(found[dirName], agent.ID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		progress.Emit(catalog.ProgressEvent{ID: id, Label: label, Status: catalog.ProgressSuccess, Progress: 15 + float64(idx+1)/total*70})
	}

	progress.Emit(catalog.ProgressEvent{ID: "merge", Label: "Deduplicating and merging metadata", Status: catalog.ProgressLoading, Progress: 90})

	entries, err := os.ReadDir(store)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read store %s", store)
	}

	now := b.stamp()
	out := make([]catalog.Skill, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		agentsFound := found[name]
		if agentsFound == nil {
			agentsFound = []catalog.AgentID{}
		}
		out = append(out, catalog.Skill{
			ID:            name,
			Name:          name,
			EnabledAgents: agentsFound,
			LastSync:      now,
			LastUpdate:    now,
		})
	}

	progress.Emit(catalog.ProgressEvent{ID: "merge", Label: "Deduplicating and merging metadata", Status: catalog.ProgressSuccess, Progress: 100})
	return out, nil
}

// Bootstrap creates a placeholder directory for every tracked skill that has
// none in the store
func (b *Backend) Bootstrap(ctx context.Context, tracked []catalog.Skill, storagePath string) ([]catalog.Skill, error) {
	store, err := storeRoot(storagePath)
	if err != nil {
		return nil, err
	}

	for _, sk := range tracked {
		dir := filepath.Join(store, skills.SafeDirName(sk.Name))
		if exists(dir) {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
		placeholder := fmt.Sprintf("# %s\n", sk.Name)
		if err := os.WriteFile(filepath.Join(dir, skills.FileName), []byte(placeholder), 0o644); err != nil {
			return nil, errors.Wrapf(err, "failed to write placeholder for %s", sk.Name)
		}
		logger.G(ctx).WithField("skill_name", sk.Name).Debug("created placeholder skill directory")
	}
	return tracked, nil
}

// Describe reads the manifest of a store skill
func (b *Backend) Describe(_ context.Context, skillName, storagePath string) (backend.Details, error) {
	store, err := storeRoot(storagePath)
	if err != nil {
		return backend.Details{}, err
	}
	dir := filepath.Join(store, skills.SafeDirName(skillName))
	skill, err := skills.Load(dir)
	if err != nil {
		return backend.Details{}, errors.Wrapf(err, "failed to read skill %s", skillName)
	}
	return backend.Details{Name: skill.Name, Description: skill.Description, Directory: dir}, nil
}
