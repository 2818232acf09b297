package local

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/skills"
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// rootPlan is the desired state of one skill inside one platform root
type rootPlan struct {
	root       string
	present    bool
	needsFront bool
}

// planRoots folds enabled platforms into per-root decisions. Two platforms
// sharing a root get one decision: present if either wants the skill.
func planRoots(skill catalog.Skill, agents []catalog.Platform) []rootPlan {
	var plans []rootPlan
	index := make(map[string]int)

	for _, agent := range agents {
		if !agent.Enabled {
			continue
		}
		want := skill.HasAgent(agent.ID)
		for _, root := range platforms.Roots(agent) {
			idx, ok := index[root]
			if !ok {
				idx = len(plans)
				index[root] = idx
				plans = append(plans, rootPlan{root: root})
			}
			if want {
				plans[idx].present = true
				if agent.ID == platforms.Codex {
					plans[idx].needsFront = true
				}
			}
		}
	}
	return plans
}

// DistributeOne makes every root of every enabled platform match
// skill.EnabledAgents. Distinct roots are written concurrently.
func (b *Backend) DistributeOne(ctx context.Context, skill catalog.Skill, agents []catalog.Platform, storagePath string) error {
	store, err := storeRoot(storagePath)
	if err != nil {
		return err
	}

	dirName := skills.SafeDirName(skill.Name)
	src := filepath.Join(store, dirName)
	plans := planRoots(skill, agents)

	for _, plan := range plans {
		if plan.present && !exists(src) {
			return errors.Errorf("skill store not found for %s at %s", skill.Name, src)
		}
	}

	log := logger.G(ctx).WithField("skill_id", skill.ID).WithField("skill_name", skill.Name)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for _, plan := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(plan.root, dirName)
			if samePath(dst, src) {
				return nil
			}
			if !plan.present {
				if err := os.RemoveAll(dst); err != nil {
					return errors.Wrapf(err, "failed to remove %s", dst)
				}
				return nil
			}
			if err := os.MkdirAll(plan.root, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create %s", plan.root)
			}
			if err := copyDir(src, dst); err != nil {
				return err
			}
			if plan.needsFront {
				if file, ok := skills.FindFile(dst); ok {
					if _, err := skills.EnsureFrontmatter(file, skill.Name); err != nil {
						return err
					}
				}
			}
			log.WithField("root", plan.root).Debug("skill materialized")
			return nil
		})
	}

	return g.Wait()
}

// Uninstall removes the skill from the store and from every root of every
// platform, enabled or not
func (b *Backend) Uninstall(ctx context.Context, skill catalog.Skill, agents []catalog.Platform, storagePath string) error {
	dirName := skills.SafeDirName(skill.Name)

	var result *multierror.Error
	targets := []string{filepath.Join(platforms.ExpandTilde(storagePath), dirName)}
	for _, agent := range agents {
		for _, root := range platforms.Roots(agent) {
			targets = append(targets, filepath.Join(root, dirName))
		}
	}

	for _, target := range targets {
		if err := os.RemoveAll(target); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to remove %s", target))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	logger.G(ctx).WithField("skill_name", skill.Name).Debug("skill uninstalled")
	return nil
}
