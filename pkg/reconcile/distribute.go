package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// lane serializes distribution for one skill. Requests queue on mu; gen is
// the newest request issued, so a queued request that has been overtaken
// skips its write and the newest desired state is the one left on disk.
type lane struct {
	mu  sync.Mutex
	gen uint64
}

func (s *Service) lane(skillID string) (*lane, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[skillID]
	if !ok {
		l = &lane{}
		s.lanes[skillID] = l
	}
	l.gen++
	return l, l.gen
}

func (s *Service) latest(l *lane, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return l.gen == gen
}

// Distribute makes every enabled platform directory match skill.EnabledAgents.
// Calls for the same skill are serialized and the last one issued wins.
func (s *Service) Distribute(ctx context.Context, skill catalogtypes.Skill) error {
	l, gen := s.lane(skill.ID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !s.latest(l, gen) {
		logger.G(ctx).WithField("skill_id", skill.ID).Debug("distribution superseded by a newer request")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.DistributeOne(ctx, skill, s.env.Agents(), s.env.StoragePath())
}

// DistributeAll distributes skills one at a time. A failing skill is recorded
// and the batch continues; the returned error aggregates every failure.
// Progress ids are "init", "sync-<skill id>" and "done".
func (s *Service) DistributeAll(ctx context.Context, skills []catalogtypes.Skill, progress catalogtypes.ProgressFunc) error {
	log := logger.G(ctx).WithField("channel", catalogtypes.ChannelDistributeAll)
	progress.Emit(catalogtypes.ProgressEvent{ID: "init", Label: "Preparing distribution", Status: catalogtypes.ProgressLoading, Progress: 0})
	progress.Emit(catalogtypes.ProgressEvent{ID: "init", Label: fmt.Sprintf("Distributing %d skill(s)", len(skills)), Status: catalogtypes.ProgressSuccess, Progress: 5})

	var result *multierror.Error
	total := float64(max(len(skills), 1))
	for i, skill := range skills {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}

		id := "sync-" + skill.ID
		label := fmt.Sprintf("Syncing %s", skill.Name)
		progress.Emit(catalogtypes.ProgressEvent{ID: id, Label: label, Status: catalogtypes.ProgressLoading, Progress: 5 + float64(i)/total*90})

		if err := s.Distribute(ctx, skill); err != nil {
			log.WithField("skill_id", skill.ID).WithError(err).Warn("skill distribution failed")
			result = multierror.Append(result, errors.Wrapf(err, "skill %s", skill.Name))
			progress.Emit(catalogtypes.ProgressEvent{ID: id, Label: fmt.Sprintf("Failed to sync %s: %v", skill.Name, err), Status: catalogtypes.ProgressError, Progress: 5 + float64(i+1)/total*90})
			continue
		}
		progress.Emit(catalogtypes.ProgressEvent{ID: id, Label: fmt.Sprintf("Synced %s", skill.Name), Status: catalogtypes.ProgressSuccess, Progress: 5 + float64(i+1)/total*90})
	}

	if err := result.ErrorOrNil(); err != nil {
		progress.Emit(catalogtypes.ProgressEvent{ID: "done", Label: fmt.Sprintf("Distribution finished with %d error(s)", len(result.Errors)), Status: catalogtypes.ProgressError, Progress: 100})
		return err
	}
	progress.Emit(catalogtypes.ProgressEvent{ID: "done", Label: "Distribution complete", Status: catalogtypes.ProgressSuccess, Progress: 100})
	return nil
}

// HadErrors reports whether a batch error carries at least one failure
func HadErrors(err error) bool {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return len(merr.Errors) > 0
	}
	return err != nil
}
