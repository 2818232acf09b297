// Package bulk runs the catalog-wide operations (sync all, enable all for a
// platform, update all) under a run guard. Starting an operation supersedes
// the previous run of the same operation; the superseded run's progress and
// results are discarded.
package bulk

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/reconcile"
	"github.com/d0ublecl1ck/skills-manager/pkg/runguard"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Observer receives the live progress log of a channel after every event
type Observer func(channel string, runID uint64, entries []catalogtypes.ProgressEvent)

// Runner owns one guard per bulk operation
type Runner struct {
	manager *catalog.Manager
	service *reconcile.Service

	syncGuard       *runguard.Guard
	distributeGuard *runguard.Guard
	updateGuard     *runguard.Guard
}

// Option configures a Runner
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver streams progress logs of live runs to fn
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// NewRunner creates a Runner
func NewRunner(manager *catalog.Manager, service *reconcile.Service, opts ...Option) *Runner {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	guard := func(channel string) *runguard.Guard {
		if o.observer == nil {
			return runguard.New(channel)
		}
		return runguard.New(channel, runguard.WithObserver(func(id uint64, entries []catalogtypes.ProgressEvent) {
			o.observer(channel, id, entries)
		}))
	}

	return &Runner{
		manager:         manager,
		service:         service,
		syncGuard:       guard(catalogtypes.ChannelSyncAll),
		distributeGuard: guard(catalogtypes.ChannelDistributeAll),
		updateGuard:     guard(catalogtypes.ChannelUpdateAll),
	}
}

// SyncAll imports every platform skill and merges the records into the
// catalog, unless a newer sync has started meanwhile
func (r *Runner) SyncAll(ctx context.Context) ([]catalogtypes.Skill, error) {
	run := r.syncGuard.Begin(ctx)
	defer run.Finish()
	log := logger.G(ctx).WithField("channel", catalogtypes.ChannelSyncAll).WithField("run_id", run.ID())

	records, err := r.service.Collect(run.Context(), run.Progress())
	if staleErr := run.Check(); staleErr != nil {
		log.Debug("discarding superseded sync result")
		return nil, staleErr
	}
	if err != nil {
		r.manager.Store().AddLog(catalogtypes.LogEntry{
			Action:  catalogtypes.LogActionSync,
			Status:  catalogtypes.LogStatusError,
			Message: fmt.Sprintf("sync all: %v", err),
		})
		return nil, err
	}

	r.service.Merge(ctx, records)
	return records, nil
}

// EnableAll enables agentID on every active skill and distributes the whole
// catalog. The catalog change is committed immediately; only the
// distribution outcome of a superseded run is discarded.
func (r *Runner) EnableAll(ctx context.Context, agentID catalogtypes.AgentID) (bool, error) {
	run := r.distributeGuard.Begin(ctx)
	defer run.Finish()

	changed, err := r.manager.EnableAllSkillsForAgent(run.Context(), agentID, run.Progress())
	if staleErr := run.Check(); staleErr != nil {
		return changed, staleErr
	}
	return changed, err
}

// DistributeAll pushes the whole catalog to the platforms
func (r *Runner) DistributeAll(ctx context.Context) error {
	run := r.distributeGuard.Begin(ctx)
	defer run.Finish()

	err := r.service.DistributeAll(run.Context(), r.manager.Store().Skills(), run.Progress())
	if staleErr := run.Check(); staleErr != nil {
		return staleErr
	}
	return err
}

// UpdateAll reinstalls every adopted skill that has a source URL, one at a
// time. A failing skill is recorded and the batch continues. Progress ids are
// "init", "update-<skill id>" and "done".
func (r *Runner) UpdateAll(ctx context.Context) ([]catalogtypes.Skill, error) {
	run := r.updateGuard.Begin(ctx)
	defer run.Finish()
	log := logger.G(ctx).WithField("channel", catalogtypes.ChannelUpdateAll).WithField("run_id", run.ID())

	var targets []catalogtypes.Skill
	for _, sk := range r.manager.Store().Skills() {
		if sk.Updatable() {
			targets = append(targets, sk)
		}
	}

	run.Report(catalogtypes.ProgressEvent{ID: "init", Label: fmt.Sprintf("Found %d updatable skill(s)", len(targets)), Status: catalogtypes.ProgressSuccess, Progress: 5})

	var (
		updated []catalogtypes.Skill
		result  *multierror.Error
	)
	total := float64(max(len(targets), 1))
	for i, sk := range targets {
		if err := run.Check(); err != nil {
			return nil, err
		}

		id := "update-" + sk.ID
		run.Report(catalogtypes.ProgressEvent{ID: id, Label: fmt.Sprintf("Updating %s", sk.Name), Status: catalogtypes.ProgressLoading, Progress: 5 + float64(i)/total*90})

		fresh, err := r.service.Reinstall(run.Context(), sk)
		if staleErr := run.Check(); staleErr != nil {
			log.WithField("skill_id", sk.ID).Debug("discarding superseded update result")
			return nil, staleErr
		}
		if err == nil {
			fresh, err = r.manager.ApplyReinstall(ctx, sk.ID, fresh)
		} else {
			r.manager.RecordFailure(ctx, catalogtypes.LogActionUpdate, sk, err)
		}

		done := 5 + float64(i+1)/total*90
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "skill %s", sk.Name))
			run.Report(catalogtypes.ProgressEvent{ID: id, Label: fmt.Sprintf("Failed to update %s: %v", sk.Name, err), Status: catalogtypes.ProgressError, Progress: done})
			continue
		}
		updated = append(updated, fresh)
		run.Report(catalogtypes.ProgressEvent{ID: id, Label: fmt.Sprintf("Updated %s", sk.Name), Status: catalogtypes.ProgressSuccess, Progress: done})
	}

	if err := result.ErrorOrNil(); err != nil {
		run.Report(catalogtypes.ProgressEvent{ID: "done", Label: fmt.Sprintf("Updated %d skill(s), %d failed", len(updated), len(result.Errors)), Status: catalogtypes.ProgressError, Progress: 100})
		log.WithError(err).Warn("update all finished with errors")
		return updated, err
	}
	run.Report(catalogtypes.ProgressEvent{ID: "done", Label: fmt.Sprintf("Updated %d skill(s)", len(updated)), Status: catalogtypes.ProgressSuccess, Progress: 100})
	return updated, nil
}

// Cancel supersedes every live run
func (r *Runner) Cancel() {
	r.syncGuard.Invalidate()
	r.distributeGuard.Invalidate()
	r.updateGuard.Invalidate()
}
