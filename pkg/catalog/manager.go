package catalog

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Executor performs the I/O requested by catalog transitions
type Executor interface {
	Distribute(ctx context.Context, skill catalog.Skill) error
	DistributeAll(ctx context.Context, skills []catalog.Skill, progress catalog.ProgressFunc) error
	Uninstall(ctx context.Context, skill catalog.Skill) error
	Reinstall(ctx context.Context, skill catalog.Skill) (catalog.Skill, error)
}

// Manager pairs the store with an Executor. Each method commits one
// transition and then runs the effects it produced. Collaborator failures are
// recorded in the operation log and returned, but never roll the transition
// back.
type Manager struct {
	store *Store
	exec  Executor
}

// NewManager creates a Manager
func NewManager(store *Store, exec Executor) *Manager {
	return &Manager{store: store, exec: exec}
}

// Store returns the underlying store
func (m *Manager) Store() *Store {
	return m.store
}

// Run executes effects in order. Every effect is attempted; failures are
// aggregated.
func (m *Manager) Run(ctx context.Context, effects []Effect) error {
	var result *multierror.Error
	for _, eff := range effects {
		if err := m.runOne(ctx, eff); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m *Manager) runOne(ctx context.Context, eff Effect) error {
	log := logger.G(ctx).
		WithField("skill_id", eff.Skill.ID).
		WithField("skill_name", eff.Skill.Name).
		WithField("effect", eff.Kind)

	var err error
	switch eff.Kind {
	case EffectDistribute:
		err = m.exec.Distribute(ctx, eff.Skill)
	case EffectUninstall:
		err = m.exec.Uninstall(ctx, eff.Skill)
	default:
		err = errors.Errorf("unknown effect kind %q", eff.Kind)
	}

	if err != nil {
		log.WithError(err).Warn("effect failed")
		m.store.AddLog(catalog.LogEntry{
			Action:  eff.Action,
			SkillID: eff.Skill.ID,
			AgentID: eff.AgentID,
			Status:  catalog.LogStatusError,
			Message: fmt.Sprintf("%s %s: %v", eff.Action, eff.Skill.Name, err),
		})
		return errors.Wrapf(err, "failed to %s skill %s", eff.Kind, eff.Skill.Name)
	}

	log.Debug("effect applied")
	m.store.AddLog(catalog.LogEntry{
		Action:  eff.Action,
		SkillID: eff.Skill.ID,
		AgentID: eff.AgentID,
		Status:  catalog.LogStatusSuccess,
		Message: describe(eff),
	})
	return nil
}

func describe(eff Effect) string {
	switch eff.Action {
	case catalog.LogActionEnable:
		return fmt.Sprintf("enabled %s for %s", eff.Skill.Name, eff.AgentID)
	case catalog.LogActionDisable:
		return fmt.Sprintf("disabled %s for %s", eff.Skill.Name, eff.AgentID)
	case catalog.LogActionRestore:
		return fmt.Sprintf("restored %s", eff.Skill.Name)
	case catalog.LogActionUninstall:
		if eff.Kind == EffectUninstall {
			return fmt.Sprintf("permanently deleted %s", eff.Skill.Name)
		}
		return fmt.Sprintf("moved %s to the recycle bin", eff.Skill.Name)
	default:
		return fmt.Sprintf("synced %s to %d platform(s)", eff.Skill.Name, len(eff.Skill.EnabledAgents))
	}
}

// RemoveSkill moves a skill to the recycle bin and retracts it from platforms
func (m *Manager) RemoveSkill(ctx context.Context, skillID string) error {
	return m.Run(ctx, m.store.RemoveSkill(skillID))
}

// RestoreSkill brings a skill back from the recycle bin and re-distributes it
func (m *Manager) RestoreSkill(ctx context.Context, skillID string) error {
	effects, err := m.store.RestoreSkill(skillID)
	if err != nil {
		return err
	}
	return m.Run(ctx, effects)
}

// PermanentlyDeleteSkill purges one recycle bin record
func (m *Manager) PermanentlyDeleteSkill(ctx context.Context, skillID string) error {
	return m.Run(ctx, m.store.PermanentlyDeleteSkill(skillID))
}

// EmptyRecycleBin purges every recycle bin record
func (m *Manager) EmptyRecycleBin(ctx context.Context) error {
	return m.Run(ctx, m.store.EmptyRecycleBin())
}

// CleanExpiredTrash purges expired recycle bin records and returns how many
// were purged
func (m *Manager) CleanExpiredTrash(ctx context.Context, retentionDays int) (int, error) {
	effects := m.store.CleanExpiredTrash(retentionDays)
	if len(effects) > 0 {
		logger.G(ctx).WithField("purged", len(effects)).Info("cleaned expired recycle bin entries")
	}
	return len(effects), m.Run(ctx, effects)
}

// ToggleAgent flips one platform for a skill and pushes the new state
func (m *Manager) ToggleAgent(ctx context.Context, skillID string, agentID catalog.AgentID) error {
	effects, err := m.store.ToggleAgent(skillID, agentID)
	if err != nil {
		return err
	}
	return m.Run(ctx, effects)
}

// SetSkillAgents replaces a skill's enabled platforms and pushes the new state
func (m *Manager) SetSkillAgents(ctx context.Context, skillID string, agentIDs []catalog.AgentID) error {
	effects, err := m.store.SetSkillAgents(skillID, agentIDs)
	if err != nil {
		return err
	}
	return m.Run(ctx, effects)
}

// ReinstallSkill refreshes a skill from its source URL and re-distributes it
func (m *Manager) ReinstallSkill(ctx context.Context, skillID string) (catalog.Skill, error) {
	sk, ok := m.store.Get(skillID)
	if !ok {
		return catalog.Skill{}, errors.Wrapf(ErrSkillNotFound, "skill %q", skillID)
	}
	if sk.SourceURL == "" {
		return catalog.Skill{}, errors.Wrapf(ErrMissingSource, "skill %q", sk.Name)
	}

	result, err := m.exec.Reinstall(ctx, sk)
	if err != nil {
		m.RecordFailure(ctx, catalog.LogActionUpdate, sk, err)
		return catalog.Skill{}, errors.Wrapf(err, "failed to reinstall skill %s", sk.Name)
	}
	return m.ApplyReinstall(ctx, skillID, result)
}

// ApplyReinstall commits a reinstall result produced by the Executor and
// distributes the resulting enabled set
func (m *Manager) ApplyReinstall(ctx context.Context, skillID string, result catalog.Skill) (catalog.Skill, error) {
	updated, effects, err := m.store.CompleteReinstall(skillID, result)
	if err != nil {
		return catalog.Skill{}, err
	}
	m.store.AddLog(catalog.LogEntry{
		Action:  catalog.LogActionUpdate,
		SkillID: updated.ID,
		Status:  catalog.LogStatusSuccess,
		Message: fmt.Sprintf("updated %s from %s", updated.Name, updated.SourceURL),
	})
	return updated, m.Run(ctx, effects)
}

// RecordFailure logs a collaborator failure for skill to the operation log
func (m *Manager) RecordFailure(ctx context.Context, action catalog.LogAction, skill catalog.Skill, err error) {
	logger.G(ctx).
		WithField("skill_id", skill.ID).
		WithField("skill_name", skill.Name).
		WithError(err).
		Warnf("%s failed", action)
	m.store.AddLog(catalog.LogEntry{
		Action:  action,
		SkillID: skill.ID,
		Status:  catalog.LogStatusError,
		Message: fmt.Sprintf("%s %s: %v", action, skill.Name, err),
	})
}

// EnableAllSkillsForAgent enables agentID on every active skill and pushes
// the whole catalog in one batch. It reports whether anything changed; when
// nothing did, no distribution is issued.
func (m *Manager) EnableAllSkillsForAgent(ctx context.Context, agentID catalog.AgentID, progress catalog.ProgressFunc) (bool, error) {
	changed, skills := m.store.EnableAllForAgent(agentID)
	if !changed {
		return false, nil
	}

	if err := m.exec.DistributeAll(ctx, skills, progress); err != nil {
		logger.G(ctx).WithField("agent_id", agentID).WithError(err).Warn("batch distribution finished with errors")
		m.store.AddLog(catalog.LogEntry{
			Action:  catalog.LogActionEnable,
			AgentID: agentID,
			Status:  catalog.LogStatusError,
			Message: fmt.Sprintf("enable all for %s: %v", agentID, err),
		})
		return true, err
	}

	m.store.AddLog(catalog.LogEntry{
		Action:  catalog.LogActionEnable,
		AgentID: agentID,
		Status:  catalog.LogStatusSuccess,
		Message: fmt.Sprintf("enabled %d skill(s) for %s", len(skills), agentID),
	})
	return true, nil
}
