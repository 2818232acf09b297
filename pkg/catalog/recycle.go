package catalog

import (
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// RemoveSkill moves an active skill into the recycle bin. The returned effect
// retracts the skill from every platform directory. Unknown ids are a no-op.
func (s *Store) RemoveSkill(skillID string) []Effect {
	var effects []Effect
	s.update(func(st *State) bool {
		idx := indexByID(st.Skills, skillID)
		if idx < 0 {
			return false
		}
		sk := st.Skills[idx]
		retract := sk.Clone()
		retract.EnabledAgents = []catalog.AgentID{}
		effects = []Effect{{Kind: EffectDistribute, Action: catalog.LogActionUninstall, Skill: retract}}

		st.Skills = slices.Delete(st.Skills, idx, idx+1)
		sk.DeletedAt = catalog.FormatTime(s.now())
		st.RecycleBin = append(st.RecycleBin, sk)
		return true
	})
	return effects
}

// RestoreSkill moves a skill from the recycle bin back into the catalog and
// re-distributes it with its unchanged enabled set. Unknown ids are a no-op.
// Restoring fails with ErrDuplicateName while an active skill has the same
// normalized name.
func (s *Store) RestoreSkill(skillID string) ([]Effect, error) {
	var (
		effects []Effect
		err     error
	)
	s.update(func(st *State) bool {
		idx := indexByID(st.RecycleBin, skillID)
		if idx < 0 {
			return false
		}
		sk := st.RecycleBin[idx]
		if indexByName(st.Skills, sk.Name) >= 0 {
			err = errors.Wrapf(ErrDuplicateName, "skill %q", sk.Name)
			return false
		}
		sk.DeletedAt = ""
		st.RecycleBin = slices.Delete(st.RecycleBin, idx, idx+1)
		st.Skills = append(st.Skills, sk)

		effects = []Effect{distribute(sk)}
		effects[0].Action = catalog.LogActionRestore
		return true
	})
	return effects, err
}

// PermanentlyDeleteSkill drops a skill from the recycle bin and returns the
// uninstall effect for it
func (s *Store) PermanentlyDeleteSkill(skillID string) []Effect {
	var effects []Effect
	s.update(func(st *State) bool {
		idx := indexByID(st.RecycleBin, skillID)
		if idx < 0 {
			return false
		}
		effects = []Effect{uninstall(st.RecycleBin[idx])}
		st.RecycleBin = slices.Delete(st.RecycleBin, idx, idx+1)
		return true
	})
	return effects
}

// EmptyRecycleBin drops every recycle bin record
func (s *Store) EmptyRecycleBin() []Effect {
	var effects []Effect
	s.update(func(st *State) bool {
		if len(st.RecycleBin) == 0 {
			return false
		}
		for _, sk := range st.RecycleBin {
			effects = append(effects, uninstall(sk))
		}
		st.RecycleBin = []catalog.Skill{}
		return true
	})
	return effects
}

// CleanExpiredTrash purges every recycle bin record deleted more than
// retentionDays ago. Records with a missing or malformed deletedAt are kept.
func (s *Store) CleanExpiredTrash(retentionDays int) []Effect {
	retention := time.Duration(ClampRetention(retentionDays)) * 24 * time.Hour
	now := s.now()

	var effects []Effect
	s.update(func(st *State) bool {
		kept := make([]catalog.Skill, 0, len(st.RecycleBin))
		for _, sk := range st.RecycleBin {
			if expired(sk, now, retention) {
				effects = append(effects, uninstall(sk))
				continue
			}
			kept = append(kept, sk)
		}
		if len(effects) == 0 {
			return false
		}
		st.RecycleBin = kept
		return true
	})
	return effects
}

func expired(sk catalog.Skill, now time.Time, retention time.Duration) bool {
	deletedAt, ok := catalog.ParseTime(sk.DeletedAt)
	if !ok {
		return false
	}
	return now.Sub(deletedAt) > retention
}

// ClampRetention bounds a retention window to at least one day
func ClampRetention(days int) int {
	if days < 1 {
		return 1
	}
	return days
}
