package catalog

import (
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// EffectKind is the side effect a transition asks the runner to perform
type EffectKind string

const (
	// EffectDistribute makes platform directories match Skill.EnabledAgents
	EffectDistribute EffectKind = "distribute"
	// EffectUninstall removes every trace of Skill from the central store and platform directories
	EffectUninstall EffectKind = "uninstall"
)

// Effect is a unit of I/O emitted by a committed state transition
type Effect struct {
	Kind    EffectKind
	Action  catalog.LogAction
	AgentID catalog.AgentID
	Skill   catalog.Skill
}

func distribute(skill catalog.Skill) Effect {
	return Effect{Kind: EffectDistribute, Action: catalog.LogActionSync, Skill: skill.Clone()}
}

func uninstall(skill catalog.Skill) Effect {
	return Effect{Kind: EffectUninstall, Action: catalog.LogActionUninstall, Skill: skill.Clone()}
}
