// Package catalog implements the authoritative skill catalog: the active
// skill list, the recycle bin and the operation log.
//
// Every mutation is a single synchronous state transition performed under
// the store lock. Transitions never perform I/O; the ones that require work
// on platform directories return Effects, which the Manager hands to an
// Executor after the transition has been committed.
package catalog

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

var (
	// ErrSkillNotFound is returned when a skill id is not in the expected list
	ErrSkillNotFound = errors.New("skill not found")
	// ErrMissingSource is returned when reinstalling a skill that has no source URL
	ErrMissingSource = errors.New("skill has no source url bound; cannot reinstall")
	// ErrEmptyName is returned when a skill has a blank name
	ErrEmptyName = errors.New("skill name is empty")
	// ErrEmptyID is returned when a skill has a blank id
	ErrEmptyID = errors.New("skill id is empty")
	// ErrDuplicateID is returned when an id already exists in the catalog or recycle bin
	ErrDuplicateID = errors.New("skill id already exists")
	// ErrDuplicateName is returned when a normalized name is already held by
	// the catalog or recycle bin
	ErrDuplicateName = errors.New("skill name already exists")
)

// DefaultLogLimit is the number of operation log entries kept
const DefaultLogLimit = 50

// State is an immutable snapshot of the store
type State struct {
	Skills     []catalog.Skill    `json:"skills"`
	RecycleBin []catalog.Skill    `json:"recycleBin"`
	Logs       []catalog.LogEntry `json:"logs"`
}

func (s State) clone() State {
	out := State{
		Skills:     make([]catalog.Skill, len(s.Skills)),
		RecycleBin: make([]catalog.Skill, len(s.RecycleBin)),
		Logs:       slices.Clone(s.Logs),
	}
	for i, sk := range s.Skills {
		out.Skills[i] = sk.Clone()
	}
	for i, sk := range s.RecycleBin {
		out.RecycleBin[i] = sk.Clone()
	}
	if out.Logs == nil {
		out.Logs = []catalog.LogEntry{}
	}
	return out
}

// Store holds the catalog state
type Store struct {
	mu       sync.Mutex
	state    State
	now      func() time.Time
	newID    func() string
	logLimit int

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSub     int
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogLimit overrides the operation log capacity
func WithLogLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.logLimit = limit
		}
	}
}

// WithIDGenerator overrides how operation log ids are generated
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:       State{Skills: []catalog.Skill{}, RecycleBin: []catalog.Skill{}, Logs: []catalog.LogEntry{}},
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		logLimit:    DefaultLogLimit,
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to be called with a snapshot after every committed
// transition. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify(snapshot State) {
	s.subMu.Lock()
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// update runs fn under the lock and notifies subscribers when fn reports a change
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	changed := fn(&s.state)
	var snapshot State
	if changed {
		snapshot = s.state.clone()
	}
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Skills returns a copy of the active catalog
func (s *Store) Skills() []catalog.Skill {
	return s.Snapshot().Skills
}

// RecycleBin returns a copy of the recycle bin
func (s *Store) RecycleBin() []catalog.Skill {
	return s.Snapshot().RecycleBin
}

// Logs returns the operation log, newest first
func (s *Store) Logs() []catalog.LogEntry {
	return s.Snapshot().Logs
}

// NameTaken reports whether an active or trashed skill already uses name
func (s *Store) NameTaken(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexByName(s.state.Skills, name) >= 0 || indexByName(s.state.RecycleBin, name) >= 0
}

// Get returns the active skill with id
func (s *Store) Get(id string) (catalog.Skill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := indexByID(s.state.Skills, id); idx >= 0 {
		return s.state.Skills[idx].Clone(), true
	}
	return catalog.Skill{}, false
}

// Load replaces the whole state, typically with a rehydrated persisted
// snapshot. Records are classified, ids are kept unique across both lists
// (the active catalog wins) and the log is trimmed to capacity.
func (s *Store) Load(state State) {
	s.update(func(st *State) bool {
		seen := make(map[string]struct{})
		st.Skills = uniqueClassified(state.Skills, seen)
		st.RecycleBin = uniqueClassified(state.RecycleBin, seen)
		st.Logs = slices.Clone(state.Logs)
		if st.Logs == nil {
			st.Logs = []catalog.LogEntry{}
		}
		if len(st.Logs) > s.logLimit {
			st.Logs = st.Logs[:s.logLimit]
		}
		return true
	})
}

// SetSkills replaces the active catalog wholesale, back-filling the install
// classification of every record. Records whose id is already held by the
// recycle bin are dropped.
func (s *Store) SetSkills(skills []catalog.Skill) {
	s.update(func(st *State) bool {
		seen := make(map[string]struct{}, len(st.RecycleBin))
		for _, sk := range st.RecycleBin {
			seen[sk.ID] = struct{}{}
		}
		st.Skills = uniqueClassified(skills, seen)
		return true
	})
}

// AddSkill appends a skill to the active catalog. Both the id and the
// normalized name must be unused across the catalog and the recycle bin,
// since the name keys the skill's store directory.
func (s *Store) AddSkill(skill catalog.Skill) error {
	if err := validate(skill); err != nil {
		return err
	}

	var err error
	s.update(func(st *State) bool {
		if indexByID(st.Skills, skill.ID) >= 0 || indexByID(st.RecycleBin, skill.ID) >= 0 {
			err = errors.Wrapf(ErrDuplicateID, "skill %q", skill.ID)
			return false
		}
		if indexByName(st.Skills, skill.Name) >= 0 || indexByName(st.RecycleBin, skill.Name) >= 0 {
			err = errors.Wrapf(ErrDuplicateName, "skill %q", skill.Name)
			return false
		}
		added := skill.WithClassification()
		added.DeletedAt = ""
		st.Skills = append(st.Skills, added)
		return true
	})
	return err
}

// ToggleAgent flips agentID in the skill's enabled set
func (s *Store) ToggleAgent(skillID string, agentID catalog.AgentID) ([]Effect, error) {
	action := catalog.LogActionEnable
	effects, err := s.mutateAgents(skillID, func(current []catalog.AgentID) []catalog.AgentID {
		if slices.Contains(current, agentID) {
			action = catalog.LogActionDisable
			return slices.DeleteFunc(slices.Clone(current), func(a catalog.AgentID) bool { return a == agentID })
		}
		return append(slices.Clone(current), agentID)
	})
	for i := range effects {
		effects[i].Action = action
		effects[i].AgentID = agentID
	}
	return effects, err
}

// SetSkillAgents replaces the skill's enabled set
func (s *Store) SetSkillAgents(skillID string, agentIDs []catalog.AgentID) ([]Effect, error) {
	return s.mutateAgents(skillID, func([]catalog.AgentID) []catalog.AgentID {
		return catalog.UnionAgents(agentIDs)
	})
}

func (s *Store) mutateAgents(skillID string, fn func([]catalog.AgentID) []catalog.AgentID) ([]Effect, error) {
	var (
		effects []Effect
		err     error
	)
	s.update(func(st *State) bool {
		idx := indexByID(st.Skills, skillID)
		if idx < 0 {
			err = errors.Wrapf(ErrSkillNotFound, "skill %q", skillID)
			return false
		}
		st.Skills[idx].EnabledAgents = fn(st.Skills[idx].EnabledAgents)
		effects = []Effect{distribute(st.Skills[idx])}
		return true
	})
	return effects, err
}

// AdoptOptions are the fields applied when adopting an external skill
type AdoptOptions struct {
	SourceURL     string
	EnabledAgents []catalog.AgentID
}

// AdoptSkill reclassifies a skill as platform-managed and applies opts. It
// does not reinstall. The name is never changed since it keys the skill's
// store directory.
func (s *Store) AdoptSkill(skillID string, opts AdoptOptions) error {
	var err error
	s.update(func(st *State) bool {
		idx := indexByID(st.Skills, skillID)
		if idx < 0 {
			err = errors.Wrapf(ErrSkillNotFound, "skill %q", skillID)
			return false
		}
		sk := &st.Skills[idx]
		if opts.SourceURL != "" {
			sk.SourceURL = opts.SourceURL
		}
		if opts.EnabledAgents != nil {
			sk.EnabledAgents = catalog.UnionAgents(opts.EnabledAgents)
		}
		sk.InstallSource = catalog.InstallSourcePlatform
		sk.IsAdopted = catalog.Bool(true)
		return true
	})
	return err
}

// CompleteReinstall folds the backend's reinstall result into the skill and
// returns the distribution effect for the resulting enabled set.
func (s *Store) CompleteReinstall(skillID string, result catalog.Skill) (catalog.Skill, []Effect, error) {
	var (
		updated catalog.Skill
		effects []Effect
		err     error
	)
	s.update(func(st *State) bool {
		idx := indexByID(st.Skills, skillID)
		if idx < 0 {
			err = errors.Wrapf(ErrSkillNotFound, "skill %q", skillID)
			return false
		}
		sk := &st.Skills[idx]
		if result.LastSync != "" {
			sk.LastSync = result.LastSync
		}
		if result.LastUpdate != "" {
			sk.LastUpdate = result.LastUpdate
		}
		if result.SourceURL != "" {
			sk.SourceURL = result.SourceURL
		}
		sk.InstallSource = catalog.InstallSourcePlatform
		sk.IsAdopted = catalog.Bool(true)
		updated = sk.Clone()
		effects = []Effect{distribute(*sk)}
		return true
	})
	return updated, effects, err
}

// EnableAllForAgent adds agentID to every active skill lacking it. It reports
// whether anything changed and, if so, a snapshot of the whole catalog to
// distribute in one batch.
func (s *Store) EnableAllForAgent(agentID catalog.AgentID) (bool, []catalog.Skill) {
	var (
		changed  bool
		snapshot []catalog.Skill
	)
	s.update(func(st *State) bool {
		for i := range st.Skills {
			if st.Skills[i].HasAgent(agentID) {
				continue
			}
			st.Skills[i].EnabledAgents = append(slices.Clone(st.Skills[i].EnabledAgents), agentID)
			changed = true
		}
		if changed {
			snapshot = st.clone().Skills
		}
		return changed
	})
	return changed, snapshot
}

func validate(skill catalog.Skill) error {
	if skill.ID == "" {
		return ErrEmptyID
	}
	if catalog.NormalizeName(skill.Name) == "" {
		return errors.Wrapf(ErrEmptyName, "skill %q", skill.ID)
	}
	return nil
}

func uniqueClassified(skills []catalog.Skill, seen map[string]struct{}) []catalog.Skill {
	out := make([]catalog.Skill, 0, len(skills))
	for _, sk := range skills {
		if _, dup := seen[sk.ID]; dup {
			continue
		}
		seen[sk.ID] = struct{}{}
		out = append(out, sk.WithClassification())
	}
	return out
}

func indexByID(list []catalog.Skill, id string) int {
	return slices.IndexFunc(list, func(s catalog.Skill) bool { return s.ID == id })
}

func indexByName(list []catalog.Skill, name string) int {
	key := catalog.NormalizeName(name)
	return slices.IndexFunc(list, func(s catalog.Skill) bool { return catalog.NormalizeName(s.Name) == key })
}
