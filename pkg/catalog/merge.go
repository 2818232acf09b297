package catalog

import (
	"fmt"
	"reflect"

	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// MergeSkills folds incoming records into the active catalog, deduplicating
// by normalized name. Matched records are merged in place; unmatched ones
// are appended. Merging the same input twice is a no-op the second time and
// does not notify subscribers.
func (s *Store) MergeSkills(incoming []catalog.Skill) {
	s.update(func(st *State) bool {
		merged := mergeByName(st.Skills, st.RecycleBin, incoming)
		if reflect.DeepEqual(merged, st.Skills) {
			return false
		}
		st.Skills = merged
		return true
	})
}

// mergeByName is the pure dedup-by-name reconciliation.
//
// Incoming records whose name matches a recycle bin entry are not appended:
// the trashed record stays authoritative until it is restored or purged.
// Appended records whose id is already taken get a numeric suffix so ids
// stay unique across the catalog and the recycle bin.
func mergeByName(existing, bin, incoming []catalog.Skill) []catalog.Skill {
	pending := make(map[string]catalog.Skill, len(incoming))
	order := make([]string, 0, len(incoming))
	for _, in := range incoming {
		key := catalog.NormalizeName(in.Name)
		if key == "" {
			continue
		}
		if prev, ok := pending[key]; ok {
			pending[key] = mergeRecord(prev, in)
			continue
		}
		pending[key] = in
		order = append(order, key)
	}

	taken := make(map[string]struct{}, len(existing)+len(bin))
	trashed := make(map[string]struct{}, len(bin))
	for _, sk := range bin {
		taken[sk.ID] = struct{}{}
		trashed[catalog.NormalizeName(sk.Name)] = struct{}{}
	}

	out := make([]catalog.Skill, 0, len(existing)+len(pending))
	for _, sk := range existing {
		taken[sk.ID] = struct{}{}
		key := catalog.NormalizeName(sk.Name)
		if in, ok := pending[key]; ok {
			delete(pending, key)
			out = append(out, mergeRecord(sk, in))
			continue
		}
		out = append(out, sk)
	}

	for _, key := range order {
		in, ok := pending[key]
		if !ok {
			continue
		}
		if _, ok := trashed[key]; ok {
			continue
		}
		added := in.WithClassification()
		added.DeletedAt = ""
		added.EnabledAgents = catalog.UnionAgents(in.EnabledAgents)
		added.ID = uniqueID(in.ID, in.Name, taken)
		taken[added.ID] = struct{}{}
		out = append(out, added)
	}

	return out
}

// mergeRecord combines two records describing the same skill, preferring
// the fields already present on existing.
func mergeRecord(existing, incoming catalog.Skill) catalog.Skill {
	out := existing.Clone()
	out.EnabledAgents = catalog.UnionAgents(existing.EnabledAgents, incoming.EnabledAgents)
	if out.LastSync == "" {
		out.LastSync = incoming.LastSync
	}
	if out.LastUpdate == "" {
		out.LastUpdate = incoming.LastUpdate
	}
	if out.SourceURL == "" {
		out.SourceURL = incoming.SourceURL
	}
	// classification left unset on existing is derived from the merged record
	return out.WithClassification()
}

func uniqueID(id, name string, taken map[string]struct{}) string {
	base := id
	if base == "" {
		base = name
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
