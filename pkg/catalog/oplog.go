package catalog

import (
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// AddLog records an operation at the head of the log, dropping the oldest
// entries beyond capacity. The id and, when unset, the timestamp are filled in.
func (s *Store) AddLog(entry catalog.LogEntry) catalog.LogEntry {
	entry.ID = s.newID()
	if entry.Timestamp == "" {
		entry.Timestamp = catalog.FormatTime(s.now())
	}

	s.update(func(st *State) bool {
		logs := make([]catalog.LogEntry, 0, min(len(st.Logs)+1, s.logLimit))
		logs = append(logs, entry)
		for _, e := range st.Logs {
			if len(logs) == s.logLimit {
				break
			}
			logs = append(logs, e)
		}
		st.Logs = logs
		return true
	})
	return entry
}
