package catalog

// ProgressStatus is the state of a single progress log entry
type ProgressStatus string

const (
	ProgressLoading ProgressStatus = "loading"
	ProgressSuccess ProgressStatus = "success"
	ProgressError   ProgressStatus = "error"
)

// Progress channel names. Events for a streaming operation are published on its channel.
const (
	ChannelDistributeAll = "distributeAll:progress"
	ChannelSyncAll       = "syncAll:progress"
	ChannelUpdateAll     = "updateAll:progress"
)

// ProgressEvent is one step report of a bulk operation. Events with the same
// ID describe the same log entry; later ones replace label and status.
type ProgressEvent struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Status   ProgressStatus `json:"status"`
	Progress float64        `json:"progress"`
}

// ProgressFunc receives progress events for a streaming operation
type ProgressFunc func(ProgressEvent)

// Emit calls f when it is non-nil
func (f ProgressFunc) Emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}

// ClampProgress bounds a percentage to [0, 100]
func ClampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
