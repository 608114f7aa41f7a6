package sync

// State is the stage a run is in. Failed is reachable from every other state.
type State int

const (
	StateIdle State = iota
	StateReadingExport
	StateFiltering
	StateBatching
	StateFetching
	StateNormalizing
	StateDownloadingMedia
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadingExport:
		return "reading export"
	case StateFiltering:
		return "filtering"
	case StateBatching:
		return "batching"
	case StateFetching:
		return "fetching"
	case StateNormalizing:
		return "normalizing"
	case StateDownloadingMedia:
		return "downloading media"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
