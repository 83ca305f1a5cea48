package editor

// SyncState tells a change event apart from the echo of a programmatic
// update. It is set before the editor replaces its content and cleared by
// the very next observed change.
type SyncState int

const (
	Idle SyncState = iota
	ApplyingProgrammaticUpdate
)

func (s SyncState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ApplyingProgrammaticUpdate:
		return "applying-programmatic-update"
	default:
		return "unknown"
	}
}

// SaveGate holds auto-save back until the first load has completed, so an
// empty editor never overwrites a stored document.
type SaveGate int

const (
	Uninitialized SaveGate = iota
	Loaded
)

func (g SaveGate) String() string {
	switch g {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}
