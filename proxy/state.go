package proxy

// State represents the lifecycle state of a proxy. It is derived from the
// proxy's identifier, attribute map and change map, never stored:
//
//	identifier | attributes | changed | state
//	invalid    |    any     |   any   | ERROR
//	set        |    nil     |   any   | EMPTY
//	set        |    set     |   nil   | CLEAN
//	set        |    set     |   set   | DIRTY
type State string

const (
	// StateError indicates the proxy is no longer valid, typically because
	// the entity was deleted or purged.
	StateError State = "error"
	// StateEmpty indicates the proxy holds no entity data yet.
	StateEmpty State = "empty"
	// StateClean indicates the proxy data matches the last sync.
	StateClean State = "clean"
	// StateDirty indicates the proxy holds local edits since the last sync.
	StateDirty State = "dirty"
)

// String returns the string representation of the state.
func (s State) String() string { return string(s) }

// IsValid returns true if this is a recognized State value.
func (s State) IsValid() bool {
	switch s {
	case StateError, StateEmpty, StateClean, StateDirty:
		return true
	default:
		return false
	}
}
