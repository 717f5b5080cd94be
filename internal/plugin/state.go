package plugin

// State is the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - plugin is registered but Init has not run.
	StateUnloaded State = iota

	// StateInitialized - Init succeeded; the plugin is not yet receiving
	// events.
	StateInitialized

	// StateActive - plugin is receiving events and messages.
	StateActive

	// StateInactive - plugin was deactivated and can be activated again.
	StateInactive

	// StateDestroyed - plugin is torn down; terminal.
	StateDestroyed

	// StateError - plugin failed; terminal except for Destroy.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// CanActivate reports whether Activate is a legal transition from s.
func (s State) CanActivate() bool {
	return s == StateInitialized || s == StateInactive
}

// IsTerminal reports whether the plugin has permanently left the lifecycle.
func (s State) IsTerminal() bool {
	return s == StateDestroyed
}
