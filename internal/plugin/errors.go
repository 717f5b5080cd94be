package plugin

import "errors"

// Plugin lifecycle and dispatch errors.
var (
	// ErrAlreadyRegistered is returned when a plugin id is registered twice.
	ErrAlreadyRegistered = errors.New("plugin: already registered")

	// ErrPluginNotFound is returned when an operation names an unknown
	// plugin id.
	ErrPluginNotFound = errors.New("plugin: not found")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// legal from the plugin's current state.
	ErrInvalidTransition = errors.New("plugin: invalid state transition")

	// ErrPermissionDenied is returned when a plugin exceeds its grants.
	ErrPermissionDenied = errors.New("plugin: permission denied")

	// ErrShuttingDown is returned for operations arriving after Shutdown
	// began.
	ErrShuttingDown = errors.New("plugin: manager shutting down")
)
