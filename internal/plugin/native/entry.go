package native

// EntryPoints is the function table a bridged plugin exports to the host.
// Only OnInit is required; nil entries are skipped. Event and message
// payloads arrive as JSON documents so the contract stays language-neutral.
type EntryPoints struct {
	// OnInit receives the bridge client after the host installed its
	// callbacks. Returning an error fails the load.
	OnInit func(c *Client) error

	OnActivate   func() error
	OnDeactivate func() error

	// OnEvent delivers one event: its type name and the JSON-encoded
	// payload. A returned error is logged against the plugin by the host.
	OnEvent func(eventType string, payload []byte) error

	// OnMessage delivers a direct message from another plugin as a JSON
	// document. A returned error is logged against the plugin by the host.
	OnMessage func(from string, payload []byte) error

	OnDestroy func()
}
