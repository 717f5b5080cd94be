// Package plugin implements the extension runtime: plugin lifecycle,
// per-plugin event delivery, direct messaging, and the host-side glue to
// bunny services and the data services. Plugins come in three flavors:
// native Go types implementing Plugin directly, Lua scripts wrapped by
// ScriptPlugin, and external binaries wrapped by BridgePlugin.
package plugin

import (
	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/security"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
)

// Metadata identifies a plugin and declares what it wants from the host.
type Metadata struct {
	ID          string
	Name        string
	Version     string
	Description string
	Author      string

	// Permissions are grant strings in the security package grammar.
	Permissions []string

	// Events are the event type names the plugin subscribes to. System
	// lifecycle events are always delivered and need not be listed.
	Events []string
}

// Plugin is the contract every plugin implements. Lifecycle calls and event
// deliveries for one plugin are serialized by its host; implementations need
// no internal locking against the runtime.
type Plugin interface {
	// Metadata returns the plugin's static description. Called before Init
	// and must be constant.
	Metadata() Metadata

	// Init prepares the plugin. The context stays valid until Destroy.
	Init(ctx *Context) error

	// OnActivate is called when the plugin starts receiving events.
	OnActivate() error

	// OnDeactivate is called when delivery stops. The plugin keeps its
	// state and may be activated again.
	OnDeactivate() error

	// OnCoreEvent delivers one subscribed event. A returned error is
	// logged against the plugin; it does not stop delivery.
	OnCoreEvent(env event.Envelope) error

	// OnPluginMessage delivers a direct message from another plugin. A
	// returned error is logged against the plugin.
	OnPluginMessage(from string, payload map[string]any) error

	// Destroy releases everything. No calls follow it.
	Destroy()
}

// HostAPI is the host surface a plugin reaches through its Context. Calls
// are permission-checked against the plugin's grants.
type HostAPI interface {
	// RegisterOCR contributes a text-recognition service owned by this
	// plugin.
	RegisterOCR(info bunny.OCRServiceInfo, p bunny.OCRProvider)

	// RegisterTranslation contributes a translation service owned by this
	// plugin.
	RegisterTranslation(info bunny.TranslationServiceInfo, p bunny.TranslationProvider)

	// SendMessage delivers a payload to another plugin.
	SendMessage(to string, payload map[string]any) error

	// Publish emits a custom event visible to subscribed plugins.
	Publish(name string, data map[string]any)
}

// Context is handed to a plugin at Init and stays valid until Destroy.
type Context struct {
	// PluginID is the plugin's own id.
	PluginID string

	// Services is the read-only data surface, already filtered by the
	// plugin's grants.
	Services *service.Proxy

	// Host reaches back into the runtime.
	Host HostAPI

	// Log is tagged with the plugin id.
	Log *logging.Logger

	// Grants is the plugin's parsed permission set.
	Grants *security.Grants
}
