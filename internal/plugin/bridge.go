package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/native"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
)

// BridgePlugin adapts a plugin that lives behind the native boundary to the
// Plugin interface. At Init it builds the host callback table for the
// plugin's grants and installs it exactly once; the plugin side talks back
// through a native.Client over that table. Events and messages cross the
// boundary as JSON.
type BridgePlugin struct {
	meta  Metadata
	entry native.EntryPoints
	table *native.Table
	ctx   *Context
}

// NewBridgePlugin wraps a native entry-point table.
func NewBridgePlugin(meta Metadata, entry native.EntryPoints) *BridgePlugin {
	return &BridgePlugin{meta: meta, entry: entry, table: &native.Table{}}
}

// Table exposes the callback table, mainly for tests asserting the
// install-once discipline.
func (p *BridgePlugin) Table() *native.Table { return p.table }

// Metadata implements Plugin.
func (p *BridgePlugin) Metadata() Metadata { return p.meta }

// Init installs the host callbacks and runs the plugin's OnInit with a
// client over them. A second install attempt on the same table is a
// protocol violation and fails the load.
func (p *BridgePlugin) Init(ctx *Context) error {
	p.ctx = ctx

	reg := service.NewRegistry(ctx.Services)
	cb := native.NewHostCallbacks(p.meta.ID, reg, ctx.Grants, ctx.Log)
	if err := p.table.Install(cb); err != nil {
		return fmt.Errorf("plugin %q: %w", p.meta.ID, err)
	}

	if p.entry.OnInit == nil {
		return fmt.Errorf("plugin %q: no OnInit entry point", p.meta.ID)
	}
	return p.entry.OnInit(native.NewClient(p.table))
}

// OnActivate implements Plugin.
func (p *BridgePlugin) OnActivate() error {
	if p.entry.OnActivate == nil {
		return nil
	}
	return p.entry.OnActivate()
}

// OnDeactivate implements Plugin.
func (p *BridgePlugin) OnDeactivate() error {
	if p.entry.OnDeactivate == nil {
		return nil
	}
	return p.entry.OnDeactivate()
}

// OnCoreEvent implements Plugin. The payload is the event's JSON form;
// custom events send their data map.
func (p *BridgePlugin) OnCoreEvent(env event.Envelope) error {
	if p.entry.OnEvent == nil {
		return nil
	}
	var payload []byte
	var err error
	if c, ok := env.Event.(event.Custom); ok {
		payload, err = json.Marshal(c.Data)
	} else {
		payload, err = json.Marshal(env.Event)
	}
	if err != nil {
		return fmt.Errorf("encode event %s: %w", env.Event.EventType(), err)
	}
	return p.entry.OnEvent(env.Event.EventType(), payload)
}

// OnPluginMessage implements Plugin.
func (p *BridgePlugin) OnPluginMessage(from string, payload map[string]any) error {
	if p.entry.OnMessage == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message from %s: %w", from, err)
	}
	return p.entry.OnMessage(from, raw)
}

// Destroy implements Plugin.
func (p *BridgePlugin) Destroy() {
	if p.entry.OnDestroy != nil {
		p.entry.OnDestroy()
	}
}
