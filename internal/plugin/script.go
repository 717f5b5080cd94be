package plugin

import (
	"encoding/json"
	"fmt"

	glua "github.com/yuin/gopher-lua"

	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	plua "github.com/yyuchenn/bubblefish-sub001/internal/plugin/lua"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// Lua handler names a script plugin may define. All are optional.
const (
	luaOnInit       = "on_init"
	luaOnActivate   = "on_activate"
	luaOnDeactivate = "on_deactivate"
	luaOnEvent      = "on_event"
	luaOnMessage    = "on_message"
	luaOnDestroy    = "on_destroy"
)

// ScriptPlugin adapts a Lua script to the Plugin interface. The script
// defines global handler functions (on_init, on_event, ...) and talks back
// through a `host` module installed before the script runs:
//
//	host.log(level, msg)
//	host.project() -> table or nil
//	host.marker(id) -> table or nil
//	host.publish(name, data)
//	host.send_message(to, data)
//	host.register_ocr(info, fn)          -- fn(image_data) -> text
//	host.register_translation(info, fn)  -- fn(text, source, target) -> text
//
// All handler calls arrive on one goroutine, so scripts need no locking.
type ScriptPlugin struct {
	manifest *Manifest
	state    *plua.State
	bridge   *plua.Bridge
	ctx      *Context
}

// NewScriptPlugin creates a plugin that will run the manifest's entry
// script. The script itself is not loaded until Init.
func NewScriptPlugin(m *Manifest) *ScriptPlugin {
	return &ScriptPlugin{manifest: m}
}

// Metadata implements Plugin.
func (p *ScriptPlugin) Metadata() Metadata {
	return p.manifest.Metadata()
}

// Init creates the sandboxed interpreter, installs the host module, runs
// the entry script, and calls its on_init if defined.
func (p *ScriptPlugin) Init(ctx *Context) error {
	p.ctx = ctx
	p.state = plua.NewState()
	p.bridge = p.state.Bridge()
	p.installHostModule()

	if err := p.state.DoFile(p.manifest.MainPath()); err != nil {
		p.state.Close()
		p.state = nil
		return fmt.Errorf("load script %s: %w", p.manifest.MainPath(), err)
	}
	return p.callOptional(luaOnInit)
}

// OnActivate implements Plugin.
func (p *ScriptPlugin) OnActivate() error {
	return p.callOptional(luaOnActivate)
}

// OnDeactivate implements Plugin.
func (p *ScriptPlugin) OnDeactivate() error {
	return p.callOptional(luaOnDeactivate)
}

// OnCoreEvent implements Plugin. The event payload crosses into Lua as a
// table built from the event's JSON form, so scripts see the same field
// names as every other consumer.
func (p *ScriptPlugin) OnCoreEvent(env event.Envelope) error {
	if p.state == nil || !p.state.Has(luaOnEvent) {
		return nil
	}
	payload := p.eventTable(env.Event)
	if _, err := p.state.Call(luaOnEvent, glua.LString(env.Event.EventType()), payload); err != nil {
		return fmt.Errorf("%s: %w", luaOnEvent, err)
	}
	return nil
}

// OnPluginMessage implements Plugin.
func (p *ScriptPlugin) OnPluginMessage(from string, payload map[string]any) error {
	if p.state == nil || !p.state.Has(luaOnMessage) {
		return nil
	}
	if _, err := p.state.Call(luaOnMessage, glua.LString(from), p.bridge.ToLua(payload)); err != nil {
		return fmt.Errorf("%s: %w", luaOnMessage, err)
	}
	return nil
}

// Destroy implements Plugin.
func (p *ScriptPlugin) Destroy() {
	if p.state == nil {
		return
	}
	if p.state.Has(luaOnDestroy) {
		if _, err := p.state.Call(luaOnDestroy); err != nil {
			p.ctx.Log.Error("on_destroy failed: %v", err)
		}
	}
	p.state.Close()
	p.state = nil
}

// callOptional invokes a handler if the script defined it.
func (p *ScriptPlugin) callOptional(fn string) error {
	if p.state == nil || !p.state.Has(fn) {
		return nil
	}
	_, err := p.state.Call(fn)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

// eventTable renders an event as a Lua table via its JSON form. Custom
// events pass their data map directly.
func (p *ScriptPlugin) eventTable(e event.Event) glua.LValue {
	if c, ok := e.(event.Custom); ok {
		return p.bridge.ToLua(c.Data)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return glua.LNil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return glua.LNil
	}
	return p.bridge.ToLua(m)
}

// installHostModule exposes the host API to the script.
func (p *ScriptPlugin) installHostModule() {
	p.state.RegisterModule("host", map[string]glua.LGFunction{
		"log": func(l *glua.LState) int {
			level := logging.Level(l.CheckInt(1))
			p.ctx.Log.Log(level, "%s", l.CheckString(2))
			return 0
		},
		"project": func(l *glua.LState) int {
			proj, ok := p.ctx.Services.Project.Current()
			if !ok {
				l.Push(glua.LNil)
				return 1
			}
			l.Push(p.jsonToLua(proj))
			return 1
		},
		"marker": func(l *glua.LState) int {
			m, err := p.ctx.Services.Marker.Marker(l.CheckString(1))
			if err != nil {
				l.Push(glua.LNil)
				return 1
			}
			l.Push(p.jsonToLua(m))
			return 1
		},
		"publish": func(l *glua.LState) int {
			name := l.CheckString(1)
			data, _ := p.bridge.ToGo(l.CheckTable(2)).(map[string]any)
			p.ctx.Host.Publish(name, data)
			return 0
		},
		"send_message": func(l *glua.LState) int {
			to := l.CheckString(1)
			data, _ := p.bridge.ToGo(l.CheckTable(2)).(map[string]any)
			if err := p.ctx.Host.SendMessage(to, data); err != nil {
				l.Push(glua.LString(err.Error()))
				return 1
			}
			l.Push(glua.LNil)
			return 1
		},
		"register_ocr": func(l *glua.LState) int {
			info := l.CheckTable(1)
			fn := l.CheckString(2)
			p.ctx.Host.RegisterOCR(bunny.OCRServiceInfo{
				ServiceID: stringField(info, "service_id"),
				Name:      stringField(info, "name"),
				Languages: p.bridge.TableToStringSlice(tableField(info, "languages")),
			}, bunny.OCRFunc(func(tok *task.Token, req bunny.OCRRequest) (string, error) {
				return p.callProvider(fn, glua.LString(req.Data))
			}))
			return 0
		},
		"register_translation": func(l *glua.LState) int {
			info := l.CheckTable(1)
			fn := l.CheckString(2)
			p.ctx.Host.RegisterTranslation(bunny.TranslationServiceInfo{
				ServiceID:       stringField(info, "service_id"),
				Name:            stringField(info, "name"),
				SourceLanguages: p.bridge.TableToStringSlice(tableField(info, "source_languages")),
				TargetLanguages: p.bridge.TableToStringSlice(tableField(info, "target_languages")),
			}, bunny.TranslationFunc(func(tok *task.Token, req bunny.TranslationRequest) (string, error) {
				return p.callProvider(fn, glua.LString(req.Text), glua.LString(req.Source), glua.LString(req.Target))
			}))
			return 0
		},
	})
}

// callProvider runs a script-defined provider function. The State's own
// lock serializes this with event handling.
func (p *ScriptPlugin) callProvider(fn string, args ...glua.LValue) (string, error) {
	out, err := p.state.Call(fn, args...)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("lua provider %q returned nothing", fn)
	}
	s, ok := out[0].(glua.LString)
	if !ok {
		return "", fmt.Errorf("lua provider %q returned %s, want string", fn, out[0].Type())
	}
	return string(s), nil
}

// jsonToLua converts a Go struct to a Lua table through its JSON encoding.
func (p *ScriptPlugin) jsonToLua(v any) glua.LValue {
	raw, err := json.Marshal(v)
	if err != nil {
		return glua.LNil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return glua.LNil
	}
	return p.bridge.ToLua(m)
}

func stringField(t *glua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(glua.LString); ok {
		return string(s)
	}
	return ""
}

func tableField(t *glua.LTable, key string) *glua.LTable {
	if tt, ok := t.RawGetString(key).(*glua.LTable); ok {
		return tt
	}
	return &glua.LTable{}
}
