package plugin

import (
	"fmt"
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/plugin/security"
)

// inboxSize is the per-plugin delivery queue depth. A plugin that falls
// this far behind starts losing events rather than stalling the publisher.
const inboxSize = 128

type delivery struct {
	isMessage bool
	env       event.Envelope
	from      string
	payload   map[string]any
}

// Host runs one plugin: it owns the plugin's lifecycle state and delivers
// events and messages on a single goroutine, so the plugin sees everything
// in publish order and never concurrently.
type Host struct {
	plugin Plugin
	meta   Metadata
	grants *security.Grants
	subs   map[string]bool
	log    *logging.Logger

	mu      sync.Mutex
	state   State
	err     error
	inbox   chan delivery
	done    chan struct{}
	started bool
}

// NewHost wraps a plugin. Permission strings are parsed here so a bad
// manifest fails before Init; subscriptions the grants do not cover are
// dropped with a warning.
func NewHost(p Plugin, log *logging.Logger) (*Host, error) {
	meta := p.Metadata()
	if meta.ID == "" {
		return nil, fmt.Errorf("plugin: metadata has no id")
	}
	if log == nil {
		log = logging.Nop()
	}
	plog := log.WithPlugin(meta.ID)

	grants, err := security.Parse(meta.Permissions)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w", meta.ID, err)
	}

	subs := make(map[string]bool, len(meta.Events))
	for _, ev := range meta.Events {
		if !grants.AllowsEvent(ev) {
			plog.Warn("subscription to %q not covered by permissions, dropping", ev)
			continue
		}
		subs[ev] = true
	}

	return &Host{
		plugin: p,
		meta:   meta,
		grants: grants,
		subs:   subs,
		log:    plog,
		state:  StateUnloaded,
		inbox:  make(chan delivery, inboxSize),
		done:   make(chan struct{}),
	}, nil
}

// ID returns the plugin id.
func (h *Host) ID() string { return h.meta.ID }

// Meta returns the plugin metadata.
func (h *Host) Meta() Metadata { return h.meta }

// Grants returns the plugin's parsed permissions.
func (h *Host) Grants() *security.Grants { return h.grants }

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error that moved the plugin into StateError, if any.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Init runs the plugin's Init and starts its delivery goroutine.
func (h *Host) Init(ctx *Context) error {
	h.mu.Lock()
	if h.state != StateUnloaded {
		h.mu.Unlock()
		return fmt.Errorf("%w: init from %s", ErrInvalidTransition, h.state)
	}
	h.mu.Unlock()

	if err := h.callLifecycle("init", func() error { return h.plugin.Init(ctx) }); err != nil {
		h.fail(err)
		return err
	}
	return h.commit(StateUnloaded, StateInitialized, "init")
}

// Activate starts event delivery.
func (h *Host) Activate() error {
	h.mu.Lock()
	prev := h.state
	if !prev.CanActivate() {
		h.mu.Unlock()
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, prev)
	}
	h.mu.Unlock()

	if err := h.callLifecycle("activate", h.plugin.OnActivate); err != nil {
		h.fail(err)
		return err
	}
	return h.commit(prev, StateActive, "activate")
}

// Deactivate stops event delivery; the plugin keeps its state.
func (h *Host) Deactivate() error {
	h.mu.Lock()
	if h.state != StateActive {
		h.mu.Unlock()
		return fmt.Errorf("%w: deactivate from %s", ErrInvalidTransition, h.state)
	}
	h.mu.Unlock()

	if err := h.callLifecycle("deactivate", h.plugin.OnDeactivate); err != nil {
		h.fail(err)
		return err
	}
	return h.commit(StateActive, StateInactive, "deactivate")
}

// commit finalizes a lifecycle transition. The state is re-verified under
// the same lock that writes it: if a Destroy or a handler failure ran while
// the plugin callback was in flight, that state wins and the transition is
// abandoned instead of resurrecting the plugin.
func (h *Host) commit(from, to State, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return fmt.Errorf("%w: %s preempted by %s", ErrInvalidTransition, name, h.state)
	}
	h.state = to
	if !h.started {
		h.started = true
		go h.run()
	}
	return nil
}

// Destroy tears the plugin down and stops its goroutine. Idempotent; safe
// from any state.
func (h *Host) Destroy() {
	h.mu.Lock()
	if h.state == StateDestroyed {
		h.mu.Unlock()
		return
	}
	wasActive := h.state == StateActive
	h.state = StateDestroyed
	close(h.inbox)
	started := h.started
	h.mu.Unlock()

	if started {
		<-h.done
	}

	if wasActive {
		_ = h.callLifecycle("deactivate", h.plugin.OnDeactivate)
	}
	_ = h.callLifecycle("destroy", func() error { h.plugin.Destroy(); return nil })
}

// Deliver queues an event for the plugin. Events are dropped unless the
// plugin is active and either subscribed to the type or the event is a
// system notification. A full inbox also drops, with a warning, so one slow
// plugin cannot stall the publisher. Reports whether the event was queued.
func (h *Host) Deliver(env event.Envelope) bool {
	if !event.IsSystem(env.Event) && !h.subs[env.Event.EventType()] {
		return false
	}
	return h.enqueue(delivery{env: env})
}

// Message queues a direct message from another plugin.
func (h *Host) Message(from string, payload map[string]any) bool {
	return h.enqueue(delivery{isMessage: true, from: from, payload: payload})
}

func (h *Host) enqueue(d delivery) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateActive {
		return false
	}
	select {
	case h.inbox <- d:
		return true
	default:
		h.log.Warn("inbox full, dropping delivery")
		return false
	}
}

// run is the plugin's delivery goroutine. A panic in a handler is contained
// here: it is logged, the plugin moves to StateError, and remaining queued
// deliveries are discarded.
func (h *Host) run() {
	defer close(h.done)
	for d := range h.inbox {
		if h.State() == StateError {
			continue
		}
		h.handle(d)
	}
}

// handle runs one delivery. A handler error is logged against the plugin
// and delivery continues; only a panic takes the plugin out of service.
func (h *Host) handle(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.fail(fmt.Errorf("plugin %q: handler panic: %v", h.meta.ID, r))
		}
	}()
	var err error
	if d.isMessage {
		err = h.plugin.OnPluginMessage(d.from, d.payload)
	} else {
		err = h.plugin.OnCoreEvent(d.env)
	}
	if err != nil {
		h.log.Error("handler: %v", err)
	}
}

// callLifecycle runs a lifecycle method with panic containment.
func (h *Host) callLifecycle(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %q: %s panic: %v", h.meta.ID, name, r)
		}
	}()
	return fn()
}

// fail records the error and moves the plugin to StateError, unless it is
// already destroyed.
func (h *Host) fail(err error) {
	h.log.Error("%v", err)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	if h.state != StateDestroyed {
		h.state = StateError
	}
}
