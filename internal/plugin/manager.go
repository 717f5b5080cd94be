package plugin

import (
	"fmt"
	"sync"

	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// ManagerEvent reports a lifecycle change to manager subscribers.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	Error  error
}

// ManagerEventType is the kind of manager event.
type ManagerEventType int

const (
	// EventPluginRegistered is emitted after a plugin initializes.
	EventPluginRegistered ManagerEventType = iota
	// EventPluginUnregistered is emitted after a plugin is destroyed and
	// its registrations are cleaned up.
	EventPluginUnregistered
	// EventPluginActivated is emitted when a plugin starts receiving events.
	EventPluginActivated
	// EventPluginDeactivated is emitted when delivery stops.
	EventPluginDeactivated
	// EventPluginError is emitted when a lifecycle call fails.
	EventPluginError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventPluginRegistered:
		return "registered"
	case EventPluginUnregistered:
		return "unregistered"
	case EventPluginActivated:
		return "activated"
	case EventPluginDeactivated:
		return "deactivated"
	case EventPluginError:
		return "error"
	default:
		return "unknown"
	}
}

// ManagerEventHandler observes manager events. Handlers run outside the
// manager's locks and must not block; panics are swallowed.
type ManagerEventHandler func(ev ManagerEvent)

// Manager owns every plugin host and fans domain events out to them. It is
// the single entry point the application uses: register plugins, publish
// events, route messages, shut down.
type Manager struct {
	services *service.Proxy
	bunnies  *bunny.Registry
	tasks    *task.Registry
	log      *logging.Logger
	auto     bool

	mu        sync.RWMutex
	hosts     map[string]*Host
	loadOrder []string
	handlers  []ManagerEventHandler
	shutdown  bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBunnyRegistry sets the registry plugin-contributed OCR and
// translation services land in.
func WithBunnyRegistry(r *bunny.Registry) ManagerOption {
	return func(m *Manager) { m.bunnies = r }
}

// WithTaskRegistry sets the cancellation registry cleared at shutdown.
func WithTaskRegistry(r *task.Registry) ManagerOption {
	return func(m *Manager) { m.tasks = r }
}

// WithLogger sets the manager's logger.
func WithLogger(log *logging.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithAutoActivate makes Register activate plugins immediately.
func WithAutoActivate(auto bool) ManagerOption {
	return func(m *Manager) { m.auto = auto }
}

// NewManager creates a manager over the given data services.
func NewManager(services *service.Proxy, opts ...ManagerOption) *Manager {
	m := &Manager{
		services: services,
		log:      logging.Nop(),
		hosts:    make(map[string]*Host),
		auto:     true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bunnies == nil {
		m.bunnies = bunny.NewRegistry(m.log)
	}
	if m.tasks == nil {
		m.tasks = task.NewRegistry()
	}
	return m
}

// Bunnies returns the bunny service registry.
func (m *Manager) Bunnies() *bunny.Registry { return m.bunnies }

// Tasks returns the cancellation registry.
func (m *Manager) Tasks() *task.Registry { return m.tasks }

// Register wraps the plugin in a host, initializes it, and, when
// auto-activate is on, activates it. The plugin id must be unused.
func (m *Manager) Register(p Plugin) (*Host, error) {
	host, err := NewHost(p, m.log)
	if err != nil {
		return nil, err
	}
	id := host.ID()

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, exists := m.hosts[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", id, ErrAlreadyRegistered)
	}
	m.hosts[id] = host
	m.loadOrder = append(m.loadOrder, id)
	m.mu.Unlock()

	ctx := &Context{
		PluginID: id,
		Services: GuardProxy(m.services, host.Grants()),
		Host:     &hostAPI{m: m, host: host},
		Log:      m.log.WithPlugin(id),
		Grants:   host.Grants(),
	}

	if err := host.Init(ctx); err != nil {
		m.remove(id)
		m.emit(ManagerEvent{Type: EventPluginError, Plugin: id, Error: err})
		return nil, fmt.Errorf("init plugin %q: %w", id, err)
	}
	m.emit(ManagerEvent{Type: EventPluginRegistered, Plugin: id})

	if m.auto {
		if err := host.Activate(); err != nil {
			// Initialized but not active; the caller can retry or unregister.
			m.emit(ManagerEvent{Type: EventPluginError, Plugin: id, Error: err})
		} else {
			m.emit(ManagerEvent{Type: EventPluginActivated, Plugin: id})
		}
	}
	return host, nil
}

// Unregister destroys the plugin and removes every trace of it: its bunny
// services are unregistered and its host is dropped.
func (m *Manager) Unregister(id string) error {
	m.mu.RLock()
	host, exists := m.hosts[id]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}

	host.Destroy()
	if removed := m.bunnies.UnregisterPluginServices(id); len(removed) > 0 {
		m.log.Info("plugin %q unregistered, removed bunny services %v", id, removed)
	}
	m.remove(id)
	m.emit(ManagerEvent{Type: EventPluginUnregistered, Plugin: id})
	return nil
}

// Activate starts event delivery to a plugin.
func (m *Manager) Activate(id string) error {
	host, err := m.host(id)
	if err != nil {
		return err
	}
	if err := host.Activate(); err != nil {
		m.emit(ManagerEvent{Type: EventPluginError, Plugin: id, Error: err})
		return err
	}
	m.emit(ManagerEvent{Type: EventPluginActivated, Plugin: id})
	return nil
}

// Deactivate stops event delivery to a plugin without destroying it.
func (m *Manager) Deactivate(id string) error {
	host, err := m.host(id)
	if err != nil {
		return err
	}
	if err := host.Deactivate(); err != nil {
		m.emit(ManagerEvent{Type: EventPluginError, Plugin: id, Error: err})
		return err
	}
	m.emit(ManagerEvent{Type: EventPluginDeactivated, Plugin: id})
	return nil
}

// Get returns a plugin host by id.
func (m *Manager) Get(id string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.hosts[id]
	return host, ok
}

// List returns all hosts in registration order.
func (m *Manager) List() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Host, 0, len(m.loadOrder))
	for _, id := range m.loadOrder {
		if h, ok := m.hosts[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}

// Publish wraps a domain event in an envelope and delivers it to every
// active, subscribed plugin in registration order. Implements event.Sink.
func (m *Manager) Publish(e event.Event) {
	m.publish(event.NewEnvelope(e, "host"))
}

func (m *Manager) publish(env event.Envelope) {
	for _, host := range m.List() {
		host.Deliver(env)
	}
}

// SendMessage routes a direct message between plugins. Both ends must be
// registered, and the sender needs a message grant for the target; delivery
// to an inactive target is silently dropped, matching event delivery.
func (m *Manager) SendMessage(from, to string, payload map[string]any) error {
	sender, err := m.host(from)
	if err != nil {
		return err
	}
	target, err := m.host(to)
	if err != nil {
		return err
	}
	if !sender.Grants().AllowsMessage(to) {
		return fmt.Errorf("%w: message %s -> %s", ErrPermissionDenied, from, to)
	}
	target.Message(from, payload)
	return nil
}

// Ready announces that the host finished startup. Delivered to every active
// plugin regardless of subscriptions.
func (m *Manager) Ready() {
	m.Publish(event.SystemReady{})
}

// Subscribe adds a manager event handler and returns its remove function.
func (m *Manager) Subscribe(h ManagerEventHandler) func() {
	if h == nil {
		return func() {}
	}
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	idx := len(m.handlers) - 1
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.handlers) {
			m.handlers[idx] = nil
		}
	}
}

// Shutdown announces SystemShutdown to active plugins, then destroys every
// plugin in reverse registration order and cancels all outstanding tasks.
// Further Register calls fail with ErrShuttingDown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	order := make([]string, len(m.loadOrder))
	copy(order, m.loadOrder)
	m.mu.Unlock()

	m.Publish(event.SystemShutdown{})

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		m.mu.RLock()
		host, ok := m.hosts[id]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		host.Destroy()
		m.bunnies.UnregisterPluginServices(id)
		m.remove(id)
		m.emit(ManagerEvent{Type: EventPluginUnregistered, Plugin: id})
	}

	m.tasks.ClearAll()
}

func (m *Manager) host(id string) (*Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.hosts[id]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}
	return host, nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hosts, id)
	for i, n := range m.loadOrder {
		if n == id {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			break
		}
	}
}

// emit calls manager event handlers outside the lock, swallowing panics.
func (m *Manager) emit(ev ManagerEvent) {
	m.mu.RLock()
	handlers := make([]ManagerEventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			h(ev)
		}()
	}
}

// hostAPI is the per-plugin implementation of HostAPI.
type hostAPI struct {
	m    *Manager
	host *Host
}

func (a *hostAPI) RegisterOCR(info bunny.OCRServiceInfo, p bunny.OCRProvider) {
	a.m.bunnies.RegisterOCR(a.host.ID(), info, p)
}

func (a *hostAPI) RegisterTranslation(info bunny.TranslationServiceInfo, p bunny.TranslationProvider) {
	a.m.bunnies.RegisterTranslation(a.host.ID(), info, p)
}

func (a *hostAPI) SendMessage(to string, payload map[string]any) error {
	return a.m.SendMessage(a.host.ID(), to, payload)
}

func (a *hostAPI) Publish(name string, data map[string]any) {
	a.m.publish(event.NewEnvelope(event.Custom{Name: name, Data: data}, a.host.ID()))
}
