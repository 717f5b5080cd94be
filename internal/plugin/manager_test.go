package plugin

import (
	"errors"
	"testing"

	"github.com/yyuchenn/bubblefish-sub001/internal/bunny"
	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/model"
	"github.com/yyuchenn/bubblefish-sub001/internal/service"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

func testManager(t *testing.T) (*Manager, *service.Store) {
	t.Helper()
	store := service.NewStore()
	m := NewManager(store.Proxy())
	t.Cleanup(m.Shutdown)
	return m, store
}

func TestManagerRegisterAndPublish(t *testing.T) {
	m, _ := testManager(t)
	p := newFakePlugin("sub", event.TypeProjectOpened)
	if _, err := m.Register(p); err != nil {
		t.Fatal(err)
	}
	other := newFakePlugin("unsub", event.TypeImageAdded)
	if _, err := m.Register(other); err != nil {
		t.Fatal(err)
	}

	m.Publish(event.ProjectOpened{Project: model.Project{ID: "p1"}})

	waitFor(t, func() bool { return len(p.eventTypes()) == 1 })
	if len(other.eventTypes()) != 0 {
		t.Error("unsubscribed plugin received the event")
	}
}

func TestManagerDuplicateID(t *testing.T) {
	m, _ := testManager(t)
	if _, err := m.Register(newFakePlugin("dup")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Register(newFakePlugin("dup")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register = %v, want ErrAlreadyRegistered", err)
	}
}

func TestManagerInitFailureRollsBack(t *testing.T) {
	m, _ := testManager(t)
	p := newFakePlugin("broken")
	p.initErr = errors.New("nope")

	if _, err := m.Register(p); err == nil {
		t.Fatal("Register should fail when Init fails")
	}
	if m.Count() != 0 {
		t.Error("failed plugin should not stay registered")
	}
	// The id is free again.
	if _, err := m.Register(newFakePlugin("broken")); err != nil {
		t.Errorf("re-register after failure: %v", err)
	}
}

func TestManagerUnregisterCleansBunnyServices(t *testing.T) {
	m, _ := testManager(t)
	p := newFakePlugin("translator")
	if _, err := m.Register(p); err != nil {
		t.Fatal(err)
	}

	p.ctx.Host.RegisterTranslation(
		bunny.TranslationServiceInfo{ServiceID: "tr-1", Name: "T"},
		bunny.TranslationFunc(func(*task.Token, bunny.TranslationRequest) (string, error) { return "", nil }),
	)
	if m.Bunnies().Len() != 1 {
		t.Fatal("service should be registered")
	}

	if err := m.Unregister("translator"); err != nil {
		t.Fatal(err)
	}
	if m.Bunnies().Len() != 0 {
		t.Error("unregister should remove the plugin's bunny services")
	}
	if p.destroyCount != 1 {
		t.Error("plugin should be destroyed")
	}
}

func TestManagerMessaging(t *testing.T) {
	m, _ := testManager(t)
	a := newFakePlugin("a")
	b := newFakePlugin("b")
	if _, err := m.Register(a); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Register(b); err != nil {
		t.Fatal(err)
	}

	if err := a.ctx.Host.SendMessage("b", map[string]any{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.messages) == 1
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages[0].From != "a" || b.messages[0].Payload["k"] != "v" {
		t.Errorf("message = %+v", b.messages[0])
	}
}

func TestManagerMessagingDenied(t *testing.T) {
	m, _ := testManager(t)
	a := newFakePlugin("a")
	a.meta.Permissions = []string{"message:c"} // may message c, not b
	if _, err := m.Register(a); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Register(newFakePlugin("b")); err != nil {
		t.Fatal(err)
	}

	if err := a.ctx.Host.SendMessage("b", nil); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("SendMessage = %v, want ErrPermissionDenied", err)
	}
	if err := a.ctx.Host.SendMessage("ghost", nil); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("SendMessage to unknown = %v, want ErrPluginNotFound", err)
	}
}

func TestManagerCustomEventFromPlugin(t *testing.T) {
	m, _ := testManager(t)
	sender := newFakePlugin("sender")
	listener := newFakePlugin("listener", "word_count")
	if _, err := m.Register(sender); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Register(listener); err != nil {
		t.Fatal(err)
	}

	sender.ctx.Host.Publish("word_count", map[string]any{"words": 42})

	waitFor(t, func() bool { return len(listener.eventTypes()) == 1 })
	listener.mu.Lock()
	defer listener.mu.Unlock()
	env := listener.events[0]
	if env.Metadata.Source != "sender" {
		t.Errorf("Source = %q, want the publishing plugin id", env.Metadata.Source)
	}
	if env.Event.(event.Custom).Data["words"] != 42 {
		t.Errorf("payload = %+v", env.Event)
	}
}

func TestManagerShutdown(t *testing.T) {
	store := service.NewStore()
	m := NewManager(store.Proxy())
	p := newFakePlugin("svc")
	if _, err := m.Register(p); err != nil {
		t.Fatal(err)
	}
	tok := m.Tasks().CreateToken("job")

	m.Shutdown()

	if p.destroyCount != 1 {
		t.Error("shutdown should destroy plugins")
	}
	if !tok.Cancelled() {
		t.Error("shutdown should cancel outstanding tasks")
	}
	if m.Count() != 0 {
		t.Error("no plugins should remain")
	}
	if _, err := m.Register(newFakePlugin("late")); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Register after Shutdown = %v, want ErrShuttingDown", err)
	}
	m.Shutdown() // idempotent
}

func TestManagerEvents(t *testing.T) {
	m, _ := testManager(t)
	var got []ManagerEvent
	unsub := m.Subscribe(func(ev ManagerEvent) { got = append(got, ev) })

	if _, err := m.Register(newFakePlugin("obs")); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != EventPluginRegistered || got[1].Type != EventPluginActivated {
		t.Fatalf("events = %+v", got)
	}

	unsub()
	if err := m.Unregister("obs"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Error("unsubscribed handler still received events")
	}
}

func TestGuardedServicesDenyUngranted(t *testing.T) {
	store := service.NewStore()
	store.SetProject(model.Project{ID: "p1"})
	store.PutMarker(model.Marker{ID: "m1"})
	m := NewManager(store.Proxy())
	t.Cleanup(m.Shutdown)

	p := newFakePlugin("narrow")
	p.meta.Permissions = []string{"service:marker:get"}
	if _, err := m.Register(p); err != nil {
		t.Fatal(err)
	}

	if _, err := p.ctx.Services.Marker.Marker("m1"); err != nil {
		t.Errorf("granted lookup failed: %v", err)
	}
	if _, ok := p.ctx.Services.Project.Current(); ok {
		t.Error("ungranted project query should report no project")
	}
	if _, err := p.ctx.Services.Image.Image("img"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("ungranted image lookup = %v, want ErrPermissionDenied", err)
	}
}
