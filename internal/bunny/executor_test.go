package bunny

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// collectSink records published events and signals each arrival.
type collectSink struct {
	mu     sync.Mutex
	events []event.Event
	ch     chan event.Event
}

func newCollectSink() *collectSink {
	return &collectSink{ch: make(chan event.Event, 16)}
}

func (s *collectSink) Publish(e event.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	s.ch <- e
}

func (s *collectSink) wait(t *testing.T) event.Custom {
	t.Helper()
	select {
	case e := <-s.ch:
		c, ok := e.(event.Custom)
		if !ok {
			t.Fatalf("published %T, want event.Custom", e)
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an executor event")
		return event.Custom{}
	}
}

func TestExecutorTranslationCompletes(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "echo"},
		TranslationFunc(func(_ *task.Token, req TranslationRequest) (string, error) {
			return "[" + req.Target + "] " + req.Text, nil
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1))
	defer e.Close()

	id, err := e.SubmitTranslation("echo", TranslationRequest{Text: "hi", Target: "fr"})
	if err != nil {
		t.Fatalf("SubmitTranslation: %v", err)
	}

	c := sink.wait(t)
	if c.Name != EventTranslationCompleted {
		t.Fatalf("event = %q, want %q", c.Name, EventTranslationCompleted)
	}
	if c.Data["task_id"] != id {
		t.Errorf("task_id = %v, want %q", c.Data["task_id"], id)
	}
	if c.Data["result"] != "[fr] hi" {
		t.Errorf("result = %v", c.Data["result"])
	}
}

func TestExecutorUnknownService(t *testing.T) {
	e := NewExecutor(NewRegistry(nil), newCollectSink())
	defer e.Close()

	if _, err := e.SubmitOCR("nope", OCRRequest{}); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("SubmitOCR = %v, want ErrUnknownService", err)
	}
}

func TestExecutorFailurePublishesError(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterOCR("plug", OCRServiceInfo{ServiceID: "bad"},
		OCRFunc(func(*task.Token, OCRRequest) (string, error) {
			return "", errors.New("engine exploded")
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1))
	defer e.Close()

	if _, err := e.SubmitOCR("bad", OCRRequest{}); err != nil {
		t.Fatal(err)
	}
	c := sink.wait(t)
	if c.Name != EventTaskFailed {
		t.Fatalf("event = %q, want %q", c.Name, EventTaskFailed)
	}
	if c.Data["error"] != "engine exploded" {
		t.Errorf("error = %v", c.Data["error"])
	}
}

func TestExecutorProviderPanicIsContained(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterOCR("plug", OCRServiceInfo{ServiceID: "panicky"},
		OCRFunc(func(*task.Token, OCRRequest) (string, error) {
			panic("boom")
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1))
	defer e.Close()

	if _, err := e.SubmitOCR("panicky", OCRRequest{}); err != nil {
		t.Fatal(err)
	}
	if c := sink.wait(t); c.Name != EventTaskFailed {
		t.Fatalf("event = %q, want %q", c.Name, EventTaskFailed)
	}

	// The worker must survive to run the next job.
	r.RegisterOCR("plug", OCRServiceInfo{ServiceID: "fine"},
		OCRFunc(func(*task.Token, OCRRequest) (string, error) { return "ok", nil }))
	if _, err := e.SubmitOCR("fine", OCRRequest{}); err != nil {
		t.Fatal(err)
	}
	if c := sink.wait(t); c.Name != EventOCRCompleted {
		t.Fatalf("event = %q, want %q", c.Name, EventOCRCompleted)
	}
}

func TestExecutorCancellation(t *testing.T) {
	started := make(chan struct{})
	r := NewRegistry(nil)
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "slow"},
		TranslationFunc(func(tok *task.Token, _ TranslationRequest) (string, error) {
			close(started)
			if err := task.WaitOrCancel(tok, 5*time.Second, 10*time.Millisecond); err != nil {
				return "", err
			}
			return "done", nil
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1))
	defer e.Close()

	id, err := e.SubmitTranslation("slow", TranslationRequest{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if !e.Cancel(id) {
		t.Fatal("Cancel should find the running task")
	}

	c := sink.wait(t)
	if c.Name != EventTaskCancelled {
		t.Fatalf("event = %q, want %q", c.Name, EventTaskCancelled)
	}
	if c.Data["task_id"] != id {
		t.Errorf("task_id = %v, want %q", c.Data["task_id"], id)
	}
}

func TestExecutorCancelBeforeStart(t *testing.T) {
	block := make(chan struct{})
	r := NewRegistry(nil)
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "gate"},
		TranslationFunc(func(*task.Token, TranslationRequest) (string, error) {
			<-block
			return "done", nil
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1))
	defer e.Close()

	// First job occupies the only worker.
	if _, err := e.SubmitTranslation("gate", TranslationRequest{Text: "a"}); err != nil {
		t.Fatal(err)
	}
	// Second job is cancelled while still queued.
	id, err := e.SubmitTranslation("gate", TranslationRequest{Text: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !e.Cancel(id) {
		t.Fatal("queued task should be cancellable")
	}
	close(block)

	first := sink.wait(t)
	if first.Name != EventTranslationCompleted {
		t.Fatalf("first event = %q, want completion", first.Name)
	}
	second := sink.wait(t)
	if second.Name != EventTaskCancelled || second.Data["task_id"] != id {
		t.Fatalf("second event = %+v, want cancellation of %q", second, id)
	}
}

func TestExecutorCacheHitSkipsProvider(t *testing.T) {
	var calls int
	var mu sync.Mutex
	r := NewRegistry(nil)
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "memo"},
		TranslationFunc(func(_ *task.Token, req TranslationRequest) (string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return "result", nil
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1), WithCache(NewCache(8)))
	defer e.Close()

	req := TranslationRequest{Text: "same", Target: "fr"}
	if _, err := e.SubmitTranslation("memo", req); err != nil {
		t.Fatal(err)
	}
	sink.wait(t)
	if _, err := e.SubmitTranslation("memo", req); err != nil {
		t.Fatal(err)
	}
	c := sink.wait(t)
	if c.Name != EventTranslationCompleted || c.Data["result"] != "result" {
		t.Fatalf("cached completion = %+v", c)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestExecutorClosedRejectsJobs(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "svc"},
		TranslationFunc(func(*task.Token, TranslationRequest) (string, error) { return "", nil }))

	e := NewExecutor(r, newCollectSink())
	e.Close()

	if _, err := e.SubmitTranslation("svc", TranslationRequest{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("submit after Close = %v, want ErrClosed", err)
	}
}

func TestExecutorSharedTaskRegistry(t *testing.T) {
	tasks := task.NewRegistry()
	r := NewRegistry(nil)
	started := make(chan struct{})
	r.RegisterTranslation("plug", TranslationServiceInfo{ServiceID: "svc"},
		TranslationFunc(func(tok *task.Token, _ TranslationRequest) (string, error) {
			close(started)
			err := task.WaitOrCancel(tok, 5*time.Second, 10*time.Millisecond)
			if err != nil {
				return "", context.Canceled
			}
			return "done", nil
		}))

	sink := newCollectSink()
	e := NewExecutor(r, sink, WithWorkers(1), WithTaskRegistry(tasks))
	defer e.Close()

	id, err := e.SubmitTranslation("svc", TranslationRequest{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	// Cancelling through the shared registry reaches the executor's job.
	if !tasks.Cancel(id) {
		t.Fatal("shared registry should know the task id")
	}
	if c := sink.wait(t); c.Name != EventTaskCancelled {
		t.Fatalf("event = %q, want %q", c.Name, EventTaskCancelled)
	}
}
