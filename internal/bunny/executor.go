package bunny

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yyuchenn/bubblefish-sub001/internal/event"
	"github.com/yyuchenn/bubblefish-sub001/internal/logging"
	"github.com/yyuchenn/bubblefish-sub001/internal/task"
)

// Custom event names published by the executor when a job finishes.
const (
	EventOCRCompleted         = "ocr_completed"
	EventTranslationCompleted = "translation_completed"
	EventTaskFailed           = "bunny_task_failed"
	EventTaskCancelled        = "bunny_task_cancelled"
)

// DefaultWorkers is the worker count for an executor built without
// WithWorkers.
const DefaultWorkers = 2

// Executor errors.
var (
	ErrUnknownService = errors.New("bunny: unknown service")
	ErrClosed         = errors.New("bunny: executor closed")
)

type jobKind int

const (
	jobOCR jobKind = iota
	jobTranslation
)

type job struct {
	kind      jobKind
	taskID    string
	serviceID string
	token     *task.Token
	ocr       OCRRequest
	trans     TranslationRequest
}

// Executor runs bunny jobs on a fixed pool of workers. Each submitted job
// gets a task id and a cancellation token; results come back asynchronously
// as custom events carrying the task id.
type Executor struct {
	registry *Registry
	tasks    *task.Registry
	cache    *Cache
	sink     event.Sink
	log      *logging.Logger
	workers  int

	mu     sync.Mutex
	jobs   chan job
	closed bool
	wg     sync.WaitGroup
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache sets the result cache. Without it results are not memoized.
func WithCache(c *Cache) ExecutorOption {
	return func(e *Executor) { e.cache = c }
}

// WithTaskRegistry sets the cancellation registry the executor creates its
// tokens in. Without it the executor uses a private registry, and jobs can
// only be cancelled through Executor.Cancel.
func WithTaskRegistry(r *task.Registry) ExecutorOption {
	return func(e *Executor) { e.tasks = r }
}

// WithLogger sets the executor's logger.
func WithLogger(log *logging.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// NewExecutor returns a started executor routing jobs to services in
// registry and reporting outcomes on sink.
func NewExecutor(registry *Registry, sink event.Sink, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		sink:     sink,
		log:      logging.Nop(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tasks == nil {
		e.tasks = task.NewRegistry()
	}
	e.jobs = make(chan job, e.workers*4)
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.run()
	}
	return e
}

// SubmitOCR queues a recognition job for the given service and returns its
// task id.
func (e *Executor) SubmitOCR(serviceID string, req OCRRequest) (string, error) {
	if _, ok := e.registry.OCRProviderFor(serviceID); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, serviceID)
	}
	return e.submit(job{kind: jobOCR, serviceID: serviceID, ocr: req})
}

// SubmitTranslation queues a translation job for the given service and
// returns its task id.
func (e *Executor) SubmitTranslation(serviceID string, req TranslationRequest) (string, error) {
	if _, ok := e.registry.TranslationProviderFor(serviceID); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, serviceID)
	}
	return e.submit(job{kind: jobTranslation, serviceID: serviceID, trans: req})
}

func (e *Executor) submit(j job) (string, error) {
	j.taskID = uuid.NewString()
	j.token = e.tasks.CreateToken(j.taskID)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.tasks.Remove(j.taskID)
		return "", ErrClosed
	}
	e.jobs <- j
	e.mu.Unlock()
	return j.taskID, nil
}

// Cancel flags the job with the given task id and reports whether the id is
// known. A cancelled job that has not started yet is dropped by its worker;
// a running job winds down at its next token check.
func (e *Executor) Cancel(taskID string) bool {
	return e.tasks.Cancel(taskID)
}

// Close stops accepting jobs and waits for in-flight workers to finish.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) run() {
	defer e.wg.Done()
	for j := range e.jobs {
		e.execute(j)
		e.tasks.Remove(j.taskID)
	}
}

func (e *Executor) execute(j job) {
	if j.token.Cancelled() {
		e.publishCancelled(j)
		return
	}

	key := e.cacheKey(j)
	if e.cache != nil {
		if result, ok := e.cache.Get(key); ok {
			e.publishCompleted(j, result)
			return
		}
	}

	result, err := e.dispatch(j)
	switch {
	case err == nil && j.token.Cancelled(), errors.Is(err, context.Canceled):
		e.publishCancelled(j)
	case err != nil:
		e.log.Warn("bunny task %s on service %q failed: %v", j.taskID, j.serviceID, err)
		e.sink.Publish(event.Custom{Name: EventTaskFailed, Data: map[string]any{
			"task_id":    j.taskID,
			"service_id": j.serviceID,
			"error":      err.Error(),
		}})
	default:
		if e.cache != nil {
			e.cache.Put(key, result)
		}
		e.publishCompleted(j, result)
	}
}

// dispatch calls the provider, converting a provider panic into an error so
// one misbehaving service cannot take a worker down.
func (e *Executor) dispatch(j job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bunny: provider for %q panicked: %v", j.serviceID, r)
		}
	}()

	switch j.kind {
	case jobOCR:
		p, ok := e.registry.OCRProviderFor(j.serviceID)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownService, j.serviceID)
		}
		return p.Recognize(j.token, j.ocr)
	default:
		p, ok := e.registry.TranslationProviderFor(j.serviceID)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownService, j.serviceID)
		}
		return p.Translate(j.token, j.trans)
	}
}

func (e *Executor) cacheKey(j job) string {
	if j.kind == jobOCR {
		return OCRKey(j.serviceID, j.ocr)
	}
	return TranslationKey(j.serviceID, j.trans)
}

func (e *Executor) publishCompleted(j job, result string) {
	name := EventOCRCompleted
	if j.kind == jobTranslation {
		name = EventTranslationCompleted
	}
	e.sink.Publish(event.Custom{Name: name, Data: map[string]any{
		"task_id":    j.taskID,
		"service_id": j.serviceID,
		"result":     result,
	}})
}

func (e *Executor) publishCancelled(j job) {
	e.sink.Publish(event.Custom{Name: EventTaskCancelled, Data: map[string]any{
		"task_id":    j.taskID,
		"service_id": j.serviceID,
	}})
}
