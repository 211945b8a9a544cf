package uploader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyPayload = errors.New("upload payload is empty")
	ErrTaskNotFound = errors.New("upload task not found")
	ErrNotRetryable = errors.New("only failed tasks can be retried")
)

const defaultMaxConcurrent = 4

// Options configures one enqueued upload.
type Options struct {
	AssetID    string
	Name       string
	MIME       string
	OnComplete func(url string)
	OnFinally  func()
}

type taskState struct {
	task          Task
	payload       []byte
	cancel        context.CancelFunc
	onComplete    func(url string)
	onFinally     func()
	completeFired bool
	finallyFired  bool
	fallbackUsed  bool
	removed       bool
}

// Queue owns every upload task and runs them through a bounded worker pool.
// All mutation goes through apply/transition under one mutex; subscribers
// are notified after the lock is released.
type Queue struct {
	mu        sync.Mutex
	tasks     map[string]*taskState
	order     []string
	subs      []func()
	sem       chan struct{}
	wg        sync.WaitGroup
	transport Transport
	logger    *zap.Logger
}

func NewQueue(transport Transport, maxConcurrent int, logger *zap.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Queue{
		tasks:     make(map[string]*taskState),
		sem:       make(chan struct{}, maxConcurrent),
		transport: transport,
		logger:    logger,
	}
}

// Enqueue registers the payload and starts its transfer as soon as a worker
// slot frees up.
func (q *Queue) Enqueue(payload []byte, opts Options) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	st := &taskState{
		task: Task{
			ID:      id,
			AssetID: opts.AssetID,
			Name:    opts.Name,
			Size:    int64(len(payload)),
			MIME:    opts.MIME,
			Status:  StatusQueued,
		},
		payload:    payload,
		cancel:     cancel,
		onComplete: opts.OnComplete,
		onFinally:  opts.OnFinally,
	}

	q.mu.Lock()
	q.tasks[id] = st
	q.order = append(q.order, id)
	q.mu.Unlock()
	q.notify()

	q.wg.Add(1)
	go q.run(ctx, id)

	return id, nil
}

// Cancel aborts the in-flight transport if any. No-op once terminal.
func (q *Queue) Cancel(id string) {
	q.mu.Lock()
	st, ok := q.tasks[id]
	if !ok || st.task.Status.Terminal() {
		q.mu.Unlock()
		return
	}
	cancel := st.cancel
	q.mu.Unlock()

	cancel()
}

// Retry re-enters a failed task into the queue with progress reset. The
// fallback transport stays spent: a task gets at most one automatic
// fallback in its lifetime.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	st, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return ErrTaskNotFound
	}
	if st.task.Status != StatusFailed {
		q.mu.Unlock()
		return ErrNotRetryable
	}

	st.task = transition(st.task, evRetry{}, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	q.mu.Unlock()
	q.notify()

	q.wg.Add(1)
	go q.run(ctx, id)

	return nil
}

// Remove drops the task from the visible set. It does not abort a transfer;
// callers wanting a clean stop must Cancel first.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	if st, ok := q.tasks[id]; ok {
		st.removed = true
	}
	q.mu.Unlock()
	q.notify()
}

// Snapshot returns copies of the visible tasks in enqueue order.
func (q *Queue) Snapshot() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := make([]Task, 0, len(q.order))
	for _, id := range q.order {
		if st, ok := q.tasks[id]; ok && !st.removed {
			tasks = append(tasks, st.task)
		}
	}
	return tasks
}

// Task returns a copy of one task.
func (q *Queue) Task(id string) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.tasks[id]
	if !ok || st.removed {
		return Task{}, ErrTaskNotFound
	}
	return st.task, nil
}

// AllTerminal reports whether every visible task has stopped moving.
func (q *Queue) AllTerminal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, st := range q.tasks {
		if !st.removed && !st.task.Status.Terminal() {
			return false
		}
	}
	return true
}

// Subscribe registers fn to run after every state change. fn is called
// without the queue lock held and may call back into the queue.
func (q *Queue) Subscribe(fn func()) {
	q.mu.Lock()
	q.subs = append(q.subs, fn)
	q.mu.Unlock()
}

// Wait blocks until every started transfer has finished. Test helper and
// shutdown hook.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, id string) {
	defer q.wg.Done()

	select {
	case q.sem <- struct{}{}:
		defer func() { <-q.sem }()
	case <-ctx.Done():
		q.apply(id, evCancelled{})
		q.fireCallbacks(id)
		return
	}

	q.attempt(ctx, id)
	q.fireCallbacks(id)
}

func (q *Queue) attempt(ctx context.Context, id string) {
	q.apply(id, evStart{})

	q.mu.Lock()
	st, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	payload := st.payload
	meta := BlobMeta{Name: st.task.Name, MIME: st.task.MIME, Size: st.task.Size}
	fallbackSpent := st.fallbackUsed
	q.mu.Unlock()

	result, err := q.transport.Upload(ctx, meta, payload, func(pct int) {
		q.apply(id, evProgress{pct: pct})
	})

	if err != nil && isTransportFailure(err) && !fallbackSpent {
		q.mu.Lock()
		st.fallbackUsed = true
		q.mu.Unlock()

		q.logger.Warn("primary transport failed, trying fallback",
			zap.String("task_id", id),
			zap.Error(err),
		)
		result, err = q.transport.UploadBuffered(ctx, meta, payload)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			q.apply(id, evCancelled{})
			return
		}
		q.logger.Error("upload failed",
			zap.String("task_id", id),
			zap.Error(err),
		)
		q.apply(id, evFailed{msg: err.Error()})
		return
	}

	q.logger.Info("upload finished",
		zap.String("task_id", id),
		zap.String("url", result.URL),
	)
	q.apply(id, evSucceeded{url: result.URL})
}

// isTransportFailure distinguishes network-level errors, the only kind the
// fallback transport is allowed to answer. Protocol rejections and caller
// cancellations pass through untouched.
func isTransportFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (q *Queue) apply(id string, ev event) {
	q.mu.Lock()
	st, ok := q.tasks[id]
	if ok {
		st.task = transition(st.task, ev, time.Now())
	}
	q.mu.Unlock()

	if ok {
		q.notify()
	}
}

// fireCallbacks delivers OnComplete and OnFinally, each at most once per
// task over its whole lifetime, retries included.
func (q *Queue) fireCallbacks(id string) {
	q.mu.Lock()
	st, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return
	}

	var (
		complete func(string)
		url      string
		finally  func()
	)
	if st.task.Status == StatusUploaded && !st.completeFired && st.onComplete != nil {
		st.completeFired = true
		complete = st.onComplete
		url = st.task.URL
	}
	if st.task.Status.Terminal() && !st.finallyFired && st.onFinally != nil {
		st.finallyFired = true
		finally = st.onFinally
	}
	q.mu.Unlock()

	if complete != nil {
		complete(url)
	}
	if finally != nil {
		finally()
	}
}

func (q *Queue) notify() {
	q.mu.Lock()
	subs := make([]func(), len(q.subs))
	copy(subs, q.subs)
	q.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
