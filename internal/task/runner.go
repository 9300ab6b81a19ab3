package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"shelfaudit/internal/logging"
)

// Func is the body of a task. It receives the runner's base context and its
// own handle for progress reporting and cancellation polling. Returning
// ErrCancelled marks the task Cancelled; any other error marks it Failed.
type Func func(ctx context.Context, h *Handle) error

// ErrShutdown is returned by Submit after the runner has been shut down.
var ErrShutdown = errors.New("task runner is shut down")

const queueCapacity = 64

type queued struct {
	handle *Handle
	fn     Func
}

// Runner executes tasks one at a time in submission order. Serializing all
// work through one worker keeps concurrent sweeps from contending over the
// health cache.
type Runner struct {
	logger *slog.Logger

	mu      sync.Mutex
	history []*Handle
	byID    map[string]*Handle
	closed  bool

	queue  chan queued
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner starts the background worker.
func NewRunner(logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger: logging.NewComponentLogger(logger, "task"),
		byID:   make(map[string]*Handle),
		queue:  make(chan queued, queueCapacity),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.work()
	return r
}

// Submit enqueues a task and returns its handle. Submission order is
// execution order.
func (r *Runner) Submit(name string, cancellable bool, fn Func) (*Handle, error) {
	if fn == nil {
		return nil, errors.New("task function is required")
	}
	handle := newHandle(name, cancellable)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShutdown
	}
	// Enqueue under the lock: Shutdown closes the queue while holding it,
	// so a send can never race the close.
	select {
	case r.queue <- queued{handle: handle, fn: fn}:
	default:
		r.mu.Unlock()
		handle.transition(StateFailed, "task queue is full")
		return nil, fmt.Errorf("task queue is full (%d pending)", queueCapacity)
	}
	r.history = append(r.history, handle)
	r.byID[handle.id] = handle
	r.mu.Unlock()
	r.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, handle.id),
		logging.String("name", name))
	return handle, nil
}

// Get returns the handle for a task id.
func (r *Runner) Get(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.byID[id]
	return handle, ok
}

// Tasks returns status snapshots in submission order.
func (r *Runner) Tasks() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]Status, 0, len(r.history))
	for _, handle := range r.history {
		statuses = append(statuses, handle.Status())
	}
	return statuses
}

// Cancel requests cancellation of a task by id.
func (r *Runner) Cancel(id string) bool {
	handle, ok := r.Get(id)
	if !ok {
		return false
	}
	return handle.Cancel()
}

// Shutdown stops accepting new tasks, asks the worker to stop after the
// current task, marks still-waiting tasks Ended, and waits for the worker
// to exit or ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.drain()
			return
		case item, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(item)
		}
	}
}

// drain empties the queue after shutdown, marking tasks that never ran.
func (r *Runner) drain() {
	for {
		select {
		case item, ok := <-r.queue:
			if !ok {
				return
			}
			item.handle.transition(StateEnded, "")
		default:
			return
		}
	}
}

func (r *Runner) run(item queued) {
	handle := item.handle
	if r.ctx.Err() != nil {
		handle.transition(StateEnded, "")
		return
	}
	if handle.CancelRequested() {
		handle.transition(StateCancelled, "")
		return
	}
	handle.transition(StateRunning, "")
	r.logger.Info("task started", logging.String(logging.FieldTaskID, handle.id))

	err := item.fn(r.ctx, handle)
	switch {
	case errors.Is(err, ErrCancelled):
		handle.transition(StateCancelled, "")
		r.logger.Info("task cancelled", logging.String(logging.FieldTaskID, handle.id))
	case err != nil:
		handle.transition(StateFailed, err.Error())
		r.logger.Error("task failed",
			logging.String(logging.FieldTaskID, handle.id),
			logging.Error(err))
	default:
		handle.SetProgress(1, handle.Status().Message)
		handle.transition(StateSucceeded, "")
		r.logger.Info("task succeeded", logging.String(logging.FieldTaskID, handle.id))
	}
}
