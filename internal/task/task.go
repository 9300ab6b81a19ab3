// Package task provides a cooperative task runtime: a single background
// worker consumes submitted tasks strictly in submission order. Cancellation
// is advisory; running tasks poll for it at safe points and are never
// interrupted mid-step.
package task

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a task.
type State string

const (
	StateWaiting   State = "waiting"
	StateRunning   State = "running"
	StateCancelled State = "cancelled"
	StateEnded     State = "ended"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	switch s {
	case StateCancelled, StateEnded, StateSucceeded, StateFailed:
		return true
	}
	return false
}

// ErrCancelled is returned by task functions that observed a cancellation
// request at a safe point. The runner maps it to StateCancelled.
var ErrCancelled = errors.New("task cancelled")

// Status is an immutable snapshot of a task.
type Status struct {
	ID          string
	Name        string
	State       State
	Progress    float64
	Message     string
	Cancellable bool
	Error       string
	Started     time.Time
	Finished    time.Time
}

// Handle tracks one submitted task. All methods are safe for concurrent use;
// the running task updates progress through it while observers poll it.
type Handle struct {
	id          string
	name        string
	cancellable bool

	mu        sync.Mutex
	state     State
	progress  float64
	message   string
	errText   string
	cancelled bool
	started   time.Time
	finished  time.Time
}

// NewHandle creates a detached handle for running a task function outside
// the runner, typically from a CLI command that wants synchronous execution.
func NewHandle(name string, cancellable bool) *Handle {
	return newHandle(name, cancellable)
}

func newHandle(name string, cancellable bool) *Handle {
	return &Handle{
		id:          uuid.NewString(),
		name:        name,
		cancellable: cancellable,
		state:       StateWaiting,
	}
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// Name returns the human-readable task name.
func (h *Handle) Name() string { return h.name }

// Status returns a snapshot of the task.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		ID:          h.id,
		Name:        h.name,
		State:       h.state,
		Progress:    h.progress,
		Message:     h.message,
		Cancellable: h.cancellable,
		Error:       h.errText,
		Started:     h.started,
		Finished:    h.finished,
	}
}

// SetProgress records progress in [0,1] and a status message. Updates after
// a terminal transition are dropped.
func (h *Handle) SetProgress(progress float64, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.progress = progress
	h.message = message
}

// Cancel requests cancellation. The request is advisory: a running task
// transitions to Cancelled only once it polls the flag at a safe point.
// Cancel reports whether the request was accepted.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.cancellable || h.state.Terminal() {
		return false
	}
	h.cancelled = true
	return true
}

// CancelRequested reports whether cancellation has been requested.
func (h *Handle) CancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Checkpoint is the safe point tasks call between batches: it records
// progress and returns ErrCancelled when cancellation has been requested.
func (h *Handle) Checkpoint(progress float64, message string) error {
	if h.CancelRequested() {
		return ErrCancelled
	}
	h.SetProgress(progress, message)
	return nil
}

// transition moves the task to a new state. Terminal states freeze the
// handle; later transitions are ignored.
func (h *Handle) transition(state State, errText string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.state = state
	h.errText = errText
	switch state {
	case StateRunning:
		h.started = time.Now()
	case StateCancelled, StateEnded, StateSucceeded, StateFailed:
		h.finished = time.Now()
	}
}
