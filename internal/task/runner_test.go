package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shelfaudit/internal/task"
)

func newRunner(t *testing.T) *task.Runner {
	t.Helper()
	r := task.NewRunner(nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func waitTerminal(t *testing.T, h *task.Handle) task.Status {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		status := h.Status()
		if status.State.Terminal() {
			return status
		}
		select {
		case <-deadline:
			t.Fatalf("task %s did not reach a terminal state, stuck at %s", h.ID(), status.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunnerExecutesInSubmissionOrder(t *testing.T) {
	r := newRunner(t)

	var (
		mu    sync.Mutex
		order []int
	)
	handles := make([]*task.Handle, 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		h, err := r.Submit("ordered", false, func(ctx context.Context, h *task.Handle) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		if status := waitTerminal(t, h); status.State != task.StateSucceeded {
			t.Fatalf("task state = %s, want succeeded", status.State)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order = %v", order)
		}
	}
}

func TestRunnerSuccessfulTaskReportsFullProgress(t *testing.T) {
	r := newRunner(t)

	h, err := r.Submit("progress", false, func(ctx context.Context, h *task.Handle) error {
		h.SetProgress(0.5, "halfway")
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status := waitTerminal(t, h)
	if status.State != task.StateSucceeded || status.Progress != 1 {
		t.Fatalf("status = %+v, want succeeded at progress 1", status)
	}
	if status.Message != "halfway" {
		t.Fatalf("message = %q", status.Message)
	}
}

func TestRunnerFailedTaskRecordsError(t *testing.T) {
	r := newRunner(t)

	h, err := r.Submit("failing", false, func(ctx context.Context, h *task.Handle) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status := waitTerminal(t, h)
	if status.State != task.StateFailed || status.Error != "boom" {
		t.Fatalf("status = %+v, want failed with error", status)
	}
}

func TestCancellationObservedAtCheckpoint(t *testing.T) {
	r := newRunner(t)

	started := make(chan struct{})
	release := make(chan struct{})
	h, err := r.Submit("cancellable", true, func(ctx context.Context, h *task.Handle) error {
		close(started)
		<-release
		return h.Checkpoint(0.5, "batch committed")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-started
	if !r.Cancel(h.ID()) {
		t.Fatal("Cancel should be accepted for a cancellable running task")
	}
	close(release)

	status := waitTerminal(t, h)
	if status.State != task.StateCancelled {
		t.Fatalf("state = %s, want cancelled", status.State)
	}
}

func TestCancelBeforeRunSkipsExecution(t *testing.T) {
	r := newRunner(t)

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	if _, err := r.Submit("blocker", false, func(ctx context.Context, h *task.Handle) error {
		close(blockerStarted)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	<-blockerStarted

	ran := false
	h, err := r.Submit("queued", true, func(ctx context.Context, h *task.Handle) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Submit queued: %v", err)
	}
	if !h.Cancel() {
		t.Fatal("Cancel of waiting task should be accepted")
	}
	close(release)

	status := waitTerminal(t, h)
	if status.State != task.StateCancelled {
		t.Fatalf("state = %s, want cancelled", status.State)
	}
	if ran {
		t.Fatal("cancelled task must not execute")
	}
}

func TestCancelRejectedForNonCancellable(t *testing.T) {
	r := newRunner(t)

	h, err := r.Submit("fixed", false, func(ctx context.Context, h *task.Handle) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.Cancel() {
		t.Fatal("non-cancellable task accepted a cancel request")
	}
	waitTerminal(t, h)
}

func TestTerminalStateFreezesHandle(t *testing.T) {
	r := newRunner(t)

	h, err := r.Submit("short", true, func(ctx context.Context, h *task.Handle) error {
		h.SetProgress(0.25, "working")
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status := waitTerminal(t, h)

	h.SetProgress(0.1, "late update")
	if h.Cancel() {
		t.Fatal("terminal task accepted a cancel request")
	}
	after := h.Status()
	if after.State != status.State || after.Progress != status.Progress || after.Message != status.Message {
		t.Fatalf("terminal handle mutated: %+v vs %+v", after, status)
	}
}

func TestTasksSnapshotInSubmissionOrder(t *testing.T) {
	r := newRunner(t)

	names := []string{"first", "second", "third"}
	for _, name := range names {
		if _, err := r.Submit(name, false, func(ctx context.Context, h *task.Handle) error {
			return nil
		}); err != nil {
			t.Fatalf("Submit %s: %v", name, err)
		}
	}
	statuses := r.Tasks()
	if len(statuses) != len(names) {
		t.Fatalf("got %d statuses", len(statuses))
	}
	for i, status := range statuses {
		if status.Name != names[i] {
			t.Fatalf("statuses out of order: %+v", statuses)
		}
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	r := task.NewRunner(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := r.Submit("late", false, func(ctx context.Context, h *task.Handle) error {
		return nil
	}); !errors.Is(err, task.ErrShutdown) {
		t.Fatalf("Submit after shutdown = %v, want ErrShutdown", err)
	}
}
