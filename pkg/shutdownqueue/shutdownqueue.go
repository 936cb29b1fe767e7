// Package shutdownqueue collects cleanup tasks and drains them in LIFO order.
//
// A process-wide Default queue backs the package-level Add and Shutdown;
// components that own their lifecycle (tests, embedded servers) can use New.
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	_ = shutdownqueue.Shutdown(ctx)
//
// Tasks run once, in reverse order of registration. Panics are recovered.
// Shutdown is idempotent and returns an aggregated error via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Queue is a LIFO list of shutdown tasks. The zero value is ready to use.
type Queue struct {
	mu     sync.Mutex
	tasks  []namedTask
	closed bool
}

// Default is the process-wide queue used by Add and Shutdown.
var Default = New()

func New() *Queue {
	return &Queue{tasks: make([]namedTask, 0, 8)}
}

// Add registers t on the Default queue.
func Add(t Task) { Default.Add(t) }

// AddNamed registers t on the Default queue under name, used in logs.
func AddNamed(name string, t Task) { Default.AddNamed(name, t) }

// Shutdown drains the Default queue.
func Shutdown(ctx context.Context) error { return Default.Shutdown(ctx) }

// Add registers a task to be run on Shutdown.
// If t is nil or shutdown has already started, Add does nothing.
func (q *Queue) Add(t Task) {
	q.AddNamed("", t)
}

func (q *Queue) AddNamed(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, namedTask{name: name, run: t})
}

// Len reports how many tasks are pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Shutdown drains all registered tasks in LIFO order. Calls after the first
// are no-ops.
//
// If ctx is done mid-drain, Shutdown stops early and returns the context
// error joined with any task errors so far.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := runTask(ctx, tasks[i])
		if err != nil {
			slog.ErrorContext(ctx, "shutdown task failed", "task", tasks[i].name, "error", err)

			errs = append(errs, err)

			continue
		}

		if tasks[i].name != "" {
			slog.DebugContext(ctx, "shutdown task done", "task", tasks[i].name)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t namedTask) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task: %v", r)
		}
	}()

	err = t.run(ctx)
	if err != nil && t.name != "" {
		return fmt.Errorf("%s: %w", t.name, err)
	}

	return err
}
