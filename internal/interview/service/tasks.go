package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

var errPanicked = errors.New("background task panicked")

// Task is a handle on background work started by a request.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// TaskGroup runs background work that outlives the request which started it.
// Tasks keep the request's values but not its cancellation.
type TaskGroup struct {
	wg       sync.WaitGroup
	stopping chan struct{}
	once     sync.Once
}

func NewTaskGroup() *TaskGroup {
	return &TaskGroup{stopping: make(chan struct{})}
}

// Go runs fn in the background.
func (g *TaskGroup) Go(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	taskCtx := context.WithoutCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error(taskCtx, "background task panicked", zap.String("task", name), zap.Any("panic", r))
				task.err = errPanicked
			}
		}()

		task.err = fn(taskCtx)
		if task.err != nil {
			logger.Warn(taskCtx, "background task failed", zap.String("task", name), zap.Error(task.err))
			return
		}
		logger.Debug(taskCtx, "background task finished", zap.String("task", name))
	}()
	return task
}

// Sleep waits for d. It returns false when the group starts shutting down
// before d has elapsed.
func (g *TaskGroup) Sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-g.stopping:
		return false
	}
}

// Close wakes sleeping tasks and waits for every task to finish or ctx to end.
func (g *TaskGroup) Close(ctx context.Context) error {
	g.once.Do(func() { close(g.stopping) })
	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
