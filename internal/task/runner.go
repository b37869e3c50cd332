package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// DrainTimeout bounds how long Stop waits for queued tasks to finish
	// If zero, defaults to 5 seconds
	DrainTimeout time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:  2,
		QueueSize:    100,
		DrainTimeout: 5 * time.Second,
	}
}

// ErrRunnerNotStarted is returned by Submit before Start.
var ErrRunnerNotStarted = errors.New("task runner not started")

// TaskRunner manages background task processing. Submit never blocks: when
// the queue is full the task is rejected with ErrQueueFull.
type TaskRunner struct {
	queue  *TaskQueue
	pool   *WorkerPool
	config TaskRunnerConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool

	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultTaskRunnerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}
	logger = logger.With("component", "task_runner")

	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)

	r := &TaskRunner{
		queue:  queue,
		pool:   pool,
		config: config,
		logger: logger,
	}
	pool.SetErrorHandler(func(task Task, err error) {
		r.mu.Lock()
		handler := r.errHandler
		r.mu.Unlock()
		if handler != nil {
			handler(task, err)
		}
	})
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errHandler = handler
}

// Submit adds a new task to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return ErrRunnerNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to submit %s task: %w", task.Type(), err)
	}
	return nil
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("task runner already started")
	}
	r.started = true
	r.pool.Start()
	return nil
}

// Stop closes the queue, lets workers finish what was already queued for up
// to DrainTimeout, then cancels anything still running.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	pending := r.queue.Len()
	r.queue.Close()

	done := make(chan struct{})
	go func() {
		r.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner drained", "pending_at_stop", pending)
	case <-time.After(r.config.DrainTimeout):
		r.logger.Warn("task runner drain timed out, cancelling workers",
			"pending", r.queue.Len())
		r.pool.Stop()
	}
}

type panicError struct {
	value interface{}
}

func (e panicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.value)
}
