package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by Enqueue.
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is a bounded FIFO of tasks. Enqueue never blocks: a full queue
// rejects the task so request paths are not slowed by persistence.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  chan Task
	closed bool
	logger *slog.Logger
}

// NewTaskQueue creates a queue holding up to size tasks.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{tasks: make(chan Task, size), logger: logger}
}

// Enqueue adds task, or returns ErrQueueFull or ErrQueueClosed.
func (q *TaskQueue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued",
			slog.String("task_type", task.Type()),
			slog.Int("pending", len(q.tasks)))
		return nil
	default:
		return fmt.Errorf("%w: %d tasks pending", ErrQueueFull, cap(q.tasks))
	}
}

// Close stops intake. Queued tasks stay readable until drained.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed", slog.Int("pending", len(q.tasks)))
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// GetChannel returns the receive side consumed by workers.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}
