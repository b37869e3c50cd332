package task

import (
	"context"

	"github.com/google/uuid"
)

// Persistence task types, used in logs and metrics.
const (
	TaskTypeSaveCard     = "save_card"
	TaskTypeSaveParked   = "save_parked"
	TaskTypeSaveUnparked = "save_unparked"
	TaskTypeLinkThread   = "link_thread"
	TaskTypeAppendEvent  = "append_queue_event"
)

// Task is one unit of deferred store work.
type Task interface {
	ID() uuid.UUID
	Type() string
	// Payload is informational; Execute carries everything it needs.
	Payload() []byte
	Execute(ctx context.Context) error
}

// TaskQueueReader is the consuming side of a queue.
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// Submitter is the write side of a TaskRunner.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// FuncTask adapts a closure to Task.
type FuncTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	fn       func(ctx context.Context) error
}

// NewFuncTask creates a task of the given type that runs fn.
func NewFuncTask(taskType string, payload []byte, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: uuid.New(), taskType: taskType, payload: payload, fn: fn}
}

func (t *FuncTask) ID() uuid.UUID                     { return t.id }
func (t *FuncTask) Type() string                      { return t.taskType }
func (t *FuncTask) Payload() []byte                   { return t.payload }
func (t *FuncTask) Execute(ctx context.Context) error { return t.fn(ctx) }
