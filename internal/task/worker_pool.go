package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/cardfeed/internal/redact"
)

// WorkerPool runs persistence tasks from a queue on a fixed set of goroutines.
type WorkerPool struct {
	queue       TaskQueueReader
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger

	// onError sees every failed or panicking task. Nil means log only.
	onError func(task Task, err error)
}

// WorkerPoolConfig sizes a WorkerPool. WorkerCount below 1 becomes 1.
type WorkerPoolConfig struct {
	WorkerCount int
}

// NewWorkerPool creates a pool reading from queue. Call Start to run it.
func NewWorkerPool(queue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	n := config.WorkerCount
	if n < 1 {
		logger.Warn("worker count below 1, running a single worker",
			slog.Int("configured", config.WorkerCount))
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:       queue,
		workerCount: n,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler registers fn for task failures. Call before Start.
func (p *WorkerPool) SetErrorHandler(fn func(task Task, err error)) {
	p.onError = fn
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", slog.Int("worker_count", p.workerCount))
	p.wg.Add(p.workerCount)
	for i := range p.workerCount {
		go p.run(i)
	}
}

// Wait blocks until every worker has exited. Workers exit once the queue
// channel is closed and drained, or after Stop.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Stop cancels the workers without draining the queue and waits for them.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	tasks := p.queue.GetChannel()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				p.logger.Debug("queue drained, worker exiting", slog.Int("worker_id", id))
				return
			}
			p.execute(t, id)
		}
	}
}

func (p *WorkerPool) execute(t Task, workerID int) {
	log := p.logger.With(
		slog.String("task_id", t.ID().String()),
		slog.String("task_type", t.Type()),
		slog.Int("worker_id", workerID),
	)
	fail := func(err error) {
		if p.onError != nil {
			p.onError(t, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", slog.Any("panic", r))
			fail(panicError{value: r})
		}
	}()

	if err := t.Execute(p.ctx); err != nil {
		log.Error("task failed", redact.ErrorAttr(err))
		fail(err)
		return
	}
	log.Debug("task done", slog.Int("payload_bytes", len(t.Payload())))
}
