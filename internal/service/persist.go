package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/redact"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/phrazzld/cardfeed/internal/task"
)

// persister writes snapshots through the task runner. Every method returns
// immediately; failures are logged and counted.
//
// Snapshot writes for one card are numbered when submitted. Workers may run
// them in any order, so a write older than one already applied is skipped
// and the stored snapshot always follows the latest submission.
type persister struct {
	store   store.Store
	tasks   task.Submitter
	metrics Metrics
	logger  *slog.Logger

	writes  *keyedMutex
	seqMu   sync.Mutex
	issued  map[uuid.UUID]uint64
	applied map[uuid.UUID]uint64
}

func newPersister(s store.Store, tasks task.Submitter, m Metrics, logger *slog.Logger) *persister {
	return &persister{
		store:   s,
		tasks:   tasks,
		metrics: m,
		logger:  logger,
		writes:  newKeyedMutex(),
		issued:  make(map[uuid.UUID]uint64),
		applied: make(map[uuid.UUID]uint64),
	}
}

func (p *persister) enabled() bool {
	return p.store != nil
}

// submit queues fn. Without a task runner fn runs inline.
func (p *persister) submit(ctx context.Context, taskType string, cardID uuid.UUID, fn func(context.Context) error) {
	if !p.enabled() {
		return
	}
	t := task.NewFuncTask(taskType, []byte(cardID.String()), fn)
	if p.tasks == nil {
		if err := t.Execute(ctx); err != nil {
			p.failed(ctx, taskType, cardID, err)
		}
		return
	}
	if err := p.tasks.Submit(ctx, t); err != nil {
		p.failed(ctx, taskType, cardID, err)
	}
}

// submitSnapshot queues a write of card id's snapshot, skipping it at run
// time when a newer snapshot of the same card has already been written.
func (p *persister) submitSnapshot(ctx context.Context, taskType string, id uuid.UUID, write func(context.Context) error) {
	p.seqMu.Lock()
	p.issued[id]++
	seq := p.issued[id]
	p.seqMu.Unlock()

	p.submit(ctx, taskType, id, func(ctx context.Context) error {
		unlock := p.writes.Lock(id)
		defer unlock()

		p.seqMu.Lock()
		stale := seq <= p.applied[id]
		p.seqMu.Unlock()
		if stale {
			p.logger.DebugContext(ctx, "skipping superseded snapshot write",
				slog.String("task_type", taskType),
				slog.String("card_id", id.String()))
			return nil
		}

		if err := write(ctx); err != nil {
			return err
		}
		p.seqMu.Lock()
		p.applied[id] = seq
		p.seqMu.Unlock()
		return nil
	})
}

func (p *persister) failed(ctx context.Context, taskType string, cardID uuid.UUID, err error) {
	p.metrics.PersistFailed(taskType)
	p.logger.WarnContext(ctx, "persistence failed, continuing in memory",
		slog.String("task_type", taskType),
		slog.String("card_id", cardID.String()),
		redact.ErrorAttr(err))
}

func (p *persister) saveCard(ctx context.Context, card domain.Card) {
	if !p.enabled() {
		return
	}
	payload, err := json.Marshal(card)
	if err != nil {
		p.failed(ctx, task.TaskTypeSaveCard, card.ID, err)
		return
	}
	id, kind, status := card.ID, string(card.Kind()), string(card.Status)
	p.submitSnapshot(ctx, task.TaskTypeSaveCard, id, func(ctx context.Context) error {
		return p.store.SaveCard(ctx, id, kind, status, payload)
	})
}

// saveParked writes the parked snapshot and its wake atomically.
func (p *persister) saveParked(ctx context.Context, card domain.Card, wakeAt time.Time, reason string) {
	if !p.enabled() {
		return
	}
	payload, err := json.Marshal(card)
	if err != nil {
		p.failed(ctx, task.TaskTypeSaveParked, card.ID, err)
		return
	}
	id, kind, status := card.ID, string(card.Kind()), string(card.Status)
	p.submitSnapshot(ctx, task.TaskTypeSaveParked, id, func(ctx context.Context) error {
		return p.store.SaveParked(ctx, id, kind, status, payload, wakeAt, reason)
	})
}

// saveUnparked writes the restored snapshot and drops its wake atomically.
func (p *persister) saveUnparked(ctx context.Context, card domain.Card) {
	if !p.enabled() {
		return
	}
	payload, err := json.Marshal(card)
	if err != nil {
		p.failed(ctx, task.TaskTypeSaveUnparked, card.ID, err)
		return
	}
	id, kind, status := card.ID, string(card.Kind()), string(card.Status)
	p.submitSnapshot(ctx, task.TaskTypeSaveUnparked, id, func(ctx context.Context) error {
		return p.store.SaveUnparked(ctx, id, kind, status, payload)
	})
}

func (p *persister) linkThread(ctx context.Context, id uuid.UUID, channel, threadTS string) {
	p.submit(ctx, task.TaskTypeLinkThread, id, func(ctx context.Context) error {
		return p.store.LinkThread(ctx, id, channel, threadTS)
	})
}

func (p *persister) appendEvent(ctx context.Context, event store.QueueEvent) {
	p.submit(ctx, task.TaskTypeAppendEvent, event.CardID, func(ctx context.Context) error {
		return p.store.AppendQueueEvent(ctx, event)
	})
}

// loadCard reads a snapshot synchronously. Errors other than not found are
// logged and treated as a miss.
func (p *persister) loadCard(ctx context.Context, id uuid.UUID) (domain.Card, bool) {
	if !p.enabled() {
		return domain.Card{}, false
	}
	payload, err := p.store.LoadCard(ctx, id)
	if err != nil {
		if !store.IsNotFoundError(err) {
			p.logger.WarnContext(ctx, "failed to load card snapshot",
				slog.String("card_id", id.String()),
				redact.ErrorAttr(err))
		}
		return domain.Card{}, false
	}
	var card domain.Card
	if err := json.Unmarshal(payload, &card); err != nil {
		p.logger.WarnContext(ctx, "stored card snapshot does not decode",
			slog.String("card_id", id.String()),
			redact.ErrorAttr(err))
		return domain.Card{}, false
	}
	return card, true
}
