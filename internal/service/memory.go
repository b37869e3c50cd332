package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/memory"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/store"
)

// MaxHistory caps History results.
const MaxHistory = 500

// WorkingSetResult is a working set write and the cards it woke.
type WorkingSetResult struct {
	WorkingSet memory.WorkingSet `json:"working_set"`
	Changed    []string          `json:"changed"`
	Woken      []uuid.UUID       `json:"woken"`
}

// SummaryResult is a summary write and the cards it woke.
type SummaryResult struct {
	Summary memory.Summary `json:"summary"`
	Woken   []uuid.UUID    `json:"woken"`
}

// MemoryChangeEvent is the payload of memory.change.
type MemoryChangeEvent struct {
	Key   string      `json:"key"`
	Woken []uuid.UUID `json:"woken"`
}

// WorkingSet implements CardService.WorkingSet
func (s *cardServiceImpl) WorkingSet(_ context.Context) memory.WorkingSet {
	return s.memory.WorkingSet()
}

// UpdateWorkingSet implements CardService.UpdateWorkingSet
func (s *cardServiceImpl) UpdateWorkingSet(ctx context.Context, u memory.Update) WorkingSetResult {
	ws, changed := s.memory.UpdateWorkingSet(u)
	woken := s.memoryChanged(ctx, changed...)
	return WorkingSetResult{WorkingSet: ws, Changed: changed, Woken: woken}
}

// Summary implements CardService.Summary
func (s *cardServiceImpl) Summary(_ context.Context, key string) (memory.Summary, error) {
	sum, ok := s.memory.Summary(key)
	if !ok {
		return memory.Summary{}, NewServiceError("summary", "summary not found", store.ErrNotFound)
	}
	return sum, nil
}

// PutSummary implements CardService.PutSummary
func (s *cardServiceImpl) PutSummary(ctx context.Context, key, text string) (SummaryResult, error) {
	sum, changed, err := s.memory.PutSummary(key, text)
	if err != nil {
		return SummaryResult{}, NewServiceError("put_summary", "invalid key",
			domain.NewValidationError("key", "is required", domain.ErrValidation))
	}
	res := SummaryResult{Summary: sum, Woken: []uuid.UUID{}}
	if changed {
		res.Woken = s.memoryChanged(ctx, sum.Key)
	}
	return res, nil
}

// memoryChanged wakes the cards waiting on each key and publishes one
// memory.change per key.
func (s *cardServiceImpl) memoryChanged(ctx context.Context, keys ...string) []uuid.UUID {
	woken := []uuid.UUID{}
	for _, key := range keys {
		ids, _ := s.SignalAll(ctx, domain.MemoryChangeCondition(key))
		s.publish(ctx, events.MemoryChange, MemoryChangeEvent{Key: key, Woken: ids})
		woken = append(woken, ids...)
	}
	return woken
}

// SignalAll implements CardService.SignalAll
func (s *cardServiceImpl) SignalAll(ctx context.Context, signal domain.WakeCondition) ([]uuid.UUID, error) {
	if err := validateSignal(signal); err != nil {
		return nil, NewServiceError("signal", "invalid signal", err)
	}

	woken := []uuid.UUID{}
	for _, id := range s.scheduler.Matching(signal) {
		unlock := s.locks.Lock(id)
		// The card may have woken since Matching released the scheduler.
		if s.scheduler.Matches(id, signal) {
			if _, ok := s.unparkLocked(ctx, id, string(signal.Type)); ok {
				woken = append(woken, id)
			}
		}
		unlock()
	}
	if len(woken) > 0 {
		logger.FromContextOrDefault(ctx, s.logger).Info("signal woke parked cards",
			slog.String("type", string(signal.Type)),
			slog.Int("count", len(woken)))
	}
	return woken, nil
}

// History implements CardService.History
func (s *cardServiceImpl) History(ctx context.Context, id uuid.UUID, limit int) ([]store.QueueEvent, error) {
	if !s.persist.enabled() {
		return nil, NewServiceError("history", "no store configured", ErrFeatureDisabled)
	}
	if limit <= 0 || limit > MaxHistory {
		limit = 100
	}
	history, err := s.persist.store.ListQueueEvents(ctx, id, limit)
	if err != nil {
		return nil, NewServiceError("history", "failed to read card history", err)
	}
	if history == nil {
		history = []store.QueueEvent{}
	}
	return history, nil
}
