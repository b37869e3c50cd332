// Package parking defers cards until a wake condition fires and returns them
// to the feed afterwards.
package parking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/store"
)

var (
	// ErrNotParked is returned when an operation targets a card the scheduler
	// is not tracking.
	ErrNotParked = fmt.Errorf("%w: parked card", store.ErrNotFound)

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("parking scheduler already started")
)

// Config holds scheduler settings.
type Config struct {
	// TickInterval is how often due wake times are checked.
	TickInterval time.Duration
}

// DefaultConfig returns a Config with a 30 second tick.
func DefaultConfig() Config {
	return Config{TickInterval: 30 * time.Second}
}

// WakeFunc is invoked by the wake loop once for each due card id.
type WakeFunc func(ctx context.Context, id uuid.UUID)

type entry struct {
	card   domain.Card
	wakeAt time.Time
	reason string
}

// Scheduler tracks parked cards keyed by id and wakes them when their time
// comes. All methods are safe for concurrent use.
type Scheduler struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry

	config Config
	logger *slog.Logger
	now    func() time.Time

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. A non-positive tick interval falls back to the
// default.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		logger.Warn("invalid tick interval specified, using default",
			"specified_interval", cfg.TickInterval,
			"default_interval", DefaultConfig().TickInterval)
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	s := &Scheduler{
		entries: make(map[uuid.UUID]*entry),
		config:  cfg,
		logger:  logger.With(slog.String("component", "parking_scheduler")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Park replaces the card's content with a parked payload, records when it
// should wake, and tracks it under the card's id. Parking an id that is
// already tracked replaces the previous entry. The pre-park content is kept
// so Unpark can restore it.
func (s *Scheduler) Park(card domain.Card, wakeAt time.Time, reason string, extra ...domain.WakeCondition) (uuid.UUID, error) {
	if card.ID == uuid.Nil {
		return uuid.Nil, domain.NewValidationError("id", "cannot be empty", domain.ErrValidation)
	}
	if wakeAt.IsZero() {
		return uuid.Nil, domain.NewValidationError("wake_time", "is required", domain.ErrValidation)
	}
	if card.Content == nil {
		return uuid.Nil, fmt.Errorf("%w: card has no content", domain.ErrInvalidContent)
	}
	conditions := []domain.WakeCondition{domain.TimeCondition(wakeAt)}
	for _, c := range extra {
		if c.Type == domain.WakeTime {
			return uuid.Nil, fmt.Errorf("%w: wake time is set by the park call", domain.ErrInvalidWakeCondition)
		}
		if err := c.Validate(); err != nil {
			return uuid.Nil, err
		}
		conditions = append(conditions, c)
	}

	parked := card.Clone()
	prior := &domain.ParkSnapshot{
		Altitude: parked.Altitude,
		Actions:  parked.Actions,
		Content:  parked.Content,
	}
	if already, ok := parked.Content.(domain.ParkedContent); ok {
		prior = already.Prior
	}
	parked.Content = domain.ParkedContent{
		OriginalCardID: card.ID,
		WakeTime:       wakeAt,
		Reason:         reason,
		Conditions:     conditions,
		Prior:          prior,
	}
	parked.Status = domain.StatusParked
	parked.Actions = domain.DefaultActions(domain.KindParked)

	s.mu.Lock()
	s.entries[card.ID] = &entry{card: parked, wakeAt: wakeAt, reason: reason}
	s.mu.Unlock()

	s.logger.Debug("card parked",
		"card_id", card.ID,
		"wake_at", wakeAt,
		"conditions", len(conditions))
	return card.ID, nil
}

// Unpark stops tracking id and returns the card restored to active with its
// pre-park content. It reports false when id is not tracked, so repeated
// calls are harmless.
func (s *Scheduler) Unpark(id uuid.UUID) (domain.Card, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.Card{}, false
	}

	card := e.card
	card.Status = domain.StatusActive
	parked, _ := card.Content.(domain.ParkedContent)
	if parked.Prior != nil && parked.Prior.Content != nil {
		card.Altitude = parked.Prior.Altitude
		card.Actions = parked.Prior.Actions
		card.Content = parked.Prior.Content
	} else {
		card.Content = domain.DoNowContent{Preview: card.Title}
		card.Actions = domain.DefaultActions(domain.KindDoNow)
	}

	s.logger.Debug("card unparked", "card_id", id)
	return card, true
}

// Snooze pushes the wake time of a tracked card by minutes, keeping the
// parked payload and its time condition in step.
func (s *Scheduler) Snooze(id uuid.UUID, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotParked
	}
	e.wakeAt = e.wakeAt.Add(time.Duration(minutes) * time.Minute)

	if parked, ok := e.card.Content.(domain.ParkedContent); ok {
		parked.Conditions = append([]domain.WakeCondition(nil), parked.Conditions...)
		parked.WakeTime = e.wakeAt
		for i, c := range parked.Conditions {
			if c.Type == domain.WakeTime {
				parked.Conditions[i].At = e.wakeAt
			}
		}
		e.card.Content = parked
	}
	return nil
}

// Get returns the parked form of a tracked card.
func (s *Scheduler) Get(id uuid.UUID) (domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Card{}, false
	}
	return e.card.Clone(), true
}

// WakeAt returns the scheduled wake time of a tracked card.
func (s *Scheduler) WakeAt(id uuid.UUID) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.wakeAt, true
}

// Count returns the number of tracked cards.
func (s *Scheduler) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Items projects every tracked card, soonest wake first.
func (s *Scheduler) Items() []domain.ParkedItem {
	s.mu.RLock()
	items := make([]domain.ParkedItem, 0, len(s.entries))
	for id, e := range s.entries {
		item := domain.ParkedItem{
			ID:           id,
			Title:        e.card.Title,
			WakeTime:     e.wakeAt,
			Altitude:     e.card.Altitude,
			OriginCardID: id,
			Context:      e.reason,
		}
		if parked, ok := e.card.Content.(domain.ParkedContent); ok {
			item.OriginCardID = parked.OriginalCardID
			item.WakeConditions = append([]domain.WakeCondition(nil), parked.Conditions...)
		}
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].WakeTime.Equal(items[j].WakeTime) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].WakeTime.Before(items[j].WakeTime)
	})
	return items
}

// Due returns the ids whose wake time is at or before now, soonest first.
func (s *Scheduler) Due(now time.Time) []uuid.UUID {
	type due struct {
		id uuid.UUID
		at time.Time
	}
	s.mu.RLock()
	var found []due
	for id, e := range s.entries {
		if !e.wakeAt.After(now) {
			found = append(found, due{id: id, at: e.wakeAt})
		}
	}
	s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	ids := make([]uuid.UUID, len(found))
	for i, d := range found {
		ids[i] = d.id
	}
	return ids
}

// Matches reports whether a tracked card declares a wake condition that the
// signal satisfies.
func (s *Scheduler) Matches(id uuid.UUID, signal domain.WakeCondition) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	parked, ok := e.card.Content.(domain.ParkedContent)
	if !ok {
		return false
	}
	for _, c := range parked.Conditions {
		if c.Matches(signal) {
			return true
		}
	}
	return false
}

// Matching returns the parked ids with a declared condition satisfied by
// signal, soonest wake first.
func (s *Scheduler) Matching(signal domain.WakeCondition) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*entry
	for _, e := range s.entries {
		parked, ok := e.card.Content.(domain.ParkedContent)
		if !ok {
			continue
		}
		for _, c := range parked.Conditions {
			if c.Matches(signal) {
				hits = append(hits, e)
				break
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].wakeAt.Before(hits[j].wakeAt) })

	ids := make([]uuid.UUID, len(hits))
	for i, e := range hits {
		ids[i] = e.card.ID
	}
	return ids
}

// Start launches the wake loop. On every tick each due id is passed to fire
// exactly once; a nil fire unparks the card directly.
func (s *Scheduler) Start(fire WakeFunc) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	if fire == nil {
		fire = func(_ context.Context, id uuid.UUID) { s.Unpark(id) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx, fire)

	s.logger.Info("parking scheduler started", "tick_interval", s.config.TickInterval)
	return nil
}

// Stop halts the wake loop and waits for it to exit. Parked cards stay
// tracked.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.running = false
	s.logger.Info("parking scheduler stopped", "parked_count", s.Count())
}

func (s *Scheduler) loop(ctx context.Context, fire WakeFunc) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wakeDue(ctx, fire)
		}
	}
}

// wakeDue fires every card due at the current clock reading and returns how
// many were fired.
func (s *Scheduler) wakeDue(ctx context.Context, fire WakeFunc) int {
	fired := 0
	for _, id := range s.Due(s.now()) {
		if ctx.Err() != nil {
			break
		}
		fire(ctx, id)
		fired++
	}
	if fired > 0 {
		s.logger.Info("woke parked cards", "count", fired)
	}
	return fired
}
