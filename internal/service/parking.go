package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/store"
)

// Wake triggers recorded in metrics and wake.fire payloads.
const (
	TriggerTime   = "time"
	TriggerManual = "manual"
)

// Park implements CardService.Park
func (s *cardServiceImpl) Park(ctx context.Context, id uuid.UUID, in ParkInput) (domain.ParkedItem, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	card, ok := s.lookup(ctx, id)
	if !ok {
		return domain.ParkedItem{}, NewServiceError("park", "card not found", store.ErrCardNotFound)
	}
	if card.Status.Terminal() {
		return domain.ParkedItem{}, NewServiceError("park", "card is closed", ErrCardClosed)
	}
	if _, err := s.parkLocked(ctx, card, in); err != nil {
		return domain.ParkedItem{}, NewServiceError("park", "invalid park request", err)
	}
	return s.parkedItem(id), nil
}

// parkLocked parks card and publishes card.park. The caller holds the card
// lock.
func (s *cardServiceImpl) parkLocked(ctx context.Context, card domain.Card, in ParkInput) (domain.Card, error) {
	if _, err := s.scheduler.Park(card, in.WakeTime, in.Reason, in.Conditions...); err != nil {
		return domain.Card{}, err
	}
	parked, _ := s.scheduler.Get(card.ID)
	s.registry.Put(parked)

	s.publish(ctx, events.CardPark, ParkEvent{
		ID:       card.ID,
		WakeTime: in.WakeTime,
		Reason:   in.Reason,
	})
	s.persist.saveParked(ctx, parked, in.WakeTime, in.Reason)
	s.metrics.ParkedChanged(s.scheduler.Count())

	logger.FromContextOrDefault(ctx, s.logger).Info("card parked",
		slog.String("card_id", card.ID.String()),
		slog.Time("wake_at", in.WakeTime))
	return parked, nil
}

// Unpark implements CardService.Unpark
func (s *cardServiceImpl) Unpark(ctx context.Context, id uuid.UUID) (domain.Card, bool) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.unparkLocked(ctx, id, TriggerManual)
}

// unparkLocked returns a parked card to the feed. Manual unparks publish
// card.update, every other trigger publishes wake.fire. The caller holds the
// card lock.
func (s *cardServiceImpl) unparkLocked(ctx context.Context, id uuid.UUID, trigger string) (domain.Card, bool) {
	card, ok := s.scheduler.Unpark(id)
	if !ok {
		return domain.Card{}, false
	}
	s.registry.Put(card)

	if trigger == TriggerManual {
		s.publish(ctx, events.CardUpdate, CardPatchEvent{ID: id, Patch: card})
	} else {
		s.publish(ctx, events.WakeFire, WakeEvent{ID: id, Trigger: trigger, Card: card})
		s.metrics.WakeFired(trigger)
	}
	s.persist.saveUnparked(ctx, card)
	s.metrics.ParkedChanged(s.scheduler.Count())

	logger.FromContextOrDefault(ctx, s.logger).Info("card unparked",
		slog.String("card_id", id.String()),
		slog.String("trigger", trigger))
	return card, true
}

// Wake implements CardService.Wake
func (s *cardServiceImpl) Wake(ctx context.Context, id uuid.UUID) {
	unlock := s.locks.Lock(id)
	defer unlock()
	s.unparkLocked(ctx, id, TriggerTime)
}

// Snooze implements CardService.Snooze
func (s *cardServiceImpl) Snooze(ctx context.Context, id uuid.UUID, minutes int) (domain.ParkedItem, error) {
	if minutes <= 0 {
		return domain.ParkedItem{}, NewServiceError("snooze", "invalid duration",
			domain.NewValidationError("minutes", "must be positive", domain.ErrValidation))
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.scheduler.Snooze(id, minutes); err != nil {
		return domain.ParkedItem{}, NewServiceError("snooze", "card is not parked", err)
	}
	parked, _ := s.scheduler.Get(id)
	s.registry.Put(parked)
	item := s.parkedItem(id)

	s.publish(ctx, events.CardUpdate, CardPatchEvent{ID: id, Patch: parked})
	s.persist.saveParked(ctx, parked, item.WakeTime, item.Context)
	return item, nil
}

// ListParked implements CardService.ListParked
func (s *cardServiceImpl) ListParked(_ context.Context) []domain.ParkedItem {
	return s.scheduler.Items()
}

// Signal implements CardService.Signal
func (s *cardServiceImpl) Signal(ctx context.Context, id uuid.UUID, signal domain.WakeCondition) (bool, error) {
	if err := validateSignal(signal); err != nil {
		return false, NewServiceError("signal", "invalid signal", err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if !s.scheduler.Matches(id, signal) && !s.threadReply(id, signal) {
		return false, nil
	}
	_, woke := s.unparkLocked(ctx, id, string(signal.Type))
	return woke, nil
}

func validateSignal(signal domain.WakeCondition) error {
	if signal.Type == domain.WakeTime {
		return fmt.Errorf("%w: time conditions are evaluated by the wake loop", domain.ErrInvalidWakeCondition)
	}
	return signal.Validate()
}

// threadReply reports whether signal is a reply on a thread linked to card
// id. A linked thread wakes its card whether or not thread_replied was
// declared at park time.
func (s *cardServiceImpl) threadReply(id uuid.UUID, signal domain.WakeCondition) bool {
	return signal.Type == domain.WakeEvent &&
		signal.Event == domain.EventThreadReplied &&
		s.hasThread(id)
}

func (s *cardServiceImpl) parkedItem(id uuid.UUID) domain.ParkedItem {
	for _, item := range s.scheduler.Items() {
		if item.ID == id {
			return item
		}
	}
	return domain.ParkedItem{ID: id}
}
