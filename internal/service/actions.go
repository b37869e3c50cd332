package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/store"
)

// ParkActionPayload is the body accepted by the park action. Minutes is used
// when WakeTime is zero.
type ParkActionPayload struct {
	WakeTime   time.Time              `json:"wake_time"`
	Minutes    int                    `json:"minutes,omitempty"`
	Reason     string                 `json:"reason"`
	Conditions []domain.WakeCondition `json:"conditions,omitempty"`
}

// outcome is the status an action moves a card to.
type outcome int

const (
	outcomeNone outcome = iota
	outcomeComplete
	outcomeCancel
	outcomePark
	outcomeBreak
	outcomeResume
)

var actionOutcomes = map[domain.Action]outcome{
	domain.ActionCommit:              outcomeComplete,
	domain.ActionRespondNow:          outcomeComplete,
	domain.ActionProcessBatch:        outcomeComplete,
	domain.ActionArchiveAll:          outcomeComplete,
	domain.ActionUnsubscribeAll:      outcomeComplete,
	domain.ActionDeclineRespectfully: outcomeCancel,
	domain.ActionBlockSender:         outcomeCancel,
	domain.ActionPark:                outcomePark,
	domain.ActionRespondAtBreak:      outcomeBreak,
	domain.ActionResume:              outcomeResume,
}

// PerformAction implements CardService.PerformAction
func (s *cardServiceImpl) PerformAction(
	ctx context.Context,
	id uuid.UUID,
	name string,
	payload json.RawMessage,
) (domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	action, err := domain.ParseAction(name)
	if err != nil {
		return domain.Card{}, NewServiceError("perform_action", "unknown action", err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	card, ok := s.lookup(ctx, id)
	if !ok {
		return domain.Card{}, NewServiceError("perform_action", "card not found", store.ErrCardNotFound)
	}
	if card.Status.Terminal() {
		return domain.Card{}, NewServiceError("perform_action", "card is closed", ErrCardClosed)
	}
	if !card.Allows(action) {
		return domain.Card{}, NewServiceError("perform_action", string(action), ErrActionNotPermitted)
	}
	s.metrics.CardAction(string(action))

	log.Info("performing card action",
		slog.String("card_id", id.String()),
		slog.String("action", string(action)))

	switch actionOutcomes[action] {
	case outcomeComplete:
		return s.closeLocked(ctx, card, domain.StatusCompleted), nil
	case outcomeCancel:
		return s.closeLocked(ctx, card, domain.StatusCancelled), nil
	case outcomePark:
		in, err := parkInputFrom(payload, s.now())
		if err != nil {
			return domain.Card{}, NewServiceError("perform_action", "invalid park payload", err)
		}
		parked, err := s.parkLocked(ctx, card, in)
		if err != nil {
			return domain.Card{}, NewServiceError("perform_action", "invalid park payload", err)
		}
		return parked, nil
	case outcomeBreak:
		parked, err := s.parkLocked(ctx, card, ParkInput{
			WakeTime: s.now().Add(s.config.BreakDelay),
			Reason:   "respond at next break",
		})
		if err != nil {
			return domain.Card{}, NewServiceError("perform_action", "failed to defer card", err)
		}
		return parked, nil
	case outcomeResume:
		if resumed, ok := s.unparkLocked(ctx, id, TriggerManual); ok {
			return resumed, nil
		}
		return card, nil
	}
	return card, nil
}

// closeLocked moves a card to a terminal status. The caller holds the card
// lock.
func (s *cardServiceImpl) closeLocked(ctx context.Context, card domain.Card, status domain.Status) domain.Card {
	card.Status = status
	s.registry.Put(card)
	s.publish(ctx, events.CardUpdate, CardPatchEvent{ID: card.ID, Patch: card})
	s.persist.saveCard(ctx, card)
	return card
}

func parkInputFrom(payload json.RawMessage, now time.Time) (ParkInput, error) {
	var body ParkActionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return ParkInput{}, domain.NewValidationError("payload", "is not valid JSON", domain.ErrInvalidFormat)
		}
	}
	if body.WakeTime.IsZero() && body.Minutes > 0 {
		body.WakeTime = now.Add(time.Duration(body.Minutes) * time.Minute)
	}
	if body.WakeTime.IsZero() {
		return ParkInput{}, domain.NewValidationError("wake_time", "is required", domain.ErrValidation)
	}
	return ParkInput{WakeTime: body.WakeTime, Reason: body.Reason, Conditions: body.Conditions}, nil
}
