package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/store"
)

// SystemActor is recorded for transitions without an authenticated caller.
const SystemActor = "system"

type actorKey struct{}

// WithActor records who is driving the operations made with ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// auditHandler appends every card lifecycle event to the queue event log.
type auditHandler struct {
	persist *persister
}

// HandleEvent implements events.EventHandler.
func (h *auditHandler) HandleEvent(ctx context.Context, event events.Event) error {
	var ref struct {
		ID uuid.UUID `json:"id"`
	}
	if err := event.UnmarshalPayload(&ref); err != nil || ref.ID == uuid.Nil {
		// Altitude changes and heartbeats are not tied to a card.
		return nil
	}
	h.persist.appendEvent(ctx, store.QueueEvent{
		CardID:    ref.ID,
		Event:     event.Name,
		Actor:     ActorFromContext(ctx),
		Meta:      json.RawMessage(event.Payload),
		CreatedAt: event.At,
	})
	return nil
}
