package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
)

// CardEvent is the payload of card.new and breakin.arrive.
type CardEvent struct {
	ID   uuid.UUID   `json:"id"`
	Card domain.Card `json:"card"`
}

// CardPatchEvent is the payload of card.update.
type CardPatchEvent struct {
	ID    uuid.UUID   `json:"id"`
	Patch domain.Card `json:"patch"`
}

// ParkEvent is the payload of card.park.
type ParkEvent struct {
	ID       uuid.UUID `json:"id"`
	WakeTime time.Time `json:"wake_time"`
	Reason   string    `json:"reason"`
}

// WakeEvent is the payload of wake.fire.
type WakeEvent struct {
	ID      uuid.UUID   `json:"id"`
	Trigger string      `json:"trigger"`
	Card    domain.Card `json:"card"`
}

// HydrateEvent is the payload of queue.hydrate.
type HydrateEvent struct {
	Cards      []domain.Card `json:"cards"`
	AfterCount int           `json:"afterCount"`
}
