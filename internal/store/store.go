package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueEvent is one entry in the card lifecycle log.
type QueueEvent struct {
	ID        int64           `json:"id"`
	CardID    uuid.UUID       `json:"card_id"`
	Event     string          `json:"event"`
	Actor     string          `json:"actor"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CardStore persists card snapshots.
type CardStore interface {
	// SaveCard inserts or replaces the snapshot for id. payload is the card's
	// JSON encoding.
	SaveCard(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error

	// LoadCard returns the last saved payload for id.
	// Returns ErrCardNotFound if nothing was saved.
	LoadCard(ctx context.Context, id uuid.UUID) ([]byte, error)
}

// WakeStore records when parked cards are due.
type WakeStore interface {
	// SaveWake inserts or replaces the wake time for a card.
	SaveWake(ctx context.Context, cardID uuid.UUID, wakeAt time.Time, reason string) error

	// DeleteWake removes the wake entry for a card. Missing entries are not
	// an error.
	DeleteWake(ctx context.Context, cardID uuid.UUID) error
}

// ParkStore keeps a parked card's snapshot and wake entry in step.
type ParkStore interface {
	// SaveParked writes the snapshot and upserts the wake in one transaction.
	SaveParked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte, wakeAt time.Time, reason string) error

	// SaveUnparked writes the snapshot and removes the wake in one
	// transaction.
	SaveUnparked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error
}

// ThreadStore maps chat threads to the cards they discuss.
type ThreadStore interface {
	// LinkThread associates a channel thread with a card, replacing any
	// previous link for that thread.
	LinkThread(ctx context.Context, cardID uuid.UUID, channel, threadTS string) error

	// FindCardByThread returns the card linked to a thread.
	// Returns ErrThreadNotFound when no link exists.
	FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, error)
}

// QueueEventStore is the append-only lifecycle log.
type QueueEventStore interface {
	// AppendQueueEvent adds an entry to the log.
	AppendQueueEvent(ctx context.Context, event QueueEvent) error

	// ListQueueEvents returns up to limit entries for a card, oldest first.
	ListQueueEvents(ctx context.Context, cardID uuid.UUID, limit int) ([]QueueEvent, error)
}

// Store bundles every persistence collaborator behind one handle.
type Store interface {
	CardStore
	WakeStore
	ParkStore
	ThreadStore
	QueueEventStore

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
