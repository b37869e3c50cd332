package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/store"
)

const (
	upsertWakeSQL = `
INSERT INTO card_wakes (card_id, wake_at, reason, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (card_id) DO UPDATE
SET wake_at = EXCLUDED.wake_at,
    reason = EXCLUDED.reason,
    updated_at = NOW()`

	deleteWakeSQL = `DELETE FROM card_wakes WHERE card_id = $1`

	upsertThreadSQL = `
INSERT INTO slack_threads (channel, thread_ts, card_id, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (channel, thread_ts) DO UPDATE
SET card_id = EXCLUDED.card_id`

	selectThreadSQL = `SELECT card_id FROM slack_threads WHERE channel = $1 AND thread_ts = $2`

	insertQueueEventSQL = `
INSERT INTO queue_events (card_id, event, actor, meta, created_at)
VALUES ($1, $2, $3, $4, $5)`

	selectQueueEventsSQL = `
SELECT id, card_id, event, actor, meta, created_at
FROM queue_events
WHERE card_id = $1
ORDER BY id
LIMIT $2`
)

// SaveWake implements store.WakeStore.
func (s *Store) SaveWake(ctx context.Context, cardID uuid.UUID, wakeAt time.Time, reason string) error {
	if _, err := s.db.ExecContext(ctx, upsertWakeSQL, cardID, wakeAt.UTC(), reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to save wake",
			slog.String("card_id", cardID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("wake", "save", "failed to save wake", MapError(err))
	}
	return nil
}

// DeleteWake implements store.WakeStore.
func (s *Store) DeleteWake(ctx context.Context, cardID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, deleteWakeSQL, cardID); err != nil {
		return store.NewStoreError("wake", "delete", "failed to delete wake", MapError(err))
	}
	return nil
}

// LinkThread implements store.ThreadStore.
func (s *Store) LinkThread(ctx context.Context, cardID uuid.UUID, channel, threadTS string) error {
	if _, err := s.db.ExecContext(ctx, upsertThreadSQL, channel, threadTS, cardID); err != nil {
		return store.NewStoreError("thread", "link", "failed to link thread", MapError(err))
	}
	return nil
}

// FindCardByThread implements store.ThreadStore.
func (s *Store) FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, selectThreadSQL, channel, threadTS).Scan(&id)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return uuid.Nil, store.ErrThreadNotFound
		}
		return uuid.Nil, store.NewStoreError("thread", "find", "failed to find thread", mapped)
	}
	return id, nil
}

// AppendQueueEvent implements store.QueueEventStore.
func (s *Store) AppendQueueEvent(ctx context.Context, event store.QueueEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var meta interface{}
	if len(event.Meta) > 0 {
		meta = []byte(event.Meta)
	}
	_, err := s.db.ExecContext(ctx, insertQueueEventSQL,
		event.CardID, event.Event, event.Actor, meta, createdAt.UTC())
	if err != nil {
		return store.NewStoreError("queue_event", "append", "failed to append queue event", MapError(err))
	}
	return nil
}

// ListQueueEvents implements store.QueueEventStore.
func (s *Store) ListQueueEvents(ctx context.Context, cardID uuid.UUID, limit int) ([]store.QueueEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectQueueEventsSQL, cardID, limit)
	if err != nil {
		return nil, store.NewStoreError("queue_event", "list", "failed to list queue events", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []store.QueueEvent
	for rows.Next() {
		var (
			e    store.QueueEvent
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.CardID, &e.Event, &e.Actor, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue event: %w", MapError(err))
		}
		if len(meta) > 0 {
			e.Meta = meta
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("queue_event", "list", "failed to read queue events", MapError(err))
	}
	return out, nil
}
