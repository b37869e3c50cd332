package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/store"
)

const (
	upsertCardSQL = `
INSERT INTO cards (id, kind, status, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET kind = excluded.kind,
    status = excluded.status,
    payload = excluded.payload,
    updated_at = excluded.updated_at`

	selectCardSQL = `SELECT payload FROM cards WHERE id = ?`

	upsertWakeSQL = `
INSERT INTO card_wakes (card_id, wake_at, reason, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (card_id) DO UPDATE
SET wake_at = excluded.wake_at,
    reason = excluded.reason,
    updated_at = excluded.updated_at`

	deleteWakeSQL = `DELETE FROM card_wakes WHERE card_id = ?`

	upsertThreadSQL = `
INSERT INTO slack_threads (channel, thread_ts, card_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (channel, thread_ts) DO UPDATE
SET card_id = excluded.card_id`

	selectThreadSQL = `SELECT card_id FROM slack_threads WHERE channel = ? AND thread_ts = ?`

	insertQueueEventSQL = `
INSERT INTO queue_events (card_id, event, actor, meta, created_at)
VALUES (?, ?, ?, ?, ?)`

	selectQueueEventsSQL = `
SELECT id, card_id, event, actor, meta, created_at
FROM queue_events
WHERE card_id = ?
ORDER BY id
LIMIT ?`
)

// SaveCard implements store.CardStore.
func (s *Store) SaveCard(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	if err := s.saveCard(ctx, s.db, id, kind, status, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to save card",
			slog.String("card_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "save", "failed to save card", MapError(err))
	}
	return nil
}

func (s *Store) saveCard(ctx context.Context, q store.DBTX, id uuid.UUID, kind, status string, payload []byte) error {
	_, err := q.ExecContext(ctx, upsertCardSQL, id.String(), kind, status, string(payload), s.stamp())
	return err
}

// SaveParked implements store.ParkStore.
func (s *Store) SaveParked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte, wakeAt time.Time, reason string) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.saveCard(ctx, tx, id, kind, status, payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, upsertWakeSQL, id.String(), formatTime(wakeAt), reason, s.stamp())
		return err
	})
	if err != nil {
		return store.NewStoreError("card", "park", "failed to save parked card", MapError(err))
	}
	return nil
}

// SaveUnparked implements store.ParkStore.
func (s *Store) SaveUnparked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.saveCard(ctx, tx, id, kind, status, payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, deleteWakeSQL, id.String())
		return err
	})
	if err != nil {
		return store.NewStoreError("card", "unpark", "failed to save unparked card", MapError(err))
	}
	return nil
}

// LoadCard implements store.CardStore.
func (s *Store) LoadCard(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var payload string
	if err := s.db.QueryRowContext(ctx, selectCardSQL, id.String()).Scan(&payload); err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrCardNotFound
		}
		return nil, store.NewStoreError("card", "load", "failed to load card", mapped)
	}
	return []byte(payload), nil
}

// SaveWake implements store.WakeStore.
func (s *Store) SaveWake(ctx context.Context, cardID uuid.UUID, wakeAt time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx, upsertWakeSQL, cardID.String(), formatTime(wakeAt), reason, s.stamp())
	if err != nil {
		return store.NewStoreError("wake", "save", "failed to save wake", MapError(err))
	}
	return nil
}

// DeleteWake implements store.WakeStore.
func (s *Store) DeleteWake(ctx context.Context, cardID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, deleteWakeSQL, cardID.String()); err != nil {
		return store.NewStoreError("wake", "delete", "failed to delete wake", MapError(err))
	}
	return nil
}

// LinkThread implements store.ThreadStore.
func (s *Store) LinkThread(ctx context.Context, cardID uuid.UUID, channel, threadTS string) error {
	_, err := s.db.ExecContext(ctx, upsertThreadSQL, channel, threadTS, cardID.String(), s.stamp())
	if err != nil {
		return store.NewStoreError("thread", "link", "failed to link thread", MapError(err))
	}
	return nil
}

// FindCardByThread implements store.ThreadStore.
func (s *Store) FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, selectThreadSQL, channel, threadTS).Scan(&raw); err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return uuid.Nil, store.ErrThreadNotFound
		}
		return uuid.Nil, store.NewStoreError("thread", "find", "failed to find thread", mapped)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, store.NewStoreError("thread", "find", "stored card id is invalid", err)
	}
	return id, nil
}

// AppendQueueEvent implements store.QueueEventStore.
func (s *Store) AppendQueueEvent(ctx context.Context, event store.QueueEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	var meta interface{}
	if len(event.Meta) > 0 {
		meta = string(event.Meta)
	}
	_, err := s.db.ExecContext(ctx, insertQueueEventSQL,
		event.CardID.String(), event.Event, event.Actor, meta, formatTime(createdAt))
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
	rows, err := s.db.QueryContext(ctx, selectQueueEventsSQL, cardID.String(), limit)
	if err != nil {
		return nil, store.NewStoreError("queue_event", "list", "failed to list queue events", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []store.QueueEvent
	for rows.Next() {
		var (
			e         store.QueueEvent
			rawID     string
			meta      *string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &rawID, &e.Event, &e.Actor, &meta, &createdAt); err != nil {
			return nil, store.NewStoreError("queue_event", "list", "failed to scan queue event", MapError(err))
		}
		if e.CardID, err = uuid.Parse(rawID); err != nil {
			return nil, store.NewStoreError("queue_event", "list", "stored card id is invalid", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, store.NewStoreError("queue_event", "list", "stored timestamp is invalid", err)
		}
		if meta != nil {
			e.Meta = []byte(*meta)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("queue_event", "list", "failed to read queue events", MapError(err))
	}
	return out, nil
}
