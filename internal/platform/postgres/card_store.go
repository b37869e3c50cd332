package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/store"
)

const upsertCardSQL = `
INSERT INTO cards (id, kind, status, payload, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE
SET kind = EXCLUDED.kind,
    status = EXCLUDED.status,
    payload = EXCLUDED.payload,
    updated_at = NOW()`

const selectCardSQL = `SELECT payload FROM cards WHERE id = $1`

// SaveCard implements store.CardStore.
func (s *Store) SaveCard(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertCardSQL, id, kind, status, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to save card",
			slog.String("card_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "save", "failed to save card", MapError(err))
	}
	return nil
}

// SaveParked implements store.ParkStore.
func (s *Store) SaveParked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte, wakeAt time.Time, reason string) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return execAll(ctx, tx,
			statement{upsertCardSQL, []any{id, kind, status, payload}},
			statement{upsertWakeSQL, []any{id, wakeAt.UTC(), reason}})
	})
	if err != nil {
		return store.NewStoreError("card", "park", "failed to save parked card", MapError(err))
	}
	return nil
}

// SaveUnparked implements store.ParkStore.
func (s *Store) SaveUnparked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return execAll(ctx, tx,
			statement{upsertCardSQL, []any{id, kind, status, payload}},
			statement{deleteWakeSQL, []any{id}})
	})
	if err != nil {
		return store.NewStoreError("card", "unpark", "failed to save unparked card", MapError(err))
	}
	return nil
}

type statement struct {
	query string
	args  []any
}

// execAll runs statements in order on q, stopping at the first error.
func execAll(ctx context.Context, q store.DBTX, stmts ...statement) error {
	for _, st := range stmts {
		if _, err := q.ExecContext(ctx, st.query, st.args...); err != nil {
			return err
		}
	}
	return nil
}

// LoadCard implements store.CardStore.
func (s *Store) LoadCard(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectCardSQL, id).Scan(&payload)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrCardNotFound
		}
		return nil, store.NewStoreError("card", "load", "failed to load card", mapped)
	}
	return payload, nil
}
