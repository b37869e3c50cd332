package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/store"
)

// MockStore implements store.Store for testing.
type MockStore struct {
	SaveCardFn         func(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error
	LoadCardFn         func(ctx context.Context, id uuid.UUID) ([]byte, error)
	SaveWakeFn         func(ctx context.Context, cardID uuid.UUID, wakeAt time.Time, reason string) error
	DeleteWakeFn       func(ctx context.Context, cardID uuid.UUID) error
	SaveParkedFn       func(ctx context.Context, id uuid.UUID, kind, status string, payload []byte, wakeAt time.Time, reason string) error
	SaveUnparkedFn     func(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error
	LinkThreadFn       func(ctx context.Context, cardID uuid.UUID, channel, threadTS string) error
	FindCardByThreadFn func(ctx context.Context, channel, threadTS string) (uuid.UUID, error)
	AppendQueueEventFn func(ctx context.Context, event store.QueueEvent) error
	ListQueueEventsFn  func(ctx context.Context, cardID uuid.UUID, limit int) ([]store.QueueEvent, error)
	PingFn             func(ctx context.Context) error

	// Err is returned by methods without a function set. Lookups without a
	// function report not found.
	Err error
}

var _ store.Store = (*MockStore)(nil)

// SaveCard implements store.CardStore.
func (m *MockStore) SaveCard(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	if m.SaveCardFn != nil {
		return m.SaveCardFn(ctx, id, kind, status, payload)
	}
	return m.Err
}

// LoadCard implements store.CardStore.
func (m *MockStore) LoadCard(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if m.LoadCardFn != nil {
		return m.LoadCardFn(ctx, id)
	}
	return nil, store.ErrCardNotFound
}

// SaveWake implements store.WakeStore.
func (m *MockStore) SaveWake(ctx context.Context, cardID uuid.UUID, wakeAt time.Time, reason string) error {
	if m.SaveWakeFn != nil {
		return m.SaveWakeFn(ctx, cardID, wakeAt, reason)
	}
	return m.Err
}

// DeleteWake implements store.WakeStore.
func (m *MockStore) DeleteWake(ctx context.Context, cardID uuid.UUID) error {
	if m.DeleteWakeFn != nil {
		return m.DeleteWakeFn(ctx, cardID)
	}
	return m.Err
}

// SaveParked implements store.ParkStore.
func (m *MockStore) SaveParked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte, wakeAt time.Time, reason string) error {
	if m.SaveParkedFn != nil {
		return m.SaveParkedFn(ctx, id, kind, status, payload, wakeAt, reason)
	}
	return m.Err
}

// SaveUnparked implements store.ParkStore.
func (m *MockStore) SaveUnparked(ctx context.Context, id uuid.UUID, kind, status string, payload []byte) error {
	if m.SaveUnparkedFn != nil {
		return m.SaveUnparkedFn(ctx, id, kind, status, payload)
	}
	return m.Err
}

// LinkThread implements store.ThreadStore.
func (m *MockStore) LinkThread(ctx context.Context, cardID uuid.UUID, channel, threadTS string) error {
	if m.LinkThreadFn != nil {
		return m.LinkThreadFn(ctx, cardID, channel, threadTS)
	}
	return m.Err
}

// FindCardByThread implements store.ThreadStore.
func (m *MockStore) FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, error) {
	if m.FindCardByThreadFn != nil {
		return m.FindCardByThreadFn(ctx, channel, threadTS)
	}
	return uuid.Nil, store.ErrThreadNotFound
}

// AppendQueueEvent implements store.QueueEventStore.
func (m *MockStore) AppendQueueEvent(ctx context.Context, event store.QueueEvent) error {
	if m.AppendQueueEventFn != nil {
		return m.AppendQueueEventFn(ctx, event)
	}
	return m.Err
}

// ListQueueEvents implements store.QueueEventStore.
func (m *MockStore) ListQueueEvents(ctx context.Context, cardID uuid.UUID, limit int) ([]store.QueueEvent, error) {
	if m.ListQueueEventsFn != nil {
		return m.ListQueueEventsFn(ctx, cardID, limit)
	}
	return nil, m.Err
}

// Ping implements store.Store.
func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return m.Err
}

// Close implements store.Store.
func (m *MockStore) Close() error {
	return nil
}
