package parking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(t *testing.T) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(DefaultConfig(), setupTestLogger(), WithClock(clock.Now)), clock
}

func shipCard(t *testing.T) domain.Card {
	t.Helper()
	c, err := domain.NewCard("release v2", domain.ShipContent{
		VersionTag: "v2",
		Checks:     []domain.DoDCheck{{ID: "ci", Label: "CI", Status: domain.CheckGreen}},
	})
	require.NoError(t, err)
	return c
}

func TestParkRewritesCard(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)
	wake := clock.Now().Add(time.Hour)

	id, err := s.Park(card, wake, "after lunch")
	require.NoError(t, err)
	assert.Equal(t, card.ID, id)
	assert.Equal(t, 1, s.Count())

	parked, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, domain.StatusParked, parked.Status)
	assert.Equal(t, domain.KindParked, parked.Kind())
	assert.Equal(t, []domain.Action{domain.ActionResume}, parked.Actions)

	content := parked.Content.(domain.ParkedContent)
	assert.Equal(t, card.ID, content.OriginalCardID)
	assert.True(t, wake.Equal(content.WakeTime))
	assert.Equal(t, "after lunch", content.Reason)
	require.Len(t, content.Conditions, 1)
	assert.Equal(t, domain.WakeTime, content.Conditions[0].Type)
}

func TestParkValidation(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)

	_, err := s.Park(card, time.Time{}, "no time")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Park(card, clock.Now(), "dup time", domain.TimeCondition(clock.Now()))
	assert.ErrorIs(t, err, domain.ErrInvalidWakeCondition)

	_, err = s.Park(card, clock.Now(), "bad event", domain.EventCondition(""))
	assert.ErrorIs(t, err, domain.ErrInvalidWakeCondition)

	card.ID = uuid.Nil
	_, err = s.Park(card, clock.Now(), "no id")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 0, s.Count())
}

func TestParkTwiceLastWriteWins(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)

	_, err := s.Park(card, clock.Now().Add(time.Hour), "first")
	require.NoError(t, err)
	parked, _ := s.Get(card.ID)

	later := clock.Now().Add(2 * time.Hour)
	_, err = s.Park(parked, later, "second")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count())
	at, _ := s.WakeAt(card.ID)
	assert.True(t, later.Equal(at))

	restored, ok := s.Unpark(card.ID)
	require.True(t, ok)
	assert.Equal(t, domain.KindShip, restored.Kind())
}

func TestUnparkRestoresPriorContent(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)
	_, err := s.Park(card, clock.Now().Add(time.Minute), "later")
	require.NoError(t, err)

	restored, ok := s.Unpark(card.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, restored.Status)
	assert.Equal(t, domain.KindShip, restored.Kind())
	assert.Equal(t, domain.AltitudeShip, restored.Altitude)
	assert.Equal(t, card.Actions, restored.Actions)
	assert.Equal(t, "v2", restored.Content.(domain.ShipContent).VersionTag)
	assert.Equal(t, 0, s.Count())

	_, ok = s.Unpark(card.ID)
	assert.False(t, ok, "second unpark must report untracked")
}

func TestUnparkWithoutSnapshotFallsBackToDoNow(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	legacy, err := domain.NewCard("legacy", domain.ParkedContent{WakeTime: clock.Now()})
	require.NoError(t, err)
	_, err = s.Park(legacy, clock.Now(), "legacy")
	require.NoError(t, err)

	restored, ok := s.Unpark(legacy.ID)
	require.True(t, ok)
	assert.Equal(t, domain.KindDoNow, restored.Kind())
	assert.Equal(t, domain.StatusActive, restored.Status)
}

func TestUnparkUnknown(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	_, ok := s.Unpark(uuid.New())
	assert.False(t, ok)
}

func TestSnooze(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)
	wake := clock.Now().Add(10 * time.Minute)
	_, err := s.Park(card, wake, "focus", domain.EventCondition(domain.EventThreadReplied))
	require.NoError(t, err)

	require.NoError(t, s.Snooze(card.ID, 15))

	want := wake.Add(15 * time.Minute)
	at, ok := s.WakeAt(card.ID)
	require.True(t, ok)
	assert.True(t, want.Equal(at))

	parked, _ := s.Get(card.ID)
	content := parked.Content.(domain.ParkedContent)
	assert.True(t, want.Equal(content.WakeTime))
	assert.True(t, want.Equal(content.Conditions[0].At))
	assert.Equal(t, domain.WakeEvent, content.Conditions[1].Type)
	assert.Equal(t, "focus", content.Reason)
	assert.Equal(t, domain.KindShip, content.Prior.Content.Kind())
}

func TestSnoozeUnknown(t *testing.T) {
	t.Parallel()

	s, _ := newScheduler(t)
	err := s.Snooze(uuid.New(), 5)
	assert.ErrorIs(t, err, ErrNotParked)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestItemsSortedByWakeTime(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	late := shipCard(t)
	soon := shipCard(t)
	_, err := s.Park(late, clock.Now().Add(2*time.Hour), "late")
	require.NoError(t, err)
	_, err = s.Park(soon, clock.Now().Add(time.Hour), "soon")
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, soon.ID, items[0].ID)
	assert.Equal(t, "soon", items[0].Context)
	assert.Equal(t, soon.ID, items[0].OriginCardID)
	assert.Equal(t, domain.AltitudeShip, items[0].Altitude)
	assert.Equal(t, late.ID, items[1].ID)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	card := shipCard(t)
	_, err := s.Park(card, clock.Now().Add(time.Hour), "wait", domain.EventCondition(domain.EventThreadReplied))
	require.NoError(t, err)

	assert.True(t, s.Matches(card.ID, domain.EventCondition(domain.EventThreadReplied)))
	assert.False(t, s.Matches(card.ID, domain.EventCondition(domain.EventMentioned)))
	assert.False(t, s.Matches(uuid.New(), domain.EventCondition(domain.EventThreadReplied)))
}

func TestMatching(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	late, soon, other := shipCard(t), shipCard(t), shipCard(t)
	spec := domain.MemoryChangeCondition("doc-1")
	_, err := s.Park(late, clock.Now().Add(2*time.Hour), "", spec)
	require.NoError(t, err)
	_, err = s.Park(soon, clock.Now().Add(time.Hour), "", spec)
	require.NoError(t, err)
	_, err = s.Park(other, clock.Now().Add(time.Hour), "", domain.MemoryChangeCondition("doc-2"))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{soon.ID, late.ID}, s.Matching(spec))
	assert.Empty(t, s.Matching(domain.MemoryChangeCondition("doc-3")))
	assert.Empty(t, s.Matching(domain.EventCondition(domain.EventMentioned)))
}

func TestWakeDueFiresOnlyDueCards(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	past := shipCard(t)
	now := shipCard(t)
	future := shipCard(t)
	_, err := s.Park(past, clock.Now().Add(-time.Minute), "past")
	require.NoError(t, err)
	_, err = s.Park(now, clock.Now(), "now")
	require.NoError(t, err)
	_, err = s.Park(future, clock.Now().Add(time.Hour), "future")
	require.NoError(t, err)

	var fired []uuid.UUID
	fire := func(_ context.Context, id uuid.UUID) {
		fired = append(fired, id)
		s.Unpark(id)
	}

	n := s.wakeDue(context.Background(), fire)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{past.ID, now.ID}, fired)
	assert.Equal(t, 1, s.Count())

	fired = nil
	assert.Equal(t, 0, s.wakeDue(context.Background(), fire))
	assert.Empty(t, fired)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, s.wakeDue(context.Background(), fire))
	assert.Equal(t, []uuid.UUID{future.ID}, fired)
	assert.Equal(t, 0, s.Count())
}

func TestWakeLoopFiresWithinOneTick(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	s := New(Config{TickInterval: 10 * time.Millisecond}, setupTestLogger(), WithClock(clock.Now))
	card := shipCard(t)
	_, err := s.Park(card, clock.Now().Add(-time.Second), "due")
	require.NoError(t, err)
	future := shipCard(t)
	_, err = s.Park(future, clock.Now().Add(time.Hour), "later")
	require.NoError(t, err)

	woke := make(chan uuid.UUID, 4)
	require.NoError(t, s.Start(func(_ context.Context, id uuid.UUID) {
		if _, ok := s.Unpark(id); ok {
			woke <- id
		}
	}))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(nil), ErrAlreadyStarted)

	select {
	case id := <-woke:
		assert.Equal(t, card.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("due card was not woken")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, woke, 0, "future card must not wake")
	assert.Equal(t, 1, s.Count())
}

func TestStartWithNilFireUnparks(t *testing.T) {
	t.Parallel()

	s := New(Config{TickInterval: 5 * time.Millisecond}, setupTestLogger())
	card := shipCard(t)
	_, err := s.Park(card, time.Now().Add(-time.Second), "due")
	require.NoError(t, err)

	require.NoError(t, s.Start(nil))
	assert.Eventually(t, func() bool { return s.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestStopKeepsParkedCards(t *testing.T) {
	t.Parallel()

	s, clock := newScheduler(t)
	_, err := s.Park(shipCard(t), clock.Now().Add(time.Hour), "keep")
	require.NoError(t, err)

	require.NoError(t, s.Start(nil))
	s.Stop()
	assert.Equal(t, 1, s.Count())
}

func TestNewFallsBackToDefaultTick(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil)
	assert.Equal(t, DefaultConfig().TickInterval, s.config.TickInterval)
}
