package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/memory"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func (f *fixture) parkOn(t *testing.T, conds ...domain.WakeCondition) domain.Card {
	t.Helper()
	card := f.ingest(t, domain.DoNowContent{})
	_, err := f.svc.Park(context.Background(), card.ID, ParkInput{
		WakeTime:   f.now.Add(24 * time.Hour),
		Conditions: conds,
	})
	require.NoError(t, err)
	return card
}

func TestSignalAllWakesEveryMatchingCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.parkOn(t, domain.MemoryChangeCondition("doc-1"))
	b := f.parkOn(t, domain.MemoryChangeCondition("doc-1"), domain.EventCondition(domain.EventMentioned))
	other := f.parkOn(t, domain.MemoryChangeCondition("doc-2"))

	woken, err := f.svc.SignalAll(ctx, domain.MemoryChangeCondition("doc-1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, woken)
	assert.Equal(t, 2, f.metrics.wakes["memory_change"])

	_, parked := f.scheduler.Get(other.ID)
	assert.True(t, parked, "other keys stay parked")

	woken, err = f.svc.SignalAll(ctx, domain.MemoryChangeCondition("doc-1"))
	require.NoError(t, err)
	assert.Empty(t, woken, "nothing left to wake")

	_, err = f.svc.SignalAll(ctx, domain.TimeCondition(f.now))
	assert.ErrorIs(t, err, domain.ErrInvalidWakeCondition)
	_, err = f.svc.SignalAll(ctx, domain.MemoryChangeCondition(""))
	assert.ErrorIs(t, err, domain.ErrInvalidWakeCondition)
}

func TestUpdateWorkingSetWakesWaitingCards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	onDoc := f.parkOn(t, domain.MemoryChangeCondition("doc-1"))
	onFocus := f.parkOn(t, domain.MemoryChangeCondition(memory.KeyWorkingSet))
	f.drain()

	res := f.svc.UpdateWorkingSet(ctx, memory.Update{DocID: strptr("doc-1"), Content: "draft"})
	require.NotNil(t, res.WorkingSet.ActiveDoc)
	assert.Equal(t, "doc-1", res.WorkingSet.ActiveDoc.DocID)
	assert.Equal(t, []string{memory.KeyWorkingSet, "doc-1"}, res.Changed)
	assert.ElementsMatch(t, []uuid.UUID{onDoc.ID, onFocus.ID}, res.Woken)

	assert.Equal(t,
		[]string{events.WakeFire, events.MemoryChange, events.WakeFire, events.MemoryChange},
		f.drain())
	assert.Equal(t, "doc-1", f.svc.WorkingSet(ctx).ActiveDoc.DocID)
}

func TestPutSummaryWakesOnChangeOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	card := f.parkOn(t, domain.MemoryChangeCondition("weekly"))

	_, err := f.svc.Summary(ctx, "weekly")
	assert.ErrorIs(t, err, store.ErrNotFound)

	res, err := f.svc.PutSummary(ctx, "weekly", "shipped v2")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{card.ID}, res.Woken)

	again := f.parkOn(t, domain.MemoryChangeCondition("weekly"))
	res, err = f.svc.PutSummary(ctx, "weekly", "shipped v2")
	require.NoError(t, err)
	assert.Empty(t, res.Woken, "unchanged text does not wake")
	_, parked := f.scheduler.Get(again.ID)
	assert.True(t, parked)

	sum, err := f.svc.Summary(ctx, "weekly")
	require.NoError(t, err)
	assert.Equal(t, "shipped v2", sum.Text)

	_, err = f.svc.PutSummary(ctx, " ", "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	card := f.parkOn(t, domain.EventCondition(domain.EventMentioned))

	history, err := f.svc.History(ctx, card.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, events.CardNew, history[0].Event)
	assert.Equal(t, events.CardPark, history[1].Event)

	none, err := f.svc.History(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	bare := newFixture(t, withoutStore())
	_, err = bare.svc.History(ctx, card.ID, 10)
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}
