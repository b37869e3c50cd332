package feed

import (
	"testing"
	"time"

	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCount int

func (f fixedCount) Count() int { return int(f) }

func card(t *testing.T, title string, content domain.Content) domain.Card {
	t.Helper()
	c, err := domain.NewCard(title, content)
	require.NoError(t, err)
	return c
}

func orient(t *testing.T) domain.Card {
	return card(t, "plan", domain.OrientContent{})
}

func doNow(t *testing.T) domain.Card {
	return card(t, "edit", domain.DoNowContent{Preview: "edit"})
}

func ship(t *testing.T) domain.Card {
	return card(t, "release", domain.ShipContent{
		Checks: []domain.DoDCheck{{ID: "ci", Status: domain.CheckGreen}},
	})
}

func amplify(t *testing.T) domain.Card {
	return card(t, "announce", domain.AmplifyContent{
		Suggestions: []domain.AmplifySuggestion{{Target: "team"}},
	})
}

func altitudes(cards []domain.Card) []domain.Altitude {
	out := make([]domain.Altitude, len(cards))
	for i, c := range cards {
		out[i] = c.Altitude
	}
	return out
}

func TestGetFeedOrdersByAltitude(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	for _, c := range []domain.Card{orient(t), doNow(t), ship(t), amplify(t)} {
		reg.Put(c)
	}
	composer := New(reg, fixedCount(2), 0)

	feed := composer.GetFeed(nil, 0)
	assert.Equal(t, []domain.Altitude{
		domain.AltitudeDo, domain.AltitudeShip, domain.AltitudeAmplify, domain.AltitudeOrient,
	}, altitudes(feed.Cards))
	assert.Equal(t, 2, feed.ParkedCount)
	assert.Equal(t, domain.AltitudeShip, feed.CurrentAltitude, "all ship checks green")
}

func TestGetFeedKeepsCreationOrderWithinAltitude(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	first := doNow(t)
	second := doNow(t)
	reg.Put(ship(t))
	reg.Put(first)
	reg.Put(second)

	feed := New(reg, nil, 0).GetFeed(nil, 0)
	require.Len(t, feed.Cards, 3)
	assert.Equal(t, first.ID, feed.Cards[0].ID)
	assert.Equal(t, second.ID, feed.Cards[1].ID)
	assert.Equal(t, 0, feed.ParkedCount)
}

func TestGetFeedFilterAndLimit(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	for i := 0; i < 12; i++ {
		reg.Put(doNow(t))
	}
	reg.Put(ship(t))

	composer := New(reg, nil, 0)
	assert.Len(t, composer.GetFeed(nil, 0).Cards, DefaultLimit)
	assert.Len(t, composer.GetFeed(nil, 3).Cards, 3)

	shipOnly := domain.AltitudeShip
	filtered := composer.GetFeed(&shipOnly, 0)
	require.Len(t, filtered.Cards, 1)
	assert.Equal(t, domain.AltitudeShip, filtered.Cards[0].Altitude)
}

func TestGetFeedSkipsInactiveCards(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	done := doNow(t)
	done.Status = domain.StatusCompleted
	parked := doNow(t)
	parked.Status = domain.StatusParked
	live := doNow(t)
	reg.Put(done)
	reg.Put(parked)
	reg.Put(live)

	feed := New(reg, nil, 0).GetFeed(nil, 0)
	require.Len(t, feed.Cards, 1)
	assert.Equal(t, live.ID, feed.Cards[0].ID)
}

func TestCurrentAltitudeFollowsRecommendation(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	composer := New(reg, nil, 0)
	assert.Equal(t, domain.AltitudeDo, composer.CurrentAltitude())

	reg.Put(amplify(t))
	assert.Equal(t, domain.AltitudeAmplify, composer.CurrentAltitude())
}

func TestSetAndClearAltitude(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	composer := New(reg, nil, 0)
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	composer.now = func() time.Time { return stamp }

	state, err := composer.SetAltitude(domain.AltitudeShip)
	require.NoError(t, err)
	assert.Equal(t, domain.AltitudeShip, state.Current)
	assert.True(t, state.Manual)
	require.NotNil(t, state.Previous)
	assert.Equal(t, domain.AltitudeDo, *state.Previous)
	require.Len(t, state.GatesPassed, 1)
	assert.Equal(t, domain.GateDoToShip, state.GatesPassed[0].GateType)
	assert.False(t, state.GatesPassed[0].ConditionsMet)
	assert.Equal(t, stamp, state.GatesPassed[0].Timestamp)

	reg.Put(amplify(t))
	assert.Equal(t, domain.AltitudeShip, composer.CurrentAltitude(), "manual choice wins")

	state, err = composer.SetAltitude(domain.AltitudeAmplify)
	require.NoError(t, err)
	assert.Equal(t, domain.AltitudeShip, *state.Previous)
	require.Len(t, state.GatesPassed, 2)
	assert.True(t, state.GatesPassed[1].ConditionsMet)

	_, err = composer.SetAltitude(domain.AltitudeDo)
	require.NoError(t, err)
	assert.Len(t, composer.State().GatesPassed, 2, "skipping back is not a gate")

	state = composer.ClearAltitude()
	assert.False(t, state.Manual)
	assert.Equal(t, domain.AltitudeAmplify, state.Current)
	assert.Equal(t, domain.AltitudeDo, *state.Previous)
}

func TestSetAltitudeRejectsUnknown(t *testing.T) {
	t.Parallel()

	composer := New(registry.New(), nil, 0)
	_, err := composer.SetAltitude(domain.Altitude("cruise"))
	assert.ErrorIs(t, err, domain.ErrInvalidAltitude)
	assert.False(t, composer.State().Manual)
}

func TestAltimeterUpdateUsesActiveCards(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	for i := 0; i < 3; i++ {
		reg.Put(doNow(t))
	}
	closed := doNow(t)
	closed.Status = domain.StatusCompleted
	reg.Put(closed)

	composer := New(reg, nil, 0)
	assert.Equal(t, uint8(3), composer.Progress().DoCount)

	update := composer.AltimeterUpdate()
	assert.Equal(t, domain.AltitudeDo, update.SystemAltitude)
	require.NotNil(t, update.Rationale)
	assert.Equal(t, "3 focused edits available", *update.Rationale)
}
