// Package feed assembles the prioritized card view and tracks the working
// altitude.
package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/cardfeed/internal/altimeter"
	"github.com/phrazzld/cardfeed/internal/domain"
)

// DefaultLimit is the number of cards returned when no limit is given.
const DefaultLimit = 10

// maxGates bounds the gate history kept in memory.
const maxGates = 50

// CardSource supplies the active cards.
type CardSource interface {
	Active() []domain.Card
}

// ParkedCounter reports how many cards are parked.
type ParkedCounter interface {
	Count() int
}

// Feed is the composed view returned to clients.
type Feed struct {
	Cards           []domain.Card   `json:"cards"`
	CurrentAltitude domain.Altitude `json:"current_altitude"`
	ParkedCount     int             `json:"parked_count"`
}

// Composer builds feeds from the registry and parking state. It is safe
// for concurrent use.
type Composer struct {
	cards        CardSource
	parked       ParkedCounter
	defaultLimit int
	now          func() time.Time

	mu       sync.RWMutex
	manual   *domain.Altitude
	previous *domain.Altitude
	gates    []domain.Gate
}

// New creates a Composer. A non-positive defaultLimit falls back to
// DefaultLimit.
func New(cards CardSource, parked ParkedCounter, defaultLimit int) *Composer {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Composer{
		cards:        cards,
		parked:       parked,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// GetFeed returns active cards, optionally restricted to one altitude,
// ordered Do, Ship, Amplify, Orient. Cards at the same altitude keep their
// creation order. A non-positive limit uses the default.
func (c *Composer) GetFeed(filter *domain.Altitude, limit int) Feed {
	if limit <= 0 {
		limit = c.defaultLimit
	}
	active := c.cards.Active()

	cards := make([]domain.Card, 0, len(active))
	for _, card := range active {
		if filter != nil && card.Altitude != *filter {
			continue
		}
		cards = append(cards, card)
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Altitude.Rank() < cards[j].Altitude.Rank()
	})
	if len(cards) > limit {
		cards = cards[:limit]
	}

	return Feed{
		Cards:           cards,
		CurrentAltitude: c.currentFor(active),
		ParkedCount:     c.parkedCount(),
	}
}

// CurrentAltitude returns the manually selected altitude, or the altimeter
// recommendation when none is set.
func (c *Composer) CurrentAltitude() domain.Altitude {
	return c.currentFor(c.cards.Active())
}

// State returns the current altitude with its history.
func (c *Composer) State() domain.AltitudeState {
	current := c.CurrentAltitude()

	c.mu.RLock()
	defer c.mu.RUnlock()
	state := domain.AltitudeState{
		Current:     current,
		Manual:      c.manual != nil,
		GatesPassed: append([]domain.Gate{}, c.gates...),
	}
	if c.previous != nil {
		prev := *c.previous
		state.Previous = &prev
	}
	return state
}

// SetAltitude pins the working altitude. The altitude in effect before the
// call becomes the previous one, and moving to the next altitude in the
// cycle records a gate. Returns the updated state.
func (c *Composer) SetAltitude(a domain.Altitude) (domain.AltitudeState, error) {
	if _, err := domain.ParseAltitude(string(a)); err != nil {
		return domain.AltitudeState{}, err
	}
	active := c.cards.Active()
	recommended, _ := altimeter.RecommendAltitude(altimeter.ComputeProgress(active))

	c.mu.Lock()
	from := recommended
	if c.manual != nil {
		from = *c.manual
	}
	target := a
	c.previous = &from
	c.manual = &target
	if gate, ok := domain.GateFor(from, a); ok {
		c.gates = append(c.gates, domain.Gate{
			FromAltitude:  from,
			ToAltitude:    a,
			GateType:      gate,
			ConditionsMet: recommended == a,
			Timestamp:     c.now().UTC(),
		})
		if len(c.gates) > maxGates {
			c.gates = c.gates[len(c.gates)-maxGates:]
		}
	}
	c.mu.Unlock()

	return c.State(), nil
}

// ClearAltitude drops the manual selection so the recommendation applies
// again.
func (c *Composer) ClearAltitude() domain.AltitudeState {
	c.mu.Lock()
	if c.manual != nil {
		prev := *c.manual
		c.previous = &prev
	}
	c.manual = nil
	c.mu.Unlock()
	return c.State()
}

// Progress computes altimeter progress over the active cards.
func (c *Composer) Progress() domain.AltimeterProgress {
	return altimeter.ComputeProgress(c.cards.Active())
}

// AltimeterUpdate builds the altimeter.update payload for the active cards.
func (c *Composer) AltimeterUpdate() altimeter.Update {
	return altimeter.NewUpdate(c.cards.Active())
}

func (c *Composer) currentFor(active []domain.Card) domain.Altitude {
	c.mu.RLock()
	manual := c.manual
	c.mu.RUnlock()
	if manual != nil {
		return *manual
	}
	alt, _ := altimeter.RecommendAltitude(altimeter.ComputeProgress(active))
	return alt
}

func (c *Composer) parkedCount() int {
	if c.parked == nil {
		return 0
	}
	return c.parked.Count()
}
