// Package registry holds the authoritative in-memory set of cards.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/store"
)

// Registry maps card ids to cards and remembers the order in which ids were
// first inserted. Cards are copied on the way in and out, so callers never
// share memory with the registry.
type Registry struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]domain.Card
	order []uuid.UUID
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		cards: make(map[uuid.UUID]domain.Card),
	}
}

// Put inserts or replaces a card by id. Replacing keeps the card's original
// position in the creation order.
func (r *Registry) Put(card domain.Card) {
	c := card.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	r.cards[c.ID] = c
}

// Get returns the card with the given id.
func (r *Registry) Get(id uuid.UUID) (domain.Card, bool) {
	r.mu.RLock()
	c, ok := r.cards[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Card{}, false
	}
	return c.Clone(), true
}

// Update applies fn to the stored card under the write lock. The card is only
// replaced when fn returns nil. Returns store.ErrCardNotFound for unknown ids.
func (r *Registry) Update(id uuid.UUID, fn func(*domain.Card) error) (domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.cards[id]
	if !ok {
		return domain.Card{}, store.ErrCardNotFound
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return domain.Card{}, err
	}
	next.ID = id
	r.cards[id] = next
	return next.Clone(), nil
}

// List returns every card in creation order.
func (r *Registry) List() []domain.Card {
	return r.filter(func(domain.Card) bool { return true })
}

// ByStatus returns the cards in the given status, in creation order.
func (r *Registry) ByStatus(status domain.Status) []domain.Card {
	return r.filter(func(c domain.Card) bool { return c.Status == status })
}

// Active returns the active cards in creation order.
func (r *Registry) Active() []domain.Card {
	return r.ByStatus(domain.StatusActive)
}

// Len reports the number of cards held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}

func (r *Registry) filter(keep func(domain.Card) bool) []domain.Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Card, 0, len(r.order))
	for _, id := range r.order {
		c := r.cards[id]
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}
