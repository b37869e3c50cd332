package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event names published on the bus.
const (
	CardNew         = "card.new"
	CardUpdate      = "card.update"
	CardPark        = "card.park"
	WakeFire        = "wake.fire"
	AltitudeChange  = "altitude.change"
	BreakInArrive   = "breakin.arrive"
	QueueHydrate    = "queue.hydrate"
	AltimeterUpdate = "altimeter.update"
	MemoryChange    = "memory.change"
)

// Event is a named notification with a JSON text payload.
type Event struct {
	// Seq is assigned by the bus when the event is accepted. Zero for events
	// that never went through Publish, such as hydrate and heartbeat.
	Seq uint64 `json:"seq,omitempty"`

	// Name identifies the event type, e.g. "wake.fire".
	Name string `json:"event"`

	// Payload is the event body encoded as JSON text.
	Payload string `json:"data"`

	// At is when the event was created.
	At time.Time `json:"at"`
}

// NewEvent creates an Event with payload encoded as JSON.
func NewEvent(name string, payload interface{}) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{Name: name, Payload: string(body), At: time.Now().UTC()}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal([]byte(e.Payload), v)
}

// EventHandler defines an interface for in-process components that react to
// every published event. Handlers run on the publisher's goroutine and must
// not block.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) Event
}

// Metrics receives bus instrumentation. A nil Metrics is allowed.
type Metrics interface {
	EventPublished(name string)
	EventDropped(name string)
	SubscribersChanged(n int)
}
