package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// DefaultBufferSize is the per-subscriber queue capacity used when none is
// configured.
const DefaultBufferSize = 64

// ErrSubscriptionClosed is returned by Next once the subscription is closed
// and drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Bus fans events out to every live subscriber. Each subscriber owns a
// bounded queue; when it is full the oldest queued event is discarded, so
// publishing never blocks on a slow reader.
type Bus struct {
	mu       sync.Mutex
	subs     map[uint64]*Subscription
	handlers []EventHandler
	nextID   uint64
	seq      uint64
	closed   bool

	bufferSize int
	logger     *slog.Logger
	metrics    Metrics
}

// BusOption customizes a Bus.
type BusOption func(*Bus)

// WithMetrics attaches instrumentation to the bus.
func WithMetrics(m Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates a Bus whose subscribers buffer up to bufferSize events.
func NewBus(bufferSize int, logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		logger.Warn("invalid buffer size specified, using default",
			"specified_size", bufferSize,
			"default_size", DefaultBufferSize)
		bufferSize = DefaultBufferSize
	}
	b := &Bus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		logger:     logger.With(slog.String("component", "event_bus")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterHandler adds an in-process handler that sees every published event.
func (b *Bus) RegisterHandler(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	b.logger.Debug("registered new event handler", "handler_count", len(b.handlers))
}

// Publish assigns the next sequence number to event and queues it for every
// current subscriber, then hands it to registered handlers. Subscribers see
// events in the order Publish accepted them. Handler errors are logged.
func (b *Bus) Publish(ctx context.Context, event Event) Event {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return event
	}
	b.seq++
	event.Seq = b.seq
	for _, sub := range b.subs {
		if sub.push(event) {
			if b.metrics != nil {
				b.metrics.EventDropped(event.Name)
			}
		}
	}
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.EventPublished(event.Name)
	}

	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			b.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event", event.Name,
				"seq", event.Seq)
		}
	}
	return event
}

// PublishJSON encodes payload and publishes it under name.
func (b *Bus) PublishJSON(ctx context.Context, name string, payload interface{}) error {
	event, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	b.Publish(ctx, event)
	return nil
}

// Subscribe registers a new subscriber. It only receives events published
// after this call returns.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := newSubscription(b.nextID, b.bufferSize, b)
	if b.closed {
		sub.markClosed()
		return sub
	}
	b.subs[sub.id] = sub
	b.subscribersChanged()
	return sub
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription and rejects further publishing.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.closed = true
	b.subscribersChanged()
	b.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
	b.logger.Info("event bus closed", "subscribers", len(subs))
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; ok {
		delete(b.subs, id)
		b.subscribersChanged()
	}
}

// subscribersChanged must be called with b.mu held.
func (b *Bus) subscribersChanged() {
	if b.metrics != nil {
		b.metrics.SubscribersChanged(len(b.subs))
	}
}

// Subscription is one subscriber's bounded view of the bus.
type Subscription struct {
	id  uint64
	bus *Bus

	mu      sync.Mutex
	queue   []Event
	limit   int
	dropped uint64
	closed  bool

	ready chan struct{}
	done  chan struct{}
}

func newSubscription(id uint64, limit int, bus *Bus) *Subscription {
	return &Subscription{
		id:    id,
		bus:   bus,
		queue: make([]Event, 0, limit),
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push enqueues e, discarding the oldest queued event when full. Reports
// whether an event was discarded.
func (s *Subscription) push(e Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if len(s.queue) == s.limit {
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		s.dropped++
		dropped = true
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Ready is signalled whenever events may be waiting.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// TryNext dequeues the oldest waiting event without blocking.
func (s *Subscription) TryNext() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	copy(s.queue, s.queue[1:])
	s.queue = s.queue[:len(s.queue)-1]
	return e, true
}

// Next blocks until an event is available, the context ends or the
// subscription closes. Events queued before Close are still delivered.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		if e, ok := s.TryNext(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.done:
			if e, ok := s.TryNext(); ok {
				return e, nil
			}
			return Event{}, ErrSubscriptionClosed
		case <-s.ready:
		}
	}
}

// Len returns the number of queued events.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from the bus. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}
