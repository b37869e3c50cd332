package events

import (
	"context"
	"time"
)

// DefaultHeartbeatInterval is the heartbeat period used when none is
// configured.
const DefaultHeartbeatInterval = 5 * time.Second

// StreamConfig shapes a subscriber stream.
type StreamConfig struct {
	// Hydrate builds the single event sent before anything else.
	Hydrate func() Event

	// Heartbeat builds the event sent once per Interval. Nil disables it.
	Heartbeat func() Event

	// Interval is the heartbeat period.
	Interval time.Duration
}

// Stream subscribes to the bus and returns a channel that yields one hydrate
// event, then bus events in publish order merged with periodic heartbeats.
// The channel is closed when ctx ends or the bus closes; the subscription
// is released at that point.
func (b *Bus) Stream(ctx context.Context, cfg StreamConfig) <-chan Event {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHeartbeatInterval
	}
	sub := b.Subscribe()
	out := make(chan Event)

	go func() {
		defer close(out)
		defer sub.Close()

		send := func(e Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if cfg.Hydrate != nil {
			if !send(cfg.Hydrate()) {
				return
			}
		}

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				for {
					e, ok := sub.TryNext()
					if !ok {
						return
					}
					if !send(e) {
						return
					}
				}
			case <-sub.Ready():
				for {
					e, ok := sub.TryNext()
					if !ok {
						break
					}
					if !send(e) {
						return
					}
				}
			case <-ticker.C:
				if cfg.Heartbeat != nil && !send(cfg.Heartbeat()) {
					return
				}
			}
		}
	}()

	return out
}
