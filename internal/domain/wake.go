package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WakeConditionType tags a wake condition.
type WakeConditionType string

// Wake condition types.
const (
	WakeTime         WakeConditionType = "time"
	WakeEvent        WakeConditionType = "event"
	WakeMemoryChange WakeConditionType = "memory_change"
)

// Event names delivered by connectors as wake triggers.
const (
	EventThreadReplied = "thread_replied"
	EventMentioned     = "mentioned"
)

// WakeCondition is a reason for a parked card to return to the feed. Only
// one of At, Event or Key is meaningful, selected by Type.
type WakeCondition struct {
	Type  WakeConditionType `json:"type"`
	At    time.Time         `json:"at,omitempty"`
	Event string            `json:"event,omitempty"`
	Key   string            `json:"key,omitempty"`
}

// TimeCondition wakes at t.
func TimeCondition(t time.Time) WakeCondition {
	return WakeCondition{Type: WakeTime, At: t}
}

// EventCondition wakes when the named event is signalled.
func EventCondition(name string) WakeCondition {
	return WakeCondition{Type: WakeEvent, Event: name}
}

// MemoryChangeCondition wakes when the keyed memory entry changes.
func MemoryChangeCondition(key string) WakeCondition {
	return WakeCondition{Type: WakeMemoryChange, Key: key}
}

// Validate checks that the condition carries the field its type needs.
func (w WakeCondition) Validate() error {
	switch w.Type {
	case WakeTime:
		if w.At.IsZero() {
			return fmt.Errorf("%w: time condition without a time", ErrInvalidWakeCondition)
		}
	case WakeEvent:
		if w.Event == "" {
			return fmt.Errorf("%w: event condition without a name", ErrInvalidWakeCondition)
		}
	case WakeMemoryChange:
		if w.Key == "" {
			return fmt.Errorf("%w: memory condition without a key", ErrInvalidWakeCondition)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidWakeCondition, w.Type)
	}
	return nil
}

// Matches reports whether a signalled condition satisfies w. Time
// conditions never match a signal.
func (w WakeCondition) Matches(signal WakeCondition) bool {
	if w.Type != signal.Type {
		return false
	}
	switch w.Type {
	case WakeEvent:
		return w.Event == signal.Event
	case WakeMemoryChange:
		return w.Key == signal.Key
	}
	return false
}

// MarshalJSON omits the zero time on non-time conditions.
func (w WakeCondition) MarshalJSON() ([]byte, error) {
	type alias struct {
		Type  WakeConditionType `json:"type"`
		At    *time.Time        `json:"at,omitempty"`
		Event string            `json:"event,omitempty"`
		Key   string            `json:"key,omitempty"`
	}
	out := alias{Type: w.Type, Event: w.Event, Key: w.Key}
	if !w.At.IsZero() {
		at := w.At
		out.At = &at
	}
	return json.Marshal(out)
}

// ParkedItem is the read-only projection of a parked card.
type ParkedItem struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	WakeTime       time.Time       `json:"wake_time"`
	Altitude       Altitude        `json:"altitude"`
	OriginCardID   uuid.UUID       `json:"origin_card_id"`
	Context        string          `json:"context"`
	WakeConditions []WakeCondition `json:"wake_conditions"`
}
