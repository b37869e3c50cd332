package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/memory"
	"github.com/phrazzld/cardfeed/internal/service"
	"github.com/phrazzld/cardfeed/internal/store"
)

// CreateCardRequest defines the payload for POST /cards.
type CreateCardRequest struct {
	Kind     string           `json:"kind"     validate:"required"`
	Title    string           `json:"title"    validate:"required,max=500"`
	Content  json.RawMessage  `json:"content"  validate:"required"`
	Altitude string           `json:"altitude,omitempty"`
	Actions  []string         `json:"actions,omitempty" validate:"omitempty,max=16,dive,required"`
	Origin   *domain.Origin   `json:"origin,omitempty"`
	Metadata *domain.Metadata `json:"metadata,omitempty"`
}

func (r CreateCardRequest) toInput() service.CreateCardInput {
	return service.CreateCardInput{
		Kind:     r.Kind,
		Title:    r.Title,
		Content:  r.Content,
		Altitude: r.Altitude,
		Actions:  r.Actions,
		Origin:   r.Origin,
		Metadata: r.Metadata,
	}
}

// ActionRequest defines the payload for POST /cards/{id}/actions.
type ActionRequest struct {
	Action  string          `json:"action"  validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParkRequest defines the payload for POST /cards/{id}/park. Minutes is
// used when WakeTime is absent.
type ParkRequest struct {
	WakeTime   *time.Time             `json:"wake_time,omitempty"`
	Minutes    int                    `json:"minutes,omitempty" validate:"gte=0,lte=525600"`
	Reason     string                 `json:"reason"            validate:"max=500"`
	Conditions []domain.WakeCondition `json:"conditions,omitempty"`
}

func (r ParkRequest) toInput(now time.Time) service.ParkInput {
	in := service.ParkInput{Reason: r.Reason, Conditions: r.Conditions}
	switch {
	case r.WakeTime != nil:
		in.WakeTime = r.WakeTime.UTC()
	case r.Minutes > 0:
		in.WakeTime = now.Add(time.Duration(r.Minutes) * time.Minute).UTC()
	}
	return in
}

// SnoozeRequest defines the payload for POST /cards/{id}/snooze.
type SnoozeRequest struct {
	Minutes int `json:"minutes" validate:"required,gt=0,lte=525600"`
}

// AltitudeRequest defines the payload for PUT /feed/altitude.
type AltitudeRequest struct {
	Altitude string `json:"altitude" validate:"required"`
}

// PlanRequest defines the payload for POST /orient/plan.
type PlanRequest struct {
	Tasks []string `json:"tasks" validate:"required,min=1,max=50,dive,required,max=300"`
}

// SignalRequest defines the payload for POST /cards/{id}/signal.
type SignalRequest struct {
	Type  string `json:"type"  validate:"required,oneof=event memory_change"`
	Event string `json:"event,omitempty"`
	Key   string `json:"key,omitempty"`
}

func (r SignalRequest) toCondition() domain.WakeCondition {
	if r.Type == string(domain.WakeMemoryChange) {
		return domain.MemoryChangeCondition(r.Key)
	}
	return domain.EventCondition(r.Event)
}

// SignalResponse reports whether a signal woke its card.
type SignalResponse struct {
	Woke bool `json:"woke"`
}

// WorkingSetRequest defines the payload for PUT /memory/working-set. An
// empty doc_id clears the active document; an absent one keeps it.
type WorkingSetRequest struct {
	DocID          *string `json:"doc_id,omitempty"          validate:"omitempty,max=200"`
	Title          string  `json:"title,omitempty"           validate:"max=500"`
	Content        string  `json:"content,omitempty"`
	FocusedSection string  `json:"focused_section,omitempty" validate:"max=200"`
}

func (r WorkingSetRequest) toUpdate() memory.Update {
	return memory.Update{
		DocID:          r.DocID,
		Title:          r.Title,
		Content:        r.Content,
		FocusedSection: r.FocusedSection,
	}
}

// SummaryRequest defines the payload for PUT /memory/summaries/{key}.
type SummaryRequest struct {
	Text string `json:"text" validate:"required"`
}

// HistoryResponse wraps a card's lifecycle log.
type HistoryResponse struct {
	Events []store.QueueEvent `json:"events"`
	Count  int                `json:"count"`
}

// CardListResponse wraps a list of cards.
type CardListResponse struct {
	Cards []domain.Card `json:"cards"`
	Count int           `json:"count"`
}

// ParkedListResponse wraps the parked projection.
type ParkedListResponse struct {
	Items []domain.ParkedItem `json:"items"`
	Count int                 `json:"count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}
