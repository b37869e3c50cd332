package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which content variant a card carries.
type Kind string

// Card kinds.
const (
	KindDoNow       Kind = "do_now"
	KindShip        Kind = "ship"
	KindAmplify     Kind = "amplify"
	KindOrient      Kind = "orient"
	KindParked      Kind = "parked"
	KindBreakIn     Kind = "break_in"
	KindBatchReview Kind = "batch_review"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDoNow, KindShip, KindAmplify, KindOrient, KindParked, KindBreakIn, KindBatchReview:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Altitude is the level of abstraction a card belongs to.
type Altitude string

// Altitudes in descending feed priority.
const (
	AltitudeDo      Altitude = "do"
	AltitudeShip    Altitude = "ship"
	AltitudeAmplify Altitude = "amplify"
	AltitudeOrient  Altitude = "orient"
)

// Altitudes lists every altitude in priority order.
var Altitudes = []Altitude{AltitudeDo, AltitudeShip, AltitudeAmplify, AltitudeOrient}

// Rank returns the feed priority of the altitude. Lower ranks sort first.
func (a Altitude) Rank() int {
	switch a {
	case AltitudeDo:
		return 0
	case AltitudeShip:
		return 1
	case AltitudeAmplify:
		return 2
	case AltitudeOrient:
		return 3
	}
	return len(Altitudes)
}

// ParseAltitude validates an altitude name.
func ParseAltitude(s string) (Altitude, error) {
	a := Altitude(strings.ToLower(strings.TrimSpace(s)))
	if a.Rank() == len(Altitudes) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAltitude, s)
	}
	return a, nil
}

// DefaultAltitude is the altitude a freshly created card of the given kind
// surfaces at.
func DefaultAltitude(k Kind) Altitude {
	switch k {
	case KindShip:
		return AltitudeShip
	case KindAmplify:
		return AltitudeAmplify
	case KindOrient, KindBatchReview:
		return AltitudeOrient
	default:
		return AltitudeDo
	}
}

// Status is the lifecycle state of a card.
type Status string

// Card statuses.
const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusParked    Status = "parked"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Action is a user-visible operation a card offers.
type Action string

// Card actions.
const (
	ActionCommit              Action = "commit"
	ActionUndo                Action = "undo"
	ActionPark                Action = "park"
	ActionShowDiff            Action = "show_diff"
	ActionRespondNow          Action = "respond_now"
	ActionRespondAtBreak      Action = "respond_at_break"
	ActionOpen                Action = "open"
	ActionGenerateDraft       Action = "generate_draft"
	ActionResume              Action = "resume"
	ActionDeclineRespectfully Action = "decline_respectfully"
	ActionProcessBatch        Action = "process_batch"
	ActionExpandToFlow        Action = "expand_to_flow"
	ActionArchiveAll          Action = "archive_all"
	ActionUnsubscribeAll      Action = "unsubscribe_all"
	ActionBlockSender         Action = "block_sender"
)

var knownActions = map[Action]struct{}{
	ActionCommit: {}, ActionUndo: {}, ActionPark: {}, ActionShowDiff: {},
	ActionRespondNow: {}, ActionRespondAtBreak: {}, ActionOpen: {},
	ActionGenerateDraft: {}, ActionResume: {}, ActionDeclineRespectfully: {},
	ActionProcessBatch: {}, ActionExpandToFlow: {}, ActionArchiveAll: {},
	ActionUnsubscribeAll: {}, ActionBlockSender: {},
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// DefaultActions is the capability set a new card of the given kind offers.
func DefaultActions(k Kind) []Action {
	switch k {
	case KindDoNow:
		return []Action{ActionCommit, ActionShowDiff, ActionPark, ActionUndo}
	case KindShip:
		return []Action{ActionCommit, ActionOpen, ActionPark}
	case KindAmplify:
		return []Action{ActionGenerateDraft, ActionCommit, ActionPark}
	case KindOrient:
		return []Action{ActionExpandToFlow, ActionPark}
	case KindParked:
		return []Action{ActionResume}
	case KindBreakIn:
		return []Action{ActionRespondNow, ActionRespondAtBreak, ActionDeclineRespectfully}
	case KindBatchReview:
		return []Action{ActionProcessBatch, ActionArchiveAll, ActionUnsubscribeAll, ActionBlockSender}
	}
	return nil
}

// Origin points at the document block a card was derived from.
type Origin struct {
	DocID   string `json:"docId"`
	BlockID string `json:"blockId,omitempty"`
}

// Metadata carries mail-derived context.
type Metadata struct {
	EmailSender    string   `json:"emailSender,omitempty"`
	EmailSubject   string   `json:"emailSubject,omitempty"`
	EmailDate      string   `json:"emailDate,omitempty"`
	ReplyTemplates []string `json:"replyTemplates,omitempty"`
	Category       string   `json:"emailCategory,omitempty"`
}

// Card is the unit of work surfaced in the feed. Its kind is derived from
// Content, so a card can never disagree with its payload.
type Card struct {
	ID        uuid.UUID
	Altitude  Altitude
	Title     string
	Content   Content
	Status    Status
	Actions   []Action
	CreatedAt time.Time
	Origin    *Origin
	Metadata  *Metadata
}

// CardOption customizes a card at construction.
type CardOption func(*Card)

// WithID fixes the card identifier.
func WithID(id uuid.UUID) CardOption {
	return func(c *Card) { c.ID = id }
}

// WithAltitude overrides the kind's default altitude.
func WithAltitude(a Altitude) CardOption {
	return func(c *Card) { c.Altitude = a }
}

// WithActions replaces the kind's default action set.
func WithActions(actions ...Action) CardOption {
	return func(c *Card) { c.Actions = append([]Action(nil), actions...) }
}

// WithOrigin attaches a source document reference.
func WithOrigin(o Origin) CardOption {
	return func(c *Card) { c.Origin = &o }
}

// WithMetadata attaches mail metadata.
func WithMetadata(m Metadata) CardOption {
	return func(c *Card) { c.Metadata = &m }
}

// WithCreatedAt fixes the creation timestamp.
func WithCreatedAt(t time.Time) CardOption {
	return func(c *Card) { c.CreatedAt = t }
}

// NewCard builds an active card around content. The kind, default altitude
// and default actions all follow from the content variant.
func NewCard(title string, content Content, opts ...CardOption) (Card, error) {
	if content == nil {
		return Card{}, fmt.Errorf("%w: content is required", ErrInvalidContent)
	}
	if strings.TrimSpace(title) == "" {
		return Card{}, NewValidationError("title", "cannot be empty", ErrValidation)
	}
	if err := content.validate(); err != nil {
		return Card{}, err
	}

	kind := content.Kind()
	c := Card{
		ID:        uuid.New(),
		Altitude:  DefaultAltitude(kind),
		Title:     title,
		Content:   content,
		Status:    StatusActive,
		Actions:   DefaultActions(kind),
		CreatedAt: time.Now().UTC(),
	}
	if kind == KindParked {
		c.Status = StatusParked
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.ID == uuid.Nil {
		return Card{}, NewValidationError("id", "cannot be empty", ErrValidation)
	}
	if c.Altitude.Rank() == len(Altitudes) {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidAltitude, c.Altitude)
	}
	return c, nil
}

// Kind returns the kind of the card's content.
func (c Card) Kind() Kind {
	if c.Content == nil {
		return ""
	}
	return c.Content.Kind()
}

// Allows reports whether the action is in the card's capability set.
func (c Card) Allows(a Action) bool {
	for _, have := range c.Actions {
		if have == a {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	out := c
	if c.Actions != nil {
		out.Actions = append([]Action(nil), c.Actions...)
	}
	if c.Origin != nil {
		o := *c.Origin
		out.Origin = &o
	}
	if c.Metadata != nil {
		m := *c.Metadata
		m.ReplyTemplates = append([]string(nil), c.Metadata.ReplyTemplates...)
		out.Metadata = &m
	}
	if c.Content != nil {
		out.Content = c.Content.clone()
	}
	return out
}

type cardJSON struct {
	ID        uuid.UUID       `json:"id"`
	Kind      Kind            `json:"card_type"`
	Altitude  Altitude        `json:"altitude"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Status    Status          `json:"status"`
	Actions   []Action        `json:"actions"`
	CreatedAt time.Time       `json:"created_at"`
	Origin    *Origin         `json:"origin_object,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
}

// MarshalJSON encodes the card with its derived kind and tagged content.
func (c Card) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(c.Content)
	if err != nil {
		return nil, err
	}
	actions := c.Actions
	if actions == nil {
		actions = []Action{}
	}
	return json.Marshal(cardJSON{
		ID:        c.ID,
		Kind:      c.Kind(),
		Altitude:  c.Altitude,
		Title:     c.Title,
		Content:   content,
		Status:    c.Status,
		Actions:   actions,
		CreatedAt: c.CreatedAt,
		Origin:    c.Origin,
		Metadata:  c.Metadata,
	})
}

// UnmarshalJSON decodes a card, rejecting content that disagrees with the
// declared kind.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	content, err := DecodeContent(raw.Kind, raw.Content)
	if err != nil {
		return err
	}
	*c = Card{
		ID:        raw.ID,
		Altitude:  raw.Altitude,
		Title:     raw.Title,
		Content:   content,
		Status:    raw.Status,
		Actions:   raw.Actions,
		CreatedAt: raw.CreatedAt,
		Origin:    raw.Origin,
		Metadata:  raw.Metadata,
	}
	return nil
}
