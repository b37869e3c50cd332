package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Content is the kind-specific payload of a card. The set of variants is
// closed: only the types in this package implement it.
type Content interface {
	Kind() Kind
	validate() error
	clone() Content
}

// IntentType classifies what an intent does to its target.
type IntentType string

// Intent types.
const (
	IntentTransform IntentType = "transform"
	IntentSummarize IntentType = "summarize"
	IntentExplain   IntentType = "explain"
	IntentDecide    IntentType = "decide"
	IntentPlan      IntentType = "plan"
	IntentGenerate  IntentType = "generate"
	IntentSearch    IntentType = "search"
	IntentOperate   IntentType = "operate"
)

// Intent is a proposed edit the user can commit.
type Intent struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Type            IntentType `json:"intent_type"`
	Rationale       string     `json:"rationale"`
	Preconditions   []string   `json:"preconditions"`
	EstimatedTokens uint32     `json:"estimated_tokens"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DiffOpType is the kind of edit in a diff.
type DiffOpType string

// Diff operation types.
const (
	DiffAdd     DiffOpType = "add"
	DiffRemove  DiffOpType = "remove"
	DiffReplace DiffOpType = "replace"
)

// DiffOperation is a single edit over a character range.
type DiffOperation struct {
	Type    DiffOpType `json:"op_type"`
	Range   [2]int     `json:"range"`
	Content *string    `json:"content,omitempty"`
}

// Diff previews the effect of committing an intent.
type Diff struct {
	Before     string          `json:"before"`
	After      string          `json:"after"`
	Operations []DiffOperation `json:"operations"`
}

// CheckStatus is the state of a definition-of-done check.
type CheckStatus string

// Check states.
const (
	CheckGreen CheckStatus = "green"
	CheckRed   CheckStatus = "red"
)

// DoDCheck is one definition-of-done item on a ship card.
type DoDCheck struct {
	ID            string      `json:"id"`
	Label         string      `json:"label"`
	Status        CheckStatus `json:"status"`
	FixSuggestion *string     `json:"fix_suggestion,omitempty"`
}

// AmplifySuggestion names an audience that should hear about the work.
type AmplifySuggestion struct {
	Target    string `json:"target"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// DraftType is the medium of a prepared draft.
type DraftType string

// Draft media.
const (
	DraftSlackMessage    DraftType = "slack_message"
	DraftEmail           DraftType = "email_draft"
	DraftDocumentSection DraftType = "document_section"
)

// Draft is a prepared message for one audience.
type Draft struct {
	ID        uuid.UUID `json:"id"`
	Type      DraftType `json:"draft_type"`
	Recipient string    `json:"recipient"`
	Content   string    `json:"content"`
}

// NextTask is a ranked candidate on an orient card. Scores are in [0,1].
type NextTask struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Rationale string    `json:"rationale"`
	Urgency   float64   `json:"urgency_score"`
	Impact    float64   `json:"impact_score"`
}

// Urgency is how strongly a break-in demands attention.
type Urgency string

// Urgency levels.
const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// BatchEmail summarizes one message in a batch review.
type BatchEmail struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId,omitempty"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Category string `json:"category"`
}

// DoNowContent is a focused edit ready to commit.
type DoNowContent struct {
	Intent  Intent `json:"intent"`
	Preview string `json:"preview"`
	Diff    *Diff  `json:"diff,omitempty"`
}

// ShipContent tracks definition-of-done checks for a release.
type ShipContent struct {
	Checks     []DoDCheck `json:"dod_chips"`
	VersionTag string     `json:"version_tag"`
}

// AmplifyContent lists audiences to update and drafts prepared so far.
type AmplifyContent struct {
	Suggestions []AmplifySuggestion `json:"suggestions"`
	Drafts      []Draft             `json:"drafts"`
}

// OrientContent ranks candidate next tasks.
type OrientContent struct {
	NextTasks []NextTask `json:"next_tasks"`
}

// ParkSnapshot holds what a card looked like before it was parked.
type ParkSnapshot struct {
	Altitude Altitude
	Actions  []Action
	Content  Content
}

// ParkedContent replaces a card's payload while it waits for a wake condition.
type ParkedContent struct {
	OriginalCardID uuid.UUID
	WakeTime       time.Time
	Reason         string
	Conditions     []WakeCondition
	Prior          *ParkSnapshot
}

// BreakInContent is an interruption from an external channel.
type BreakInContent struct {
	Source  string  `json:"source"`
	Message string  `json:"message"`
	Sender  string  `json:"sender"`
	Urgency Urgency `json:"urgency"`
}

// BatchReviewContent groups low-priority mail for bulk handling.
type BatchReviewContent struct {
	Emails           []BatchEmail `json:"emails"`
	SuggestedActions []string     `json:"suggested_actions"`
}

func (DoNowContent) Kind() Kind       { return KindDoNow }
func (ShipContent) Kind() Kind        { return KindShip }
func (AmplifyContent) Kind() Kind     { return KindAmplify }
func (OrientContent) Kind() Kind      { return KindOrient }
func (ParkedContent) Kind() Kind      { return KindParked }
func (BreakInContent) Kind() Kind     { return KindBreakIn }
func (BatchReviewContent) Kind() Kind { return KindBatchReview }

func (c DoNowContent) validate() error {
	if c.Diff != nil {
		for _, op := range c.Diff.Operations {
			switch op.Type {
			case DiffAdd, DiffRemove, DiffReplace:
			default:
				return fmt.Errorf("%w: unknown diff operation %q", ErrInvalidContent, op.Type)
			}
		}
	}
	return nil
}

func (c ShipContent) validate() error {
	for _, chk := range c.Checks {
		if chk.Status != CheckGreen && chk.Status != CheckRed {
			return fmt.Errorf("%w: check %q has status %q", ErrInvalidContent, chk.ID, chk.Status)
		}
	}
	return nil
}

func (AmplifyContent) validate() error { return nil }

func (c OrientContent) validate() error {
	for _, t := range c.NextTasks {
		if t.Urgency < 0 || t.Urgency > 1 || t.Impact < 0 || t.Impact > 1 {
			return fmt.Errorf("%w: task %q scores must be within [0,1]", ErrInvalidContent, t.Title)
		}
	}
	return nil
}

func (c ParkedContent) validate() error {
	if c.WakeTime.IsZero() {
		return fmt.Errorf("%w: wake time is required", ErrInvalidContent)
	}
	if c.Prior != nil && c.Prior.Content != nil && c.Prior.Content.Kind() == KindParked {
		return fmt.Errorf("%w: parked content cannot wrap parked content", ErrInvalidContent)
	}
	return nil
}

func (c BreakInContent) validate() error {
	switch c.Urgency {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return nil
	}
	return fmt.Errorf("%w: urgency %q", ErrInvalidContent, c.Urgency)
}

func (BatchReviewContent) validate() error { return nil }

func (c DoNowContent) clone() Content {
	c.Intent.Preconditions = append([]string(nil), c.Intent.Preconditions...)
	if c.Diff != nil {
		d := *c.Diff
		d.Operations = append([]DiffOperation(nil), c.Diff.Operations...)
		c.Diff = &d
	}
	return c
}

func (c ShipContent) clone() Content {
	c.Checks = append([]DoDCheck(nil), c.Checks...)
	return c
}

func (c AmplifyContent) clone() Content {
	c.Suggestions = append([]AmplifySuggestion(nil), c.Suggestions...)
	c.Drafts = append([]Draft(nil), c.Drafts...)
	return c
}

func (c OrientContent) clone() Content {
	c.NextTasks = append([]NextTask(nil), c.NextTasks...)
	return c
}

func (c ParkedContent) clone() Content {
	c.Conditions = append([]WakeCondition(nil), c.Conditions...)
	if c.Prior != nil {
		p := *c.Prior
		p.Actions = append([]Action(nil), c.Prior.Actions...)
		if p.Content != nil {
			p.Content = p.Content.clone()
		}
		c.Prior = &p
	}
	return c
}

func (c BreakInContent) clone() Content { return c }

func (c BatchReviewContent) clone() Content {
	c.Emails = append([]BatchEmail(nil), c.Emails...)
	c.SuggestedActions = append([]string(nil), c.SuggestedActions...)
	return c
}

type parkSnapshotJSON struct {
	Altitude Altitude        `json:"altitude"`
	Actions  []Action        `json:"actions"`
	Kind     Kind            `json:"card_type"`
	Content  json.RawMessage `json:"content"`
}

type parkedJSON struct {
	OriginalCardID uuid.UUID         `json:"original_card_id"`
	WakeTime       time.Time         `json:"wake_time"`
	Reason         string            `json:"wake_reason"`
	Conditions     []WakeCondition   `json:"wake_conditions,omitempty"`
	Prior          *parkSnapshotJSON `json:"prior,omitempty"`
}

// MarshalJSON encodes the parked payload including the pre-park snapshot.
func (c ParkedContent) MarshalJSON() ([]byte, error) {
	out := parkedJSON{
		OriginalCardID: c.OriginalCardID,
		WakeTime:       c.WakeTime,
		Reason:         c.Reason,
		Conditions:     c.Conditions,
	}
	if c.Prior != nil && c.Prior.Content != nil {
		body, err := MarshalContent(c.Prior.Content)
		if err != nil {
			return nil, err
		}
		out.Prior = &parkSnapshotJSON{
			Altitude: c.Prior.Altitude,
			Actions:  c.Prior.Actions,
			Kind:     c.Prior.Content.Kind(),
			Content:  body,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the parked payload.
func (c *ParkedContent) UnmarshalJSON(data []byte) error {
	var raw parkedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ParkedContent{
		OriginalCardID: raw.OriginalCardID,
		WakeTime:       raw.WakeTime,
		Reason:         raw.Reason,
		Conditions:     raw.Conditions,
	}
	if raw.Prior != nil {
		prior, err := DecodeContent(raw.Prior.Kind, raw.Prior.Content)
		if err != nil {
			return err
		}
		c.Prior = &ParkSnapshot{
			Altitude: raw.Prior.Altitude,
			Actions:  raw.Prior.Actions,
			Content:  prior,
		}
	}
	return nil
}

// MarshalContent encodes content as an object tagged with a "type" field
// naming its kind.
func MarshalContent(c Content) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidContent)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", c.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", c.Kind(), err)
	}
	fields["type"] = json.RawMessage(strconv.Quote(string(c.Kind())))
	return json.Marshal(fields)
}

// DecodeContent decodes a tagged payload for the declared kind. When the
// payload carries a "type" tag it must agree with kind; when kind is empty
// the tag alone selects the variant.
func DecodeContent(kind Kind, raw json.RawMessage) (Content, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidContent)
	}
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	switch {
	case kind == "" && tag.Type == "":
		return nil, fmt.Errorf("%w: content type is required", ErrInvalidKind)
	case kind == "":
		kind = tag.Type
	case tag.Type != "" && tag.Type != kind:
		return nil, fmt.Errorf("%w: content type %q does not match kind %q", ErrInvalidContent, tag.Type, kind)
	}

	var (
		content Content
		err     error
	)
	switch kind {
	case KindDoNow:
		content, err = decodeVariant[DoNowContent](raw)
	case KindShip:
		content, err = decodeVariant[ShipContent](raw)
	case KindAmplify:
		content, err = decodeVariant[AmplifyContent](raw)
	case KindOrient:
		content, err = decodeVariant[OrientContent](raw)
	case KindParked:
		content, err = decodeVariant[ParkedContent](raw)
	case KindBreakIn:
		content, err = decodeVariant[BreakInContent](raw)
	case KindBatchReview:
		content, err = decodeVariant[BatchReviewContent](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := content.validate(); err != nil {
		return nil, err
	}
	return content, nil
}

func decodeVariant[T Content](raw json.RawMessage) (Content, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
