package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		content      Content
		wantKind     Kind
		wantAltitude Altitude
		wantStatus   Status
	}{
		{"do now", DoNowContent{Preview: "rename x"}, KindDoNow, AltitudeDo, StatusActive},
		{"ship", ShipContent{VersionTag: "v1"}, KindShip, AltitudeShip, StatusActive},
		{"amplify", AmplifyContent{}, KindAmplify, AltitudeAmplify, StatusActive},
		{"orient", OrientContent{}, KindOrient, AltitudeOrient, StatusActive},
		{"break in", BreakInContent{Urgency: UrgencyHigh}, KindBreakIn, AltitudeDo, StatusActive},
		{"batch review", BatchReviewContent{}, KindBatchReview, AltitudeOrient, StatusActive},
		{
			"parked",
			ParkedContent{WakeTime: time.Now().Add(time.Hour)},
			KindParked,
			AltitudeDo,
			StatusParked,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			card, err := NewCard("title", tc.content)
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, card.ID)
			assert.Equal(t, tc.wantKind, card.Kind())
			assert.Equal(t, tc.wantAltitude, card.Altitude)
			assert.Equal(t, tc.wantStatus, card.Status)
			assert.Equal(t, DefaultActions(tc.wantKind), card.Actions)
			assert.False(t, card.CreatedAt.IsZero())
		})
	}
}

func TestNewCardValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCard("", DoNowContent{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCard("t", nil)
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = NewCard("t", OrientContent{NextTasks: []NextTask{{Title: "x", Urgency: 1.5}}})
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = NewCard("t", BreakInContent{Urgency: "whenever"})
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = NewCard("t", ShipContent{Checks: []DoDCheck{{ID: "a", Status: "amber"}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCard("t", DoNowContent{}, WithAltitude("sideways"))
	assert.ErrorIs(t, err, ErrInvalidAltitude)
}

func TestCardOptions(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	card, err := NewCard("reply to Ana", BreakInContent{Urgency: UrgencyLow},
		WithID(id),
		WithAltitude(AltitudeOrient),
		WithActions(ActionOpen),
		WithOrigin(Origin{DocID: "doc-1"}),
		WithMetadata(Metadata{EmailSender: "ana@example.com"}),
		WithCreatedAt(created),
	)
	require.NoError(t, err)

	assert.Equal(t, id, card.ID)
	assert.Equal(t, AltitudeOrient, card.Altitude)
	assert.Equal(t, []Action{ActionOpen}, card.Actions)
	assert.True(t, card.Allows(ActionOpen))
	assert.False(t, card.Allows(ActionCommit))
	assert.Equal(t, "doc-1", card.Origin.DocID)
	assert.Equal(t, "ana@example.com", card.Metadata.EmailSender)
	assert.Equal(t, created, card.CreatedAt)
}

func TestCardCloneIsDeep(t *testing.T) {
	t.Parallel()

	card, err := NewCard("ship it", ShipContent{
		Checks: []DoDCheck{{ID: "tests", Label: "Tests", Status: CheckRed}},
	}, WithMetadata(Metadata{ReplyTemplates: []string{"ok"}}))
	require.NoError(t, err)

	clone := card.Clone()
	clone.Actions[0] = ActionUndo
	clone.Metadata.ReplyTemplates[0] = "changed"
	clone.Content.(ShipContent).Checks[0].Status = CheckGreen

	assert.Equal(t, ActionCommit, card.Actions[0])
	assert.Equal(t, "ok", card.Metadata.ReplyTemplates[0])
	assert.Equal(t, CheckRed, card.Content.(ShipContent).Checks[0].Status)
}

func TestCardJSON(t *testing.T) {
	t.Parallel()

	card, err := NewCard("focus", DoNowContent{
		Intent:  Intent{ID: uuid.New(), Name: "Tighten", Type: IntentTransform},
		Preview: "shorter",
	})
	require.NoError(t, err)

	data, err := json.Marshal(card)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "do_now", fields["card_type"])
	assert.Equal(t, "do", fields["altitude"])
	assert.Equal(t, "active", fields["status"])
	content := fields["content"].(map[string]any)
	assert.Equal(t, "do_now", content["type"])
	assert.Equal(t, "shorter", content["preview"])

	var decoded Card
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, card.ID, decoded.ID)
	assert.Equal(t, KindDoNow, decoded.Kind())
	assert.Equal(t, "shorter", decoded.Content.(DoNowContent).Preview)
}

func TestDecodeContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    Kind
		wantErr error
	}{
		{"tag selects variant", "", `{"type":"ship","dod_chips":[],"version_tag":"v2"}`, KindShip, nil},
		{"kind without tag", KindOrient, `{"next_tasks":[]}`, KindOrient, nil},
		{"tag agrees with kind", KindBreakIn, `{"type":"break_in","urgency":"medium"}`, KindBreakIn, nil},
		{"tag disagrees with kind", KindShip, `{"type":"orient","next_tasks":[]}`, "", ErrInvalidContent},
		{"unknown kind", "sideways", `{}`, "", ErrInvalidKind},
		{"no kind at all", "", `{"preview":"x"}`, "", ErrInvalidKind},
		{"malformed", KindDoNow, `{"preview":`, "", ErrInvalidContent},
		{"empty", KindDoNow, ``, "", ErrInvalidContent},
		{"wrong field type", KindShip, `{"version_tag":7}`, "", ErrInvalidContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			content, err := DecodeContent(tc.kind, json.RawMessage(tc.raw))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, content.Kind())
		})
	}
}

func TestParkedContentKeepsPriorSnapshot(t *testing.T) {
	t.Parallel()

	wake := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	parked := ParkedContent{
		OriginalCardID: uuid.New(),
		WakeTime:       wake,
		Reason:         "after standup",
		Conditions:     []WakeCondition{TimeCondition(wake), EventCondition(EventThreadReplied)},
		Prior: &ParkSnapshot{
			Altitude: AltitudeShip,
			Actions:  []Action{ActionCommit},
			Content:  ShipContent{VersionTag: "v3"},
		},
	}

	raw, err := MarshalContent(parked)
	require.NoError(t, err)

	decoded, err := DecodeContent(KindParked, raw)
	require.NoError(t, err)
	got := decoded.(ParkedContent)
	assert.Equal(t, parked.OriginalCardID, got.OriginalCardID)
	assert.True(t, wake.Equal(got.WakeTime))
	assert.Equal(t, "after standup", got.Reason)
	require.Len(t, got.Conditions, 2)
	assert.Equal(t, WakeEvent, got.Conditions[1].Type)
	require.NotNil(t, got.Prior)
	assert.Equal(t, AltitudeShip, got.Prior.Altitude)
	assert.Equal(t, "v3", got.Prior.Content.(ShipContent).VersionTag)
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	k, err := ParseKind(" Batch_Review ")
	require.NoError(t, err)
	assert.Equal(t, KindBatchReview, k)

	a, err := ParseAltitude("AMPLIFY")
	require.NoError(t, err)
	assert.Equal(t, AltitudeAmplify, a)

	_, err = ParseAltitude("stratosphere")
	assert.ErrorIs(t, err, ErrInvalidAltitude)

	act, err := ParseAction("show_diff")
	require.NoError(t, err)
	assert.Equal(t, ActionShowDiff, act)

	_, err = ParseAction("teleport")
	assert.ErrorIs(t, err, ErrInvalidAction)

	assert.Less(t, AltitudeDo.Rank(), AltitudeShip.Rank())
	assert.Less(t, AltitudeAmplify.Rank(), AltitudeOrient.Rank())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusParked.Terminal())
}

func TestWakeCondition(t *testing.T) {
	t.Parallel()

	assert.NoError(t, TimeCondition(time.Now()).Validate())
	assert.ErrorIs(t, WakeCondition{Type: WakeTime}.Validate(), ErrInvalidWakeCondition)
	assert.ErrorIs(t, EventCondition("").Validate(), ErrInvalidWakeCondition)
	assert.ErrorIs(t, WakeCondition{Type: "lunar"}.Validate(), ErrInvalidWakeCondition)

	assert.True(t, EventCondition("x").Matches(EventCondition("x")))
	assert.False(t, EventCondition("x").Matches(EventCondition("y")))
	assert.True(t, MemoryChangeCondition("k").Matches(MemoryChangeCondition("k")))
	assert.False(t, TimeCondition(time.Now()).Matches(TimeCondition(time.Now())))
}

func TestSaturatingAdd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(5), SaturatingAdd(2, 3))
	assert.Equal(t, uint8(255), SaturatingAdd(250, 10))
	assert.Equal(t, uint8(7), SaturatingAdd(7, 0))
	assert.Equal(t, uint8(7), SaturatingAdd(7, -3))
}
