package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/feed"
	"github.com/phrazzld/cardfeed/internal/mocks"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/registry"
	"github.com/phrazzld/cardfeed/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func rankingPlanner() *mocks.MockPlanner {
	return &mocks.MockPlanner{
		PlanFn: func(_ context.Context, titles []string) (domain.OrientContent, error) {
			tasks := make([]domain.NextTask, len(titles))
			for i, title := range titles {
				tasks[i] = domain.NextTask{ID: uuid.New(), Title: title, Urgency: 0.5, Impact: 0.5}
			}
			return domain.OrientContent{NextTasks: tasks}, nil
		},
	}
}

type testAPI struct {
	server *httptest.Server
	svc    service.CardService
}

func newTestAPI(t *testing.T, planner service.Planner) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New()
	sched := parking.New(parking.Config{TickInterval: time.Hour}, log)
	svc, err := service.NewCardService(service.Dependencies{
		Registry:  reg,
		Scheduler: sched,
		Bus:       events.NewBus(64, log),
		Composer:  feed.New(reg, sched, 0),
		Planner:   planner,
	}, service.Config{HeartbeatInterval: time.Hour}, log)
	require.NoError(t, err)

	cards := NewCardHandler(svc, log)
	cards.now = func() time.Time { return testNow }
	feeds := NewFeedHandler(svc, log)
	stream := NewStreamHandler(svc, log)
	mem := NewMemoryHandler(svc, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cards", cards.CreateCard)
		r.Get("/cards", cards.ListCards)
		r.Get("/cards/parked", cards.ListParked)
		r.Get("/cards/{id}", cards.GetCard)
		r.Post("/cards/{id}/actions", cards.PerformAction)
		r.Post("/cards/{id}/park", cards.ParkCard)
		r.Post("/cards/{id}/unpark", cards.UnparkCard)
		r.Post("/cards/{id}/snooze", cards.SnoozeCard)
		r.Post("/cards/{id}/signal", cards.SignalCard)
		r.Get("/cards/{id}/events", cards.CardHistory)
		r.Get("/memory/working-set", mem.GetWorkingSet)
		r.Put("/memory/working-set", mem.UpdateWorkingSet)
		r.Get("/memory/summaries/{key}", mem.GetSummary)
		r.Put("/memory/summaries/{key}", mem.PutSummary)
		r.Get("/feed", feeds.GetFeed)
		r.Get("/feed/altitude", feeds.GetAltitude)
		r.Put("/feed/altitude", feeds.SetAltitude)
		r.Delete("/feed/altitude", feeds.ClearAltitude)
		r.Get("/altimeter", feeds.GetAltimeter)
		r.Post("/orient/plan", feeds.PlanOrient)
		r.Get("/stream/cards", stream.StreamCards)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testAPI{server: server, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+"/api/v1"+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) createCard(t *testing.T, body string) domain.Card {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/cards", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var card domain.Card
	require.NoError(t, json.Unmarshal(data, &card))
	return card
}

const doNowBody = `{"kind":"do_now","title":"Rename handler","content":{"preview":"rename"}}`

func errorMessage(t *testing.T, data []byte) string {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	return body.Error
}

func TestCreateAndGetCard(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	card := a.createCard(t, doNowBody)
	assert.Equal(t, "Rename handler", card.Title)
	assert.Equal(t, domain.KindDoNow, card.Kind())
	assert.Equal(t, domain.StatusActive, card.Status)

	resp, data := a.do(t, http.MethodGet, "/cards/"+card.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Card
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, card.ID, got.ID)
}

func TestCreateCardErrors(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "malformed json", body: `{"kind":`, status: http.StatusBadRequest, message: "Invalid request format"},
		{name: "unknown field", body: `{"kind":"do_now","title":"x","content":{},"owner":"me"}`, status: http.StatusBadRequest, message: "Invalid request format"},
		{name: "missing title", body: `{"kind":"do_now","content":{}}`, status: http.StatusBadRequest, message: "Invalid title: required field"},
		{name: "unknown kind", body: `{"kind":"memo","title":"x","content":{}}`, status: http.StatusBadRequest, message: "Invalid card kind"},
		{name: "mismatched content", body: `{"kind":"do_now","title":"x","content":{"type":"ship"}}`, status: http.StatusBadRequest, message: "Invalid card content"},
		{name: "bad altitude", body: `{"kind":"do_now","title":"x","content":{},"altitude":"up"}`, status: http.StatusBadRequest, message: "Invalid altitude"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := a.do(t, http.MethodPost, "/cards", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, errorMessage(t, data))
		})
	}
}

func TestGetCardErrors(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	resp, data := a.do(t, http.MethodGet, "/cards/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request format", errorMessage(t, data))

	resp, data = a.do(t, http.MethodGet, "/cards/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Card not found", errorMessage(t, data))
}

func TestListCards(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	a.createCard(t, doNowBody)
	a.createCard(t, `{"kind":"amplify","title":"Tell the team","content":{}}`)

	resp, data := a.do(t, http.MethodGet, "/cards?kind=amplify", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list CardListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 1, list.Count)

	resp, _ = a.do(t, http.MethodGet, "/cards?status=sleeping", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPerformActionEndpoint(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	card := a.createCard(t, doNowBody)
	path := "/cards/" + card.ID.String() + "/actions"

	resp, data := a.do(t, http.MethodPost, path, `{"action":"archive_all"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Action not permitted for this card", errorMessage(t, data))

	resp, data = a.do(t, http.MethodPost, path, `{"action":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown action", errorMessage(t, data))

	resp, data = a.do(t, http.MethodPost, path, `{"action":"commit"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done domain.Card
	require.NoError(t, json.Unmarshal(data, &done))
	assert.Equal(t, domain.StatusCompleted, done.Status)

	resp, data = a.do(t, http.MethodPost, path, `{"action":"commit"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Card is already closed", errorMessage(t, data))
}

func TestParkSnoozeUnpark(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	card := a.createCard(t, doNowBody)
	base := "/cards/" + card.ID.String()

	resp, data := a.do(t, http.MethodPost, base+"/park", `{"minutes":30,"reason":"after standup"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var item domain.ParkedItem
	require.NoError(t, json.Unmarshal(data, &item))
	assert.Equal(t, testNow.Add(30*time.Minute), item.WakeTime)
	assert.Equal(t, "after standup", item.Context)

	resp, data = a.do(t, http.MethodPost, base+"/snooze", `{"minutes":15}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &item))
	assert.Equal(t, testNow.Add(45*time.Minute), item.WakeTime)

	resp, data = a.do(t, http.MethodGet, "/cards/parked", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var parked ParkedListResponse
	require.NoError(t, json.Unmarshal(data, &parked))
	assert.Equal(t, 1, parked.Count)

	resp, data = a.do(t, http.MethodPost, base+"/unpark", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restored domain.Card
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, domain.KindDoNow, restored.Kind())

	resp, data = a.do(t, http.MethodPost, base+"/unpark", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Card is not parked", errorMessage(t, data))

	resp, _ = a.do(t, http.MethodPost, base+"/snooze", `{"minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, base+"/park", `{"reason":"no time"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedAndAltitude(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	a.createCard(t, doNowBody)
	a.createCard(t, `{"kind":"ship","title":"Release","content":{"dod_chips":[],"version_tag":"v1"}}`)

	resp, data := a.do(t, http.MethodGet, "/feed?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var f feed.Feed
	require.NoError(t, json.Unmarshal(data, &f))
	require.Len(t, f.Cards, 1)
	assert.Equal(t, domain.KindDoNow, f.Cards[0].Kind())

	resp, data = a.do(t, http.MethodGet, "/feed?altitude=ship", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &f))
	require.Len(t, f.Cards, 1)
	assert.Equal(t, domain.KindShip, f.Cards[0].Kind())

	resp, _ = a.do(t, http.MethodGet, "/feed?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = a.do(t, http.MethodGet, "/feed?altitude=space", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = a.do(t, http.MethodPut, "/feed/altitude", `{"altitude":"orient"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state domain.AltitudeState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, domain.AltitudeOrient, state.Current)
	assert.True(t, state.Manual)

	resp, data = a.do(t, http.MethodDelete, "/feed/altitude", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &state))
	assert.False(t, state.Manual)

	resp, data = a.do(t, http.MethodGet, "/altimeter", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"systemAltitude"`)
}

func TestPlanOrientEndpoint(t *testing.T) {
	t.Parallel()

	disabled := newTestAPI(t, nil)
	resp, data := disabled.do(t, http.MethodPost, "/orient/plan", `{"tasks":["a"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Feature not configured", errorMessage(t, data))

	planner := rankingPlanner()
	enabled := newTestAPI(t, planner)
	resp, data = enabled.do(t, http.MethodPost, "/orient/plan", `{"tasks":["write docs","fix flaky test"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var card domain.Card
	require.NoError(t, json.Unmarshal(data, &card))
	assert.Equal(t, domain.KindOrient, card.Kind())
	assert.Equal(t, [][]string{{"write docs", "fix flaky test"}}, planner.Calls())

	resp, _ = enabled.do(t, http.MethodPost, "/orient/plan", `{"tasks":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	failing := newTestAPI(t, &mocks.MockPlanner{Err: errors.New("quota exceeded")})
	resp, data = failing.do(t, http.MethodPost, "/orient/plan", `{"tasks":["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to plan tasks", errorMessage(t, data))
}

func TestStreamCards(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	existing := a.createCard(t, doNowBody)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/api/v1/stream/cards", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan map[string]string, 8)
	go func() {
		defer close(frames)
		scanner := bufio.NewScanner(resp.Body)
		frame := map[string]string{}
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				frames <- frame
				frame = map[string]string{}
				continue
			}
			key, value, _ := strings.Cut(line, ": ")
			frame[key] = value
		}
	}()

	next := func() map[string]string {
		select {
		case f, ok := <-frames:
			require.True(t, ok, "stream ended early")
			return f
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for frame")
			return nil
		}
	}

	hydrate := next()
	assert.Equal(t, events.QueueHydrate, hydrate["event"])
	assert.Contains(t, hydrate["data"], existing.ID.String())
	assert.Empty(t, hydrate["id"], "hydrate frames carry no sequence")

	created := a.createCard(t, `{"kind":"amplify","title":"Announce","content":{}}`)
	frame := next()
	assert.Equal(t, events.CardNew, frame["event"])
	assert.NotEmpty(t, frame["id"])
	assert.Contains(t, frame["data"], created.ID.String())
}

func TestSignalCard(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	card := a.createCard(t, doNowBody)
	base := "/cards/" + card.ID.String()

	resp, data := a.do(t, http.MethodPost, base+"/park",
		`{"minutes":60,"conditions":[{"type":"event","event":"mentioned"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var sig SignalResponse
	resp, data = a.do(t, http.MethodPost, base+"/signal", `{"type":"event","event":"thread_replied"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &sig))
	assert.False(t, sig.Woke)

	resp, data = a.do(t, http.MethodPost, base+"/signal", `{"type":"event","event":"mentioned"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &sig))
	assert.True(t, sig.Woke)

	resp, _ = a.do(t, http.MethodPost, base+"/signal", `{"type":"time"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, data = a.do(t, http.MethodPost, base+"/signal", `{"type":"event"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid wake condition", errorMessage(t, data))
}

func TestCardHistoryWithoutStore(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	card := a.createCard(t, doNowBody)

	resp, data := a.do(t, http.MethodGet, "/cards/"+card.ID.String()+"/events", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Feature not configured", errorMessage(t, data))

	resp, _ = a.do(t, http.MethodGet, "/cards/"+card.ID.String()+"/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMemoryEndpointsWakeParkedCards(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	card := a.createCard(t, doNowBody)

	resp, data := a.do(t, http.MethodPost, "/cards/"+card.ID.String()+"/park",
		`{"minutes":60,"conditions":[{"type":"memory_change","key":"doc-1"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = a.do(t, http.MethodPut, "/memory/working-set", `{"doc_id":"doc-1","content":"draft"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res service.WorkingSetResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, []uuid.UUID{card.ID}, res.Woken)
	require.NotNil(t, res.WorkingSet.ActiveDoc)
	assert.Equal(t, "Document doc-1", res.WorkingSet.ActiveDoc.Title)

	resp, data = a.do(t, http.MethodGet, "/memory/working-set", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"doc_id":"doc-1"`)

	resp, data = a.do(t, http.MethodGet, "/memory/summaries/weekly", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(data))

	resp, data = a.do(t, http.MethodPut, "/memory/summaries/weekly", `{"text":"shipped v2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, data = a.do(t, http.MethodGet, "/memory/summaries/weekly", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "shipped v2")

	resp, _ = a.do(t, http.MethodPut, "/memory/summaries/weekly", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
