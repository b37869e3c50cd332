package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/cardfeed/internal/api"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/mocks"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthInMemory(t *testing.T) {
	t.Parallel()
	_, srv := startTestApp(t, testConfig())

	resp, data := doRequest(t, http.MethodGet, srv.URL+"/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "none", health.Store)
}

func TestHealthStoreUnavailable(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Database.Driver = "postgres"
	app, err := newApplication(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)
	defer app.cleanup()
	app.config = cfg
	app.store = &mocks.MockStore{Err: store.ErrUnavailable}

	srv := httptest.NewServer(app.setupRouter())
	defer srv.Close()

	resp, data := doRequest(t, http.MethodGet, srv.URL+"/health", "", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "unavailable", health.Status)
	assert.Equal(t, "postgres", health.Store)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	_, srv := startTestApp(t, testConfig())

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/v1/cards", "",
		`{"kind":"do_now","title":"Rename handler","content":{}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := doRequest(t, http.MethodGet, srv.URL+"/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "cardfeed_bus_events_published_total")
	assert.Contains(t, string(data), "go_goroutines")
}

func TestAuthenticatedRoutes(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.JWTSecret = testJWTSecret
	app, srv := startTestApp(t, cfg)
	require.NotNil(t, app.jwtService)

	token, err := app.jwtService.GenerateToken(context.Background(), "tester")
	require.NoError(t, err)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cards"},
		{http.MethodGet, "/api/v1/cards/parked"},
		{http.MethodGet, "/api/v1/feed"},
		{http.MethodGet, "/api/v1/altimeter"},
		{http.MethodPost, "/api/v1/mail/ingest"},
		{http.MethodPost, "/api/v1/slack/map"},
	}
	for _, p := range protected {
		p := p
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			t.Parallel()
			resp, _ := doRequest(t, p.method, srv.URL+p.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	resp, data := doRequest(t, http.MethodGet, srv.URL+"/api/v1/feed", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSlackEventsUnconfigured(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Auth.JWTSecret = testJWTSecret
	_, srv := startTestApp(t, cfg)

	// Outside bearer auth; without a signing secret the endpoint is off.
	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/v1/slack/events", "",
		`{"type":"url_verification","challenge":"abc"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMailIngestRoute(t *testing.T) {
	t.Parallel()
	_, srv := startTestApp(t, testConfig())

	body := `{"messages":[
		{"id":"m1","thread_id":"t1","from":"Ana <ana@example.com>","subject":"Lunch?","snippet":"hey, are you free for lunch?"},
		{"id":"m2","from":"news@example.com","subject":"Weekly digest","snippet":"unsubscribe here"}
	]}`
	resp, data := doRequest(t, http.MethodPost, srv.URL+"/api/v1/mail/ingest", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var list api.CardListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Equal(t, 2, list.Count)
	kinds := []domain.Kind{list.Cards[0].Kind(), list.Cards[1].Kind()}
	assert.Contains(t, kinds, domain.KindDoNow)
	assert.Contains(t, kinds, domain.KindBatchReview)

	resp, data = doRequest(t, http.MethodGet, srv.URL+"/api/v1/cards", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 2, list.Count)
}

func TestPlanOrientWithoutPlanner(t *testing.T) {
	t.Parallel()
	_, srv := startTestApp(t, testConfig())

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/v1/orient/plan", "", `{"tasks":["write report"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
