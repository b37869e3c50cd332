package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	m := New(NewRegistry(false), slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.EventPublished("card.new")
	m.EventPublished("card.new")
	m.EventDropped("card.update")
	m.SubscribersChanged(3)
	m.WakeFired("time")
	m.ParkedChanged(2)
	m.PersistFailed("save_card")
	m.StoreUnavailable("postgres")
	m.CardAction("commit")

	out := scrape(t, m)
	assert.Contains(t, out, `cardfeed_bus_events_published_total{event="card.new"} 2`)
	assert.Contains(t, out, `cardfeed_bus_events_dropped_total{event="card.update"} 1`)
	assert.Contains(t, out, `cardfeed_bus_subscribers 3`)
	assert.Contains(t, out, `cardfeed_parking_wakes_fired_total{trigger="time"} 1`)
	assert.Contains(t, out, `cardfeed_parking_parked_cards 2`)
	assert.Contains(t, out, `cardfeed_store_persist_failures_total{task_type="save_card"} 1`)
	assert.Contains(t, out, `cardfeed_store_open_failures_total{driver="postgres"} 1`)
	assert.Contains(t, out, `cardfeed_cards_actions_total{action="commit"} 1`)
}

func TestProcessCollectors(t *testing.T) {
	t.Parallel()

	out := scrape(t, New(nil, nil))
	assert.Contains(t, out, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventPublished("x")
		m.EventDropped("x")
		m.SubscribersChanged(1)
		m.WakeFired("event")
		m.ParkedChanged(1)
		m.PersistFailed("x")
		m.StoreUnavailable("x")
		m.CardAction("x")
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
