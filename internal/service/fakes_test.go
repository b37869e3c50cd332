package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/feed"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/registry"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/phrazzld/cardfeed/internal/task"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory store.Store.
type fakeStore struct {
	mu      sync.Mutex
	cards   map[uuid.UUID][]byte
	wakes   map[uuid.UUID]time.Time
	threads map[string]uuid.UUID
	events  []store.QueueEvent
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:   make(map[uuid.UUID][]byte),
		wakes:   make(map[uuid.UUID]time.Time),
		threads: make(map[string]uuid.UUID),
	}
}

func (f *fakeStore) SaveCard(_ context.Context, id uuid.UUID, _, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.cards[id] = payload
	return nil
}

func (f *fakeStore) LoadCard(_ context.Context, id uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStoreDown
	}
	p, ok := f.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return p, nil
}

func (f *fakeStore) SaveWake(_ context.Context, id uuid.UUID, at time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.wakes[id] = at
	return nil
}

func (f *fakeStore) DeleteWake(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	delete(f.wakes, id)
	return nil
}

func (f *fakeStore) SaveParked(_ context.Context, id uuid.UUID, _, _ string, payload []byte, at time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.cards[id] = payload
	f.wakes[id] = at
	return nil
}

func (f *fakeStore) SaveUnparked(_ context.Context, id uuid.UUID, _, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.cards[id] = payload
	delete(f.wakes, id)
	return nil
}

func (f *fakeStore) LinkThread(_ context.Context, id uuid.UUID, channel, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.threads[channel+"/"+ts] = id
	return nil
}

func (f *fakeStore) FindCardByThread(_ context.Context, channel, ts string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.threads[channel+"/"+ts]
	if !ok {
		return uuid.Nil, store.ErrThreadNotFound
	}
	return id, nil
}

func (f *fakeStore) AppendQueueEvent(_ context.Context, e store.QueueEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStore) ListQueueEvents(_ context.Context, id uuid.UUID, _ int) ([]store.QueueEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.QueueEvent
	for _, e := range f.events {
		if e.CardID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) eventNames(id uuid.UUID) []string {
	events, _ := f.ListQueueEvents(context.Background(), id, 0)
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}
	return names
}

func (f *fakeStore) wakeFor(id uuid.UUID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.wakes[id]
	return at, ok
}

// fakeMetrics records service counters.
type fakeMetrics struct {
	mu      sync.Mutex
	wakes   map[string]int
	failed  map[string]int
	actions map[string]int
	parked  int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		wakes:   make(map[string]int),
		failed:  make(map[string]int),
		actions: make(map[string]int),
	}
}

func (m *fakeMetrics) WakeFired(trigger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wakes[trigger]++
}

func (m *fakeMetrics) ParkedChanged(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parked = n
}

func (m *fakeMetrics) PersistFailed(taskType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[taskType]++
}

func (m *fakeMetrics) CardAction(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action]++
}

func (m *fakeMetrics) failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.failed {
		total += n
	}
	return total
}

type fakePlanner struct {
	content domain.OrientContent
	err     error
	titles  []string
}

func (p *fakePlanner) Plan(_ context.Context, titles []string) (domain.OrientContent, error) {
	p.titles = titles
	return p.content, p.err
}

type fixture struct {
	svc       *cardServiceImpl
	registry  *registry.Registry
	scheduler *parking.Scheduler
	bus       *events.Bus
	store     *fakeStore
	metrics   *fakeMetrics
	sub       *events.Subscription
	now       time.Time
}

type fixtureOption func(*Dependencies)

func withoutStore() fixtureOption {
	return func(d *Dependencies) { d.Store = nil }
}

func withPlanner(p Planner) fixtureOption {
	return func(d *Dependencies) { d.Planner = p }
}

func withTasks(tasks task.Submitter) fixtureOption {
	return func(d *Dependencies) { d.Tasks = tasks }
}

// heldTasks collects submitted tasks so a test can run them in any order.
type heldTasks struct {
	mu    sync.Mutex
	tasks []task.Task
}

func (h *heldTasks) Submit(_ context.Context, t task.Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, t)
	return nil
}

// runReversed executes every held task, newest first.
func (h *heldTasks) runReversed(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	held := h.tasks
	h.tasks = nil
	h.mu.Unlock()
	for i := len(held) - 1; i >= 0; i-- {
		require.NoError(t, held[i].Execute(context.Background()))
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	reg := registry.New()
	sched := parking.New(parking.Config{TickInterval: time.Hour}, logger,
		parking.WithClock(func() time.Time { return now }))
	bus := events.NewBus(256, logger)
	fs := newFakeStore()
	fm := newFakeMetrics()

	deps := Dependencies{
		Registry:  reg,
		Scheduler: sched,
		Bus:       bus,
		Composer:  feed.New(reg, sched, 0),
		Store:     fs,
		Metrics:   fm,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc, err := NewCardService(deps, Config{BreakDelay: 15 * time.Minute}, logger)
	require.NoError(t, err)
	impl := svc.(*cardServiceImpl)
	impl.now = func() time.Time { return now }

	sub := bus.Subscribe()
	t.Cleanup(sub.Close)

	return &fixture{
		svc:       impl,
		registry:  reg,
		scheduler: sched,
		bus:       bus,
		store:     fs,
		metrics:   fm,
		sub:       sub,
		now:       now,
	}
}

// drain returns the names of every event published since the last call.
func (f *fixture) drain() []string {
	var names []string
	for {
		e, ok := f.sub.TryNext()
		if !ok {
			return names
		}
		names = append(names, e.Name)
	}
}

func (f *fixture) ingest(t *testing.T, content domain.Content) domain.Card {
	t.Helper()
	card, err := domain.NewCard("card", content)
	require.NoError(t, err)
	card, err = f.svc.Ingest(context.Background(), card)
	require.NoError(t, err)
	return card
}
