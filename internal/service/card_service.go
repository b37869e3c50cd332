package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/altimeter"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/feed"
	"github.com/phrazzld/cardfeed/internal/memory"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/redact"
	"github.com/phrazzld/cardfeed/internal/registry"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/phrazzld/cardfeed/internal/task"
)

// DefaultBreakDelay is how long respond_at_break parks a card when no delay
// is configured.
const DefaultBreakDelay = 30 * time.Minute

// Metrics records service-level counters. *metrics.Metrics satisfies it.
type Metrics interface {
	WakeFired(trigger string)
	ParkedChanged(n int)
	PersistFailed(taskType string)
	CardAction(action string)
}

type nopMetrics struct{}

func (nopMetrics) WakeFired(string)     {}
func (nopMetrics) ParkedChanged(int)    {}
func (nopMetrics) PersistFailed(string) {}
func (nopMetrics) CardAction(string)    {}

// Config holds service settings.
type Config struct {
	// BreakDelay is how far respond_at_break pushes a card.
	BreakDelay time.Duration
	// HeartbeatInterval is the altimeter heartbeat period on streams.
	HeartbeatInterval time.Duration
}

// Dependencies are the collaborators of CardService. Registry, Scheduler,
// Bus and Composer are required; the rest are optional.
type Dependencies struct {
	Registry  *registry.Registry
	Scheduler *parking.Scheduler
	Bus       *events.Bus
	Composer  *feed.Composer

	// Store enables best-effort persistence.
	Store store.Store
	// Tasks runs persistence writes in the background. Without it writes
	// run inline.
	Tasks   task.Submitter
	Metrics Metrics
	Planner Planner
	// Memory holds the working set. A fresh in-memory store is used when nil.
	Memory *memory.Store
}

// CreateCardInput is the boundary form of a new card.
type CreateCardInput struct {
	Kind     string           `json:"kind"`
	Title    string           `json:"title"`
	Content  json.RawMessage  `json:"content"`
	Altitude string           `json:"altitude,omitempty"`
	Actions  []string         `json:"actions,omitempty"`
	Origin   *domain.Origin   `json:"origin,omitempty"`
	Metadata *domain.Metadata `json:"metadata,omitempty"`
}

// ListFilter narrows ListCards. Zero values match everything.
type ListFilter struct {
	Status domain.Status
	Kind   domain.Kind
}

// ParkInput describes when a card should return.
type ParkInput struct {
	WakeTime   time.Time              `json:"wake_time"`
	Reason     string                 `json:"reason"`
	Conditions []domain.WakeCondition `json:"conditions,omitempty"`
}

// CardService is the administrative surface over the card feed core.
type CardService interface {
	// CreateCard validates and registers a new card, then publishes card.new.
	CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error)

	// Ingest registers a card produced by a connector.
	Ingest(ctx context.Context, card domain.Card) (domain.Card, error)

	// GetCard returns a card, falling back to the store on a registry miss.
	GetCard(ctx context.Context, id uuid.UUID) (domain.Card, error)

	// ListCards returns registered cards in creation order.
	ListCards(ctx context.Context, filter ListFilter) []domain.Card

	// PerformAction applies a user action to a card.
	PerformAction(ctx context.Context, id uuid.UUID, action string, payload json.RawMessage) (domain.Card, error)

	// Park defers a card until its wake time or a declared condition.
	Park(ctx context.Context, id uuid.UUID, in ParkInput) (domain.ParkedItem, error)

	// Unpark returns a parked card to the feed. ok is false when the card
	// was not parked.
	Unpark(ctx context.Context, id uuid.UUID) (card domain.Card, ok bool)

	// Snooze pushes a parked card's wake time back by minutes.
	Snooze(ctx context.Context, id uuid.UUID, minutes int) (domain.ParkedItem, error)

	// ListParked projects all parked cards, soonest first.
	ListParked(ctx context.Context) []domain.ParkedItem

	// Signal delivers an external wake trigger. It reports whether the card
	// woke.
	Signal(ctx context.Context, id uuid.UUID, signal domain.WakeCondition) (bool, error)

	// SignalAll delivers a wake trigger to every parked card that declared
	// it and returns the ids that woke.
	SignalAll(ctx context.Context, signal domain.WakeCondition) ([]uuid.UUID, error)

	// History returns a card's lifecycle log, oldest first.
	History(ctx context.Context, id uuid.UUID, limit int) ([]store.QueueEvent, error)

	// WorkingSet returns the current focus.
	WorkingSet(ctx context.Context) memory.WorkingSet

	// UpdateWorkingSet changes the focus and wakes cards waiting on the
	// changed memory keys.
	UpdateWorkingSet(ctx context.Context, u memory.Update) WorkingSetResult

	// Summary returns the summary stored under key.
	Summary(ctx context.Context, key string) (memory.Summary, error)

	// PutSummary stores a summary and wakes cards waiting on its key.
	PutSummary(ctx context.Context, key, text string) (SummaryResult, error)

	// Wake is the wake loop callback.
	Wake(ctx context.Context, id uuid.UUID)

	// Feed composes the prioritized view.
	Feed(ctx context.Context, filter *domain.Altitude, limit int) feed.Feed

	// CurrentAltitude returns the working altitude and its history.
	CurrentAltitude(ctx context.Context) domain.AltitudeState

	// SetAltitude pins the working altitude.
	SetAltitude(ctx context.Context, altitude string) (domain.AltitudeState, error)

	// ClearAltitude returns to the altimeter recommendation.
	ClearAltitude(ctx context.Context) domain.AltitudeState

	// Altimeter returns the current altimeter update.
	Altimeter(ctx context.Context) altimeter.Update

	// Subscribe returns the merged event stream for one client.
	Subscribe(ctx context.Context) <-chan events.Event

	// LinkThread associates a chat thread with a card.
	LinkThread(ctx context.Context, id uuid.UUID, channel, threadTS string)

	// FindCardByThread resolves a chat thread to its card.
	FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, bool)

	// PlanOrient asks the planner to rank tasks and ingests the result.
	PlanOrient(ctx context.Context, titles []string) (domain.Card, error)

	// Start launches the wake loop.
	Start() error

	// Stop halts the wake loop. Parked cards stay parked.
	Stop()
}

type threadKey struct {
	channel  string
	threadTS string
}

// cardServiceImpl implements the CardService interface
type cardServiceImpl struct {
	registry  *registry.Registry
	scheduler *parking.Scheduler
	bus       *events.Bus
	composer  *feed.Composer
	planner   Planner
	memory    *memory.Store
	persist   *persister
	metrics   Metrics
	locks     *keyedMutex
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	threadMu sync.RWMutex
	threads  map[threadKey]uuid.UUID
	// linked holds cards with at least one chat thread.
	linked map[uuid.UUID]struct{}
}

// NewCardService creates a CardService. It returns an error if any of the
// required dependencies are nil.
func NewCardService(deps Dependencies, cfg Config, log *slog.Logger) (CardService, error) {
	if deps.Registry == nil {
		return nil, domain.NewValidationError("registry", "cannot be nil", domain.ErrValidation)
	}
	if deps.Scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if deps.Bus == nil {
		return nil, domain.NewValidationError("bus", "cannot be nil", domain.ErrValidation)
	}
	if deps.Composer == nil {
		return nil, domain.NewValidationError("composer", "cannot be nil", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "card_service"))

	m := deps.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	if cfg.BreakDelay <= 0 {
		cfg.BreakDelay = DefaultBreakDelay
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = events.DefaultHeartbeatInterval
	}

	s := &cardServiceImpl{
		registry:  deps.Registry,
		scheduler: deps.Scheduler,
		bus:       deps.Bus,
		composer:  deps.Composer,
		planner:   deps.Planner,
		memory:    deps.Memory,
		persist:   newPersister(deps.Store, deps.Tasks, m, log),
		metrics:   m,
		locks:     newKeyedMutex(),
		config:    cfg,
		logger:    log,
		now:       time.Now,
		threads:   make(map[threadKey]uuid.UUID),
		linked:    make(map[uuid.UUID]struct{}),
	}

	if s.memory == nil {
		s.memory = memory.NewStore(func() time.Time { return s.now() })
	}

	if s.persist.enabled() {
		s.bus.RegisterHandler(&auditHandler{persist: s.persist})
	} else {
		log.Info("no store configured, running without persistence")
	}
	return s, nil
}

// CreateCard implements CardService.CreateCard
func (s *cardServiceImpl) CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	card, err := buildCard(in)
	if err != nil {
		return domain.Card{}, NewServiceError("create_card", "invalid card", err)
	}
	return s.Ingest(ctx, card)
}

func buildCard(in CreateCardInput) (domain.Card, error) {
	kind, err := domain.ParseKind(in.Kind)
	if err != nil {
		return domain.Card{}, err
	}
	if kind == domain.KindParked {
		return domain.Card{}, fmt.Errorf("%w: parked cards are created by parking", domain.ErrInvalidKind)
	}
	content, err := domain.DecodeContent(kind, in.Content)
	if err != nil {
		return domain.Card{}, err
	}

	var opts []domain.CardOption
	if in.Altitude != "" {
		alt, err := domain.ParseAltitude(in.Altitude)
		if err != nil {
			return domain.Card{}, err
		}
		opts = append(opts, domain.WithAltitude(alt))
	}
	if len(in.Actions) > 0 {
		actions := make([]domain.Action, 0, len(in.Actions))
		for _, name := range in.Actions {
			a, err := domain.ParseAction(name)
			if err != nil {
				return domain.Card{}, err
			}
			actions = append(actions, a)
		}
		opts = append(opts, domain.WithActions(actions...))
	}
	if in.Origin != nil {
		opts = append(opts, domain.WithOrigin(*in.Origin))
	}
	if in.Metadata != nil {
		opts = append(opts, domain.WithMetadata(*in.Metadata))
	}
	return domain.NewCard(in.Title, content, opts...)
}

// Ingest implements CardService.Ingest
func (s *cardServiceImpl) Ingest(ctx context.Context, card domain.Card) (domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if card.Content == nil {
		return domain.Card{}, NewServiceError("ingest", "invalid card",
			fmt.Errorf("%w: content is required", domain.ErrInvalidContent))
	}
	if card.Kind() == domain.KindParked {
		return domain.Card{}, NewServiceError("ingest", "invalid card",
			fmt.Errorf("%w: parked cards are created by parking", domain.ErrInvalidKind))
	}
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.Status == "" || card.Status == domain.StatusParked {
		card.Status = domain.StatusActive
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = s.now().UTC()
	}
	if card.Altitude == "" {
		card.Altitude = domain.DefaultAltitude(card.Kind())
	}
	if card.Actions == nil {
		card.Actions = domain.DefaultActions(card.Kind())
	}

	name := events.CardNew
	if card.Kind() == domain.KindBreakIn {
		name = events.BreakInArrive
	}

	unlock := s.locks.Lock(card.ID)
	s.registry.Put(card)
	s.publish(ctx, name, CardEvent{ID: card.ID, Card: card})
	s.persist.saveCard(ctx, card)
	unlock()

	log.Info("card ingested",
		slog.String("card_id", card.ID.String()),
		slog.String("kind", string(card.Kind())),
		slog.String("altitude", string(card.Altitude)))
	return card, nil
}

// GetCard implements CardService.GetCard
func (s *cardServiceImpl) GetCard(ctx context.Context, id uuid.UUID) (domain.Card, error) {
	card, ok := s.lookup(ctx, id)
	if !ok {
		return domain.Card{}, NewServiceError("get_card", "card not found", store.ErrCardNotFound)
	}
	return card, nil
}

// lookup reads the registry and rehydrates from the store on a miss. A
// parked snapshot is re-registered with the scheduler so status and wake
// tracking stay in step.
func (s *cardServiceImpl) lookup(ctx context.Context, id uuid.UUID) (domain.Card, bool) {
	if card, ok := s.registry.Get(id); ok {
		return card, true
	}
	card, ok := s.persist.loadCard(ctx, id)
	if !ok || card.ID != id {
		return domain.Card{}, false
	}

	if parked, isParked := card.Content.(domain.ParkedContent); isParked {
		var extra []domain.WakeCondition
		for _, c := range parked.Conditions {
			if c.Type != domain.WakeTime {
				extra = append(extra, c)
			}
		}
		if _, err := s.scheduler.Park(card, parked.WakeTime, parked.Reason, extra...); err == nil {
			card, _ = s.scheduler.Get(id)
			s.metrics.ParkedChanged(s.scheduler.Count())
		} else {
			card.Status = domain.StatusActive
		}
	} else if card.Status == domain.StatusParked {
		card.Status = domain.StatusActive
	}

	s.registry.Put(card)
	logger.FromContextOrDefault(ctx, s.logger).Debug("card rehydrated from store",
		slog.String("card_id", id.String()))
	return card, true
}

// ListCards implements CardService.ListCards
func (s *cardServiceImpl) ListCards(_ context.Context, filter ListFilter) []domain.Card {
	all := s.registry.List()
	out := make([]domain.Card, 0, len(all))
	for _, c := range all {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && c.Kind() != filter.Kind {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Feed implements CardService.Feed
func (s *cardServiceImpl) Feed(_ context.Context, filter *domain.Altitude, limit int) feed.Feed {
	return s.composer.GetFeed(filter, limit)
}

// CurrentAltitude implements CardService.CurrentAltitude
func (s *cardServiceImpl) CurrentAltitude(_ context.Context) domain.AltitudeState {
	return s.composer.State()
}

// SetAltitude implements CardService.SetAltitude
func (s *cardServiceImpl) SetAltitude(ctx context.Context, altitude string) (domain.AltitudeState, error) {
	alt, err := domain.ParseAltitude(altitude)
	if err != nil {
		return domain.AltitudeState{}, NewServiceError("set_altitude", "invalid altitude", err)
	}
	state, err := s.composer.SetAltitude(alt)
	if err != nil {
		return domain.AltitudeState{}, NewServiceError("set_altitude", "invalid altitude", err)
	}
	s.publish(ctx, events.AltitudeChange, state)
	return state, nil
}

// ClearAltitude implements CardService.ClearAltitude
func (s *cardServiceImpl) ClearAltitude(ctx context.Context) domain.AltitudeState {
	state := s.composer.ClearAltitude()
	s.publish(ctx, events.AltitudeChange, state)
	return state
}

// Altimeter implements CardService.Altimeter
func (s *cardServiceImpl) Altimeter(_ context.Context) altimeter.Update {
	return s.composer.AltimeterUpdate()
}

// Subscribe implements CardService.Subscribe
func (s *cardServiceImpl) Subscribe(ctx context.Context) <-chan events.Event {
	return s.bus.Stream(ctx, events.StreamConfig{
		Hydrate:   s.hydrateEvent,
		Heartbeat: s.heartbeatEvent,
		Interval:  s.config.HeartbeatInterval,
	})
}

func (s *cardServiceImpl) hydrateEvent() events.Event {
	e, err := events.NewEvent(events.QueueHydrate, HydrateEvent{
		Cards:      s.registry.Active(),
		AfterCount: s.scheduler.Count(),
	})
	if err != nil {
		s.logger.Error("failed to build hydrate event", redact.ErrorAttr(err))
		return events.Event{Name: events.QueueHydrate, Payload: `{"cards":[],"afterCount":0}`, At: s.now()}
	}
	return e
}

func (s *cardServiceImpl) heartbeatEvent() events.Event {
	e, err := events.NewEvent(events.AltimeterUpdate, s.composer.AltimeterUpdate())
	if err != nil {
		s.logger.Error("failed to build altimeter event", redact.ErrorAttr(err))
		return events.Event{Name: events.AltimeterUpdate, Payload: "{}", At: s.now()}
	}
	return e
}

// LinkThread implements CardService.LinkThread
func (s *cardServiceImpl) LinkThread(ctx context.Context, id uuid.UUID, channel, threadTS string) {
	s.rememberThread(threadKey{channel: channel, threadTS: threadTS}, id)
	s.persist.linkThread(ctx, id, channel, threadTS)
}

// FindCardByThread implements CardService.FindCardByThread
func (s *cardServiceImpl) FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, bool) {
	key := threadKey{channel: channel, threadTS: threadTS}
	s.threadMu.RLock()
	id, ok := s.threads[key]
	s.threadMu.RUnlock()
	if ok || !s.persist.enabled() {
		return id, ok
	}

	id, err := s.persist.store.FindCardByThread(ctx, channel, threadTS)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "thread lookup failed", redact.ErrorAttr(err))
		}
		return uuid.Nil, false
	}
	s.rememberThread(key, id)
	return id, true
}

func (s *cardServiceImpl) rememberThread(key threadKey, id uuid.UUID) {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	s.threads[key] = id
	s.linked[id] = struct{}{}
}

// hasThread reports whether a chat thread is linked to card id.
func (s *cardServiceImpl) hasThread(id uuid.UUID) bool {
	s.threadMu.RLock()
	defer s.threadMu.RUnlock()
	_, ok := s.linked[id]
	return ok
}

// Start implements CardService.Start
func (s *cardServiceImpl) Start() error {
	return s.scheduler.Start(s.Wake)
}

// Stop implements CardService.Stop
func (s *cardServiceImpl) Stop() {
	s.scheduler.Stop()
}

// publish encodes payload and broadcasts it. Encoding failures are logged.
func (s *cardServiceImpl) publish(ctx context.Context, name string, payload interface{}) {
	if err := s.bus.PublishJSON(ctx, name, payload); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to publish event",
			slog.String("event", name),
			redact.ErrorAttr(err))
	}
}
