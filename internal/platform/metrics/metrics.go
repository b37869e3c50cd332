// Package metrics exposes Prometheus instrumentation for the card feed.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cardfeed"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	subscribers     prometheus.Gauge
	wakesFired      *prometheus.CounterVec
	parked          prometheus.Gauge
	persistFailures *prometheus.CounterVec
	storeOpenFails  *prometheus.CounterVec
	cardActions     *prometheus.CounterVec
}

// NewRegistry creates a registry. If collectProcessMetrics is true the Go
// runtime and process collectors are registered too.
func NewRegistry(collectProcessMetrics bool) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	if collectProcessMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// New registers the card feed collectors on registry. A nil registry gets a
// fresh one with runtime collectors.
func New(registry *prometheus.Registry, logger *slog.Logger) *Metrics {
	if registry == nil {
		registry = NewRegistry(true)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		registry: registry,
		logger:   logger.With("component", "metrics"),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events accepted by the bus, by event name.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_dropped_total",
			Help:      "Events discarded from full subscriber queues, by event name.",
		}, []string{"event"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "subscribers",
			Help:      "Live bus subscribers.",
		}),
		wakesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parking",
			Name:      "wakes_fired_total",
			Help:      "Parked cards returned to the feed, by trigger.",
		}, []string{"trigger"}),
		parked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "parking",
			Name:      "parked_cards",
			Help:      "Cards currently parked.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Background persistence tasks that failed, by task type.",
		}, []string{"task_type"}),
		storeOpenFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "open_failures_total",
			Help:      "Startups that could not open the configured database, by driver.",
		}, []string{"driver"}),
		cardActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cards",
			Name:      "actions_total",
			Help:      "Card actions performed, by action.",
		}, []string{"action"}),
	}
	registry.MustRegister(
		m.eventsPublished,
		m.eventsDropped,
		m.subscribers,
		m.wakesFired,
		m.parked,
		m.persistFailures,
		m.storeOpenFails,
		m.cardActions,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      m,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Println implements promhttp.Logger.
func (m *Metrics) Println(v ...interface{}) {
	m.logger.Error("metrics handler error", "detail", fmt.Sprint(v...))
}

// EventPublished counts an event accepted by the bus.
func (m *Metrics) EventPublished(name string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(name).Inc()
}

// EventDropped counts an event discarded from a full subscriber queue.
func (m *Metrics) EventDropped(name string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(name).Inc()
}

// SubscribersChanged records the live subscriber count.
func (m *Metrics) SubscribersChanged(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// WakeFired counts a parked card returning to the feed.
func (m *Metrics) WakeFired(trigger string) {
	if m == nil {
		return
	}
	m.wakesFired.WithLabelValues(trigger).Inc()
}

// ParkedChanged records the parked card count.
func (m *Metrics) ParkedChanged(n int) {
	if m == nil {
		return
	}
	m.parked.Set(float64(n))
}

// PersistFailed counts a failed persistence task.
func (m *Metrics) PersistFailed(taskType string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(taskType).Inc()
}

// StoreUnavailable counts a database that could not be opened at startup.
func (m *Metrics) StoreUnavailable(driver string) {
	if m == nil {
		return
	}
	m.storeOpenFails.WithLabelValues(driver).Inc()
}

// CardAction counts a performed card action.
func (m *Metrics) CardAction(action string) {
	if m == nil {
		return
	}
	m.cardActions.WithLabelValues(action).Inc()
}
