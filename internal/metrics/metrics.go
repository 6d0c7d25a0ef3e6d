// Package metrics exposes lifecycle counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric on its own registry. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	eventsScheduled       *prometheus.CounterVec
	eventsCompleted       *prometheus.CounterVec
	contingenciesReported *prometheus.CounterVec
	escalations           *prometheus.CounterVec
	ticketsCreated        *prometheus.CounterVec
	stockMovements        *prometheus.CounterVec
	conflicts             prometheus.Counter

	sweepRuns     prometheus.Counter
	sweepFailures prometheus.Counter
	sweepItems    *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	overdueEvents prometheus.Gauge
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_service_events_scheduled_total",
			Help: "Service events scheduled, by kind",
		}, []string{"kind"}),
		eventsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_service_events_completed_total",
			Help: "Service events completed, by kind",
		}, []string{"kind"}),
		contingenciesReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_contingencies_reported_total",
			Help: "Contingencies reported, by initial severity",
		}, []string{"severity"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_escalations_total",
			Help: "Escalations, by entity kind and resulting level",
		}, []string{"entity", "level"}),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_tickets_created_total",
			Help: "Tickets created, by priority",
		}, []string{"priority"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_stock_movements_total",
			Help: "Stock movements appended, by direction",
		}, []string{"direction"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eqs_conflicts_total",
			Help: "Operations rejected with a conflict",
		}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eqs_sweep_runs_total",
			Help: "Overdue sweep runs",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eqs_sweep_failures_total",
			Help: "Items the overdue sweep failed to process",
		}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eqs_sweep_items_total",
			Help: "Items acted on by the overdue sweep, by action",
		}, []string{"action"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eqs_sweep_duration_seconds",
			Help:    "Overdue sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		overdueEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eqs_overdue_service_events",
			Help: "Overdue service events seen by the last sweep",
		}),
	}

	c.registry.MustRegister(
		c.eventsScheduled,
		c.eventsCompleted,
		c.contingenciesReported,
		c.escalations,
		c.ticketsCreated,
		c.stockMovements,
		c.conflicts,
		c.sweepRuns,
		c.sweepFailures,
		c.sweepItems,
		c.sweepDuration,
		c.overdueEvents,
	)
	return c
}

// Handler serves the registry over HTTP.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) EventScheduled(kind string) {
	if c == nil {
		return
	}
	c.eventsScheduled.WithLabelValues(kind).Inc()
}

func (c *Collector) EventCompleted(kind string) {
	if c == nil {
		return
	}
	c.eventsCompleted.WithLabelValues(kind).Inc()
}

func (c *Collector) ContingencyReported(severity string) {
	if c == nil {
		return
	}
	c.contingenciesReported.WithLabelValues(severity).Inc()
}

func (c *Collector) Escalated(entity, level string) {
	if c == nil {
		return
	}
	c.escalations.WithLabelValues(entity, level).Inc()
}

func (c *Collector) TicketCreated(priority string) {
	if c == nil {
		return
	}
	c.ticketsCreated.WithLabelValues(priority).Inc()
}

func (c *Collector) StockMoved(direction string) {
	if c == nil {
		return
	}
	c.stockMovements.WithLabelValues(direction).Inc()
}

func (c *Collector) Conflict() {
	if c == nil {
		return
	}
	c.conflicts.Inc()
}

// SweepFinished records one sweep run.
func (c *Collector) SweepFinished(d time.Duration, overdue, escalatedContingencies, escalatedTickets, failures int) {
	if c == nil {
		return
	}
	c.sweepRuns.Inc()
	c.sweepDuration.Observe(d.Seconds())
	c.overdueEvents.Set(float64(overdue))
	c.sweepItems.WithLabelValues("overdue_notified").Add(float64(overdue))
	c.sweepItems.WithLabelValues("contingency_escalated").Add(float64(escalatedContingencies))
	c.sweepItems.WithLabelValues("ticket_escalated").Add(float64(escalatedTickets))
	c.sweepFailures.Add(float64(failures))
}
