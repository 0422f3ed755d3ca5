package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reactive-systems/rtlola-streamir/internal/schedule"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

const metricsNamespace = "streamir"

// Cycle kinds used as metric label values and in logs.
const (
	CycleKindPeriodic = "periodic"
	CycleKindEvent    = "event"
)

// Metrics contains the Prometheus collectors of a monitor.
//
// A nil *Metrics is valid and records nothing, so monitors built without
// WithMetrics pay no cost.
type Metrics struct {
	// CyclesTotal counts evaluation cycles by kind (periodic, event).
	CyclesTotal *prometheus.CounterVec

	// ChangesTotal counts verdict changes by kind (spawn, value, close).
	ChangesTotal *prometheus.CounterVec

	// DeadlinesFired counts the static periods and dynamic targets served
	// by periodic cycles.
	DeadlinesFired prometheus.Counter

	// LiveInstances is the number of live parameterized instances after
	// the most recent cycle.
	LiveInstances prometheus.Gauge
}

// NewMetrics creates the monitor collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cycles_total",
				Help:      "Total evaluation cycles by kind",
			},
			[]string{"kind"},
		),
		ChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "changes_total",
				Help:      "Total verdict changes by kind",
			},
			[]string{"kind"},
		),
		DeadlinesFired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deadlines_fired_total",
				Help:      "Total deadlines served by periodic cycles",
			},
		),
		LiveInstances: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "live_instances",
				Help:      "Live parameterized stream instances",
			},
		),
	}
}

func (m *Metrics) observeCycle(kind string, batch *schedule.Batch, inc verdict.Incremental, live int) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(kind).Inc()
	if batch != nil {
		m.DeadlinesFired.Add(float64(len(batch.Static) + len(batch.Dynamic)))
	}
	for _, oc := range inc.Outputs {
		for _, ch := range oc.Changes {
			m.ChangesTotal.WithLabelValues(ch.Kind.String()).Inc()
		}
	}
	m.LiveInstances.Set(float64(live))
}
