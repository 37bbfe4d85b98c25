// Package metrics defines the Prometheus series internal/scheduler
// updates as a transaction runs: witness entries appended (by kind),
// fuel consumed, and how many programs are currently active. This is
// scheduler-level instrumentation over Transaction state, the same
// counter/gauge shape the teacher's own
// internal/api/http/middleware/metrics.go uses for HTTP requests,
// pointed at the domain state this engine actually has instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the scheduler series of every transaction that reports
// to it (internal/api shares one Collector across all the transactions a
// Handler runs, so the gauges reflect their combined or latest updates).
// A nil *Collector
// is valid and every method on it is a no-op, so internal/scheduler can
// carry one unconditionally without every caller needing to construct a
// registry just to run a transaction.
type Collector struct {
	witnessesTotal *prometheus.CounterVec
	fuelConsumed   prometheus.Gauge
	activePrograms prometheus.Gauge
}

// NewCollector registers a Collector's series against reg. Calling it
// twice against the same registry double-registers the same names, so
// internal/api builds one Collector per Handler, on that Handler's own
// registry, and attaches it to every Transaction the Handler runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		witnessesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "starstream",
				Subsystem: "scheduler",
				Name:      "witnesses_total",
				Help:      "Witness log entries appended, by kind.",
			},
			[]string{"kind"},
		),
		fuelConsumed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "starstream",
			Subsystem: "scheduler",
			Name:      "fuel_consumed",
			Help:      "Fuel consumed so far by the current transaction.",
		}),
		activePrograms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "starstream",
			Subsystem: "scheduler",
			Name:      "active_programs",
			Help:      "Programs started but not yet finished in the current transaction.",
		}),
	}
}

// WitnessAppended records one witness.Log entry of the given kind.
func (c *Collector) WitnessAppended(kind string) {
	if c == nil {
		return
	}
	c.witnessesTotal.WithLabelValues(kind).Inc()
}

// SetFuelConsumed reports the transaction's running fuel total.
func (c *Collector) SetFuelConsumed(fuel uint64) {
	if c == nil {
		return
	}
	c.fuelConsumed.Set(float64(fuel))
}

// ProgramStarted records a program entering the active set.
func (c *Collector) ProgramStarted() {
	if c == nil {
		return
	}
	c.activePrograms.Inc()
}

// ProgramFinished records a program leaving the active set: its call
// returned for good, or the UTXO it backs was consumed. A program
// suspended at a yield stays in the active set.
func (c *Collector) ProgramFinished() {
	if c == nil {
		return
	}
	c.activePrograms.Dec()
}
