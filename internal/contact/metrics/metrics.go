package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation engine.
// Tracks outcomes, failures by error code, and engine latency.
type Metrics struct {
	Reconciliations   *prometheus.CounterVec
	Failures          *prometheus.CounterVec
	ContactsCreated   *prometheus.CounterVec
	FamiliesMerged    prometheus.Counter
	ReconcileDuration prometheus.Histogram
}

// New creates a new Metrics instance with all contact metrics registered.
func New() *Metrics {
	return &Metrics{
		Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contactgraph_reconciliations_total",
			Help: "Total number of successful reconciliations by outcome",
		}, []string{"outcome"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contactgraph_reconciliation_failures_total",
			Help: "Total number of failed reconciliations by error code",
		}, []string{"code"}),
		ContactsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "contactgraph_contacts_created_total",
			Help: "Total number of contacts created by link precedence",
		}, []string{"precedence"}),
		FamiliesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactgraph_families_merged_total",
			Help: "Total number of primaries demoted by bridging merges",
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactgraph_reconcile_duration_seconds",
			Help:    "Duration of Reconcile operations including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementFailure(code string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementContactCreated(precedence string) {
	if m == nil {
		return
	}
	m.ContactsCreated.WithLabelValues(precedence).Inc()
}

// AddFamiliesMerged records how many primaries one reconciliation demoted.
func (m *Metrics) AddFamiliesMerged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FamiliesMerged.Add(float64(n))
}

// ObserveReconcile records the duration of a Reconcile operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReconcile(start time.Time) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}
