package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Payroll provides observability for payroll processing. A nil *Payroll is valid and
// records nothing.
type Payroll struct {
	// Lifecycle transitions by operation and result
	Transitions *prometheus.CounterVec

	// Payslips built per process call, by outcome
	Payslips *prometheus.CounterVec

	// Per-employee build failures by error code
	BuildFailures *prometheus.CounterVec

	// Duration of a full process call, including the commit
	ProcessLatency prometheus.Histogram

	// Number of tax table versions currently indexed
	TaxTables prometheus.Gauge
}

// NewPayroll creates and registers the payroll metrics. Call it once per process.
func NewPayroll() *Payroll {
	return &Payroll{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hris_payroll_run_transitions_total",
			Help: "Payroll run lifecycle operations by operation and result",
		}, []string{"op", "result"}), // result: "ok", "rejected", "error"

		Payslips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hris_payroll_payslips_total",
			Help: "Payslips built during run processing by outcome",
		}, []string{"outcome"}), // outcome: "built", "failed"

		BuildFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hris_payroll_build_failures_total",
			Help: "Per-employee payslip build failures by error code",
		}, []string{"code"}),

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hris_payroll_process_duration_seconds",
			Help:    "Duration of payroll run processing including persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		TaxTables: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hris_payroll_tax_tables",
			Help: "Number of published tax table versions loaded in memory",
		}),
	}
}

// ObserveTransition records a lifecycle operation result.
func (m *Payroll) ObserveTransition(op, result string) {
	if m != nil {
		m.Transitions.WithLabelValues(op, result).Inc()
	}
}

// ObserveBatch records the outcome of one process call's batch.
func (m *Payroll) ObserveBatch(built int, failureCodes []string) {
	if m == nil {
		return
	}
	m.Payslips.WithLabelValues("built").Add(float64(built))
	m.Payslips.WithLabelValues("failed").Add(float64(len(failureCodes)))
	for _, code := range failureCodes {
		m.BuildFailures.WithLabelValues(code).Inc()
	}
}

// ObserveProcessLatency records the total duration of a process call.
func (m *Payroll) ObserveProcessLatency(d time.Duration) {
	if m != nil {
		m.ProcessLatency.Observe(d.Seconds())
	}
}

// SetTaxTables records the size of the tax table index.
func (m *Payroll) SetTaxTables(n int) {
	if m != nil {
		m.TaxTables.Set(float64(n))
	}
}
