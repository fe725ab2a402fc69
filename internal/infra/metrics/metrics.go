package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики бота. Регистрируются в переданном Registerer,
// в проде это prometheus.DefaultRegisterer (его отдаёт /metrics).
type Metrics struct {
	RPCCalls        *prometheus.CounterVec
	RPCDuration     *prometheus.HistogramVec
	Operations      *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	VerifyAttempts  prometheus.Histogram
	ReconcileChecks *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odoo_rpc_calls_total",
			Help: "execute_kw calls to Odoo by model, method and outcome.",
		}, []string{"model", "method", "outcome"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odoo_rpc_call_duration_seconds",
			Help:    "Latency of execute_kw calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model", "method"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_operations_total",
			Help: "Transfers and entries by final status.",
		}, []string{"kind", "status"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_notifications_total",
			Help: "Group notifications by driver and outcome.",
		}, []string{"driver", "outcome"}),
		VerifyAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stock_verify_attempts",
			Help:    "Picking state reads needed per verification.",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
		ReconcileChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reconcile_checks_total",
			Help: "Pending pickings re-checked by the reconcile job.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.RPCCalls, m.RPCDuration, m.Operations, m.Notifications, m.VerifyAttempts, m.ReconcileChecks)
	return m
}

// ObserveCall реализует odoo.Observer.
func (m *Metrics) ObserveCall(model, method string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RPCCalls.WithLabelValues(model, method, outcome).Inc()
	m.RPCDuration.WithLabelValues(model, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveOperation(kind, status string) {
	m.Operations.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveNotification(driver string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Notifications.WithLabelValues(driver, outcome).Inc()
}

func (m *Metrics) ObserveVerify(attempts int) {
	m.VerifyAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveReconcile(result string) {
	m.ReconcileChecks.WithLabelValues(result).Inc()
}
