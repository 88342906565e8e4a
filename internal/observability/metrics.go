package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	InboundEvents  *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	ScanCycles     *prometheus.CounterVec
	ScanDuration   *prometheus.HistogramVec
	GatewayErrors  *prometheus.CounterVec
	TaskEvents     *prometheus.CounterVec
}

// NewMetricsWith registers the instruments on reg. Tests pass a fresh registry.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workflows",
			Help:      "Number of users currently inside a multi-step workflow.",
		}),
		InboundEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound updates by kind and matched route.",
		}, []string{"kind", "route"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Workflow step transitions by workflow and destination step.",
		}, []string{"workflow", "step"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ScanCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadline_scan_cycles_total",
			Help:      "Deadline scan cycles by scan and outcome.",
		}, []string{"scan", "outcome"}),
		ScanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deadline_scan_duration_ms",
			Help:      "Deadline scan cycle duration in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"scan"}),
		GatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Messaging gateway failures by operation.",
		}, []string{"op"}),
		TaskEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Task lifecycle events by type.",
		}, []string{"event"}),
	}
}

func (m *Metrics) ObserveTaskEvent(event string) {
	if m == nil {
		return
	}
	m.TaskEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveInbound(kind, route string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(kind, route).Inc()
}

func (m *Metrics) ObserveTransition(workflow, step string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(workflow, step).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveScan(scan string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.ScanCycles.WithLabelValues(scan, outcome).Inc()
	m.ScanDuration.WithLabelValues(scan).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveGatewayError(op string) {
	if m == nil {
		return
	}
	m.GatewayErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
