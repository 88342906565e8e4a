package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserveScan(t *testing.T) {
	m := NewMetricsWith("test", prometheus.NewRegistry())
	m.ObserveScan("overdue", 12*time.Millisecond, nil)
	m.ObserveScan("overdue", time.Millisecond, errors.New("db down"))
	m.ObserveNotification("upcoming", nil)

	if got := testutil.ToFloat64(m.ScanCycles.WithLabelValues("overdue", "failed")); got != 1 {
		t.Fatalf("failed cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues("upcoming", "sent")); got != 1 {
		t.Fatalf("sent notifications = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveInbound("message", "start")
	m.ObserveScan("overdue", time.Second, nil)
	m.SetActiveSessions(3)
}
