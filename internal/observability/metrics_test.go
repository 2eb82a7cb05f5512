package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	// Don't call NewMetrics() here as it registers with default registry
	// Just verify the structure would be created
	t.Log("Metrics structure verified through integration tests")
}

func TestTaskTransitionCounter(t *testing.T) {
	// Create a new registry for isolated testing
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_task_transitions_total",
			Help: "Test task transition counter",
		},
		[]string{"from", "to"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("submitted", "working").Inc()
	counter.WithLabelValues("submitted", "working").Inc()
	counter.WithLabelValues("working", "completed").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Errorf("Expected 2 label combinations, got %d", count)
	}

	expected := `
		# HELP test_task_transitions_total Test task transition counter
		# TYPE test_task_transitions_total counter
		test_task_transitions_total{from="submitted",to="working"} 2
		test_task_transitions_total{from="working",to="completed"} 1
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRPCRequestCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_rpc_requests_total",
			Help: "Test rpc request counter",
		},
		[]string{"method", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("message/send", "ok").Inc()
	counter.WithLabelValues("message/send", "ok").Inc()
	counter.WithLabelValues("tasks/cancel", "error").Inc()

	count := testutil.CollectAndCount(counter)
	if count < 1 {
		t.Error("Expected at least 1 rpc request recorded")
	}
}

func TestSwarmAgentDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_swarm_agent_duration_seconds",
			Help:    "Test swarm agent duration histogram",
			Buckets: []float64{0.5, 1, 5, 15, 30},
		},
		[]string{"role", "status"},
	)
	registry.MustRegister(histogram)

	histogram.WithLabelValues("coder", "done").Observe(12.5)
	histogram.WithLabelValues("reviewer", "done").Observe(3.2)
	histogram.WithLabelValues("security", "failed").Observe(0.4)

	count := testutil.CollectAndCount(histogram)
	if count < 1 {
		t.Error("Expected at least 1 swarm agent duration recorded")
	}
}

func TestRecordError(t *testing.T) {
	// Test with isolated registry
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_errors_total",
			Help: "Test error counter",
		},
		[]string{"component", "error_type"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("a2a", "task_not_found").Inc()
	counter.WithLabelValues("a2a", "task_not_found").Inc()
	counter.WithLabelValues("auth", "unauthorized").Inc()
	counter.WithLabelValues("gateway", "timeout").Inc()

	// Verify counter
	count := testutil.CollectAndCount(counter)
	if count < 1 {
		t.Error("Expected at least 1 error recorded")
	}
}

func TestGatewayConnectionLifecycle(t *testing.T) {
	// Test gauge and histogram behavior with isolated registry
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "test_gateway_connections",
			Help: "Test gateway connections",
		},
	)
	histogram := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "test_swarm_duration_seconds",
			Help:    "Test swarm duration",
			Buckets: []float64{60, 300, 600},
		},
	)
	registry.MustRegister(gauge, histogram)

	// Connect
	gauge.Inc()
	gauge.Inc()

	// Disconnect one
	gauge.Dec()
	histogram.Observe(300.0)
	histogram.Observe(600.0)

	// Verify metrics were tracked
	if testutil.CollectAndCount(gauge) < 1 {
		t.Error("Expected gateway connections gauge to be tracked")
	}
	if testutil.CollectAndCount(histogram) < 1 {
		t.Error("Expected swarm duration histogram to have observations")
	}
}

func TestHistogramBuckets(t *testing.T) {
	// Test histogram with various durations
	registry := prometheus.NewRegistry()
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_seconds",
			Help:    "Test duration histogram",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"operation"},
	)
	registry.MustRegister(histogram)

	durations := []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0}
	for _, duration := range durations {
		histogram.WithLabelValues("test").Observe(duration)
	}

	// Verify histogram recorded all observations
	if testutil.CollectAndCount(histogram) < 1 {
		t.Error("Expected histogram to have observations across buckets")
	}
}

func TestConcurrentMetrics(t *testing.T) {
	// Test concurrent metric recording
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_concurrent_total",
			Help: "Test concurrent counter",
		},
		[]string{"label"},
	)
	registry.MustRegister(counter)

	done := make(chan bool)
	iterations := 100

	go func() {
		for i := 0; i < iterations; i++ {
			counter.WithLabelValues("a").Inc()
			time.Sleep(time.Microsecond)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < iterations; i++ {
			counter.WithLabelValues("b").Inc()
			time.Sleep(time.Microsecond)
		}
		done <- true
	}()

	<-done
	<-done

	// Should not panic
	if testutil.CollectAndCount(counter) < 1 {
		t.Error("Expected concurrent metric recording to work")
	}
}
