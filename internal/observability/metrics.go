// Package observability holds the Prometheus instruments and the rolling
// draw-stage latency window exposed through the admin API.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	QueuedTasks        prometheus.Gauge
	BusyQueues         prometheus.Gauge
	PendingApprovals   prometheus.Gauge
	TaskEvents         *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	DrawDuration       prometheus.Histogram
	ApprovalWait       prometheus.Histogram

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		QueuedTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_tasks",
			Help:      "Tasks waiting or drawing across all credential queues.",
		}),
		BusyQueues: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_queues",
			Help:      "Credential queues with a drain in progress.",
		}),
		PendingApprovals: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_approvals",
			Help:      "Tasks held awaiting approval by a credentialed user.",
		}),
		TaskEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Task lifecycle events by type.",
		}, []string{"event"}),
		GenerationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Backend generation calls by result.",
		}, []string{"result"}),
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Image deliveries by mode.",
		}, []string{"mode"}),
		DrawDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draw_duration_seconds",
			Help:      "Wall time of one full draw pass.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}),
		ApprovalWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_wait_seconds",
			Help:      "Time a held task waited before approval.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
		stages: newStageWindow(0),
	}
}

func (m *Metrics) SetQueueDepth(n int)  { m.QueuedTasks.Set(float64(n)) }
func (m *Metrics) SetBusyQueues(n int)  { m.BusyQueues.Set(float64(n)) }
func (m *Metrics) SetPendingHeld(n int) { m.PendingApprovals.Set(float64(n)) }

func (m *Metrics) ObserveTaskEvent(event string) {
	m.TaskEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveGeneration(result string) {
	m.GenerationAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDelivery(mode string) {
	m.Deliveries.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveDrawDuration(d time.Duration) {
	m.DrawDuration.Observe(d.Seconds())
	m.stages.Observe(StageDraw, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveApprovalWait(d time.Duration) {
	m.ApprovalWait.Observe(d.Seconds())
}

// ObserveStage feeds the rolling latency window; it does not touch the
// Prometheus instruments.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

// LatencySnapshot summarizes the recent draw-stage latencies.
func (m *Metrics) LatencySnapshot() StageSnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
