package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the task orchestrator and the scoring engine boundary.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	tasksQueued     *prometheus.CounterVec
	tasksFinished   *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	scoresPublished *prometheus.CounterVec
	scoresReceived  *prometheus.CounterVec
}

// NewMetricsService registers the service's collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	tasksQueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_queued_total",
		Help: "Background tasks accepted by the orchestrator",
	}, []string{"type"})

	tasksFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_finished_total",
		Help: "Background tasks reaching a terminal status",
	}, []string{"type", "status"})

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Wall time from task pickup to terminal status",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"type"})

	scoresPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scores_published_total",
		Help: "Raw scores published to the scoring engine",
	}, []string{"migration_id"})

	scoresReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scores_received_total",
		Help: "Computed scores received from the scoring engine",
	}, []string{"migration_id"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, tasksQueued, tasksFinished, taskDuration, scoresPublished, scoresReceived, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		tasksQueued:     tasksQueued,
		tasksFinished:   tasksFinished,
		taskDuration:    taskDuration,
		scoresPublished: scoresPublished,
		scoresReceived:  scoresReceived,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveTaskQueued counts a task accepted by the orchestrator.
func (m *MetricsService) ObserveTaskQueued(taskType models.TaskType) {
	if m == nil {
		return
	}
	m.tasksQueued.WithLabelValues(string(taskType)).Inc()
}

// ObserveTaskFinished counts a terminal task transition and records its wall
// time.
func (m *MetricsService) ObserveTaskFinished(taskType models.TaskType, status models.TaskStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(string(taskType), string(status)).Inc()
	m.taskDuration.WithLabelValues(string(taskType)).Observe(duration.Seconds())
}

// ObserveScorePublished counts one raw score sent to the engine.
func (m *MetricsService) ObserveScorePublished(migrationID string) {
	if m == nil {
		return
	}
	m.scoresPublished.WithLabelValues(migrationID).Inc()
}

// ObserveScoreReceived counts one computed score consumed from the engine.
func (m *MetricsService) ObserveScoreReceived(migrationID string) {
	if m == nil {
		return
	}
	m.scoresReceived.WithLabelValues(migrationID).Inc()
}
