package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HarshBti1805/Einstein-Academic-Concierge/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	applicationsTotal *prometheus.CounterVec
	batchRuns         *prometheus.CounterVec
	batchDuration     prometheus.Observer
	vacancyFills      prometheus.Counter
	waitlistSize      *prometheus.GaugeVec

	requestCount         uint64
	requestDurationTotal uint64
	appRegistered        uint64
	appWaitlisted        uint64
	appRejected          uint64
	batchRunCount        uint64
	batchDurationTotal   uint64
	vacancyFillCount     uint64
}

// NewMetricsService registers the core collectors.
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

	applicationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_applications_total",
		Help: "Course applications processed, labeled by outcome status",
	}, []string{"status"})

	batchRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_batch_runs_total",
		Help: "Batch allocation runs, labeled by strategy",
	}, []string{"strategy"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_batch_duration_seconds",
		Help:    "Duration of batch allocation runs",
		Buckets: prometheus.DefBuckets,
	})

	vacancyFills := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_vacancy_fills_total",
		Help: "Seats backfilled from waitlists after dropouts",
	})

	waitlistSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waitlist_size",
		Help: "Current waitlist size per course",
	}, []string{"course_id"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, applicationsTotal, batchRuns, batchDuration, vacancyFills, waitlistSize, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		applicationsTotal: applicationsTotal,
		batchRuns:         batchRuns,
		batchDuration:     batchDuration,
		vacancyFills:      vacancyFills,
		waitlistSize:      waitlistSize,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats
// for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordApplication counts one application outcome.
func (m *MetricsService) RecordApplication(status models.RegistrationStatus) {
	if m == nil {
		return
	}
	m.applicationsTotal.WithLabelValues(string(status)).Inc()
	switch status {
	case models.StatusRegistered:
		atomic.AddUint64(&m.appRegistered, 1)
	case models.StatusWaitlisted:
		atomic.AddUint64(&m.appWaitlisted, 1)
	case models.StatusRejected:
		atomic.AddUint64(&m.appRejected, 1)
	}
}

// RecordBatchRun counts one batch allocation run.
func (m *MetricsService) RecordBatchRun(strategy string, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchRuns.WithLabelValues(strategy).Inc()
	m.batchDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.batchRunCount, 1)
	atomic.AddUint64(&m.batchDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordVacancyFill counts one waitlist backfill.
func (m *MetricsService) RecordVacancyFill() {
	if m == nil {
		return
	}
	m.vacancyFills.Inc()
	atomic.AddUint64(&m.vacancyFillCount, 1)
}

// SetWaitlistSize publishes the current waitlist depth for a course.
func (m *MetricsService) SetWaitlistSize(courseID string, size int) {
	if m == nil {
		return
	}
	m.waitlistSize.WithLabelValues(courseID).Set(float64(size))
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	registered := atomic.LoadUint64(&m.appRegistered)
	waitlisted := atomic.LoadUint64(&m.appWaitlisted)
	rejectedCount := atomic.LoadUint64(&m.appRejected)
	batches := atomic.LoadUint64(&m.batchRunCount)
	batchDuration := atomic.LoadUint64(&m.batchDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgBatchMs float64
	if batches > 0 {
		avgBatchMs = float64(batchDuration) / float64(batches) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		ApplicationsTotal:        registered + waitlisted + rejectedCount,
		ApplicationsRegistered:   registered,
		ApplicationsWaitlisted:   waitlisted,
		ApplicationsRejected:     rejectedCount,
		BatchRuns:                batches,
		AverageBatchDurationMs:   avgBatchMs,
		VacancyFills:             atomic.LoadUint64(&m.vacancyFillCount),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
