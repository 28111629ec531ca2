package models

import "time"

// SystemMetrics is an aggregated snapshot served by the metrics API.
type SystemMetrics struct {
	ApplicationsTotal        uint64    `json:"applications_total"`
	ApplicationsRegistered   uint64    `json:"applications_registered"`
	ApplicationsWaitlisted   uint64    `json:"applications_waitlisted"`
	ApplicationsRejected     uint64    `json:"applications_rejected"`
	BatchRuns                uint64    `json:"batch_runs"`
	AverageBatchDurationMs   float64   `json:"average_batch_duration_ms"`
	VacancyFills             uint64    `json:"vacancy_fills"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
