// Package ingest implements the ingestion coordinator: per-tenant paginated
// pulls from the external ticket source, classification, idempotent
// upsert, deletion reconciliation, and job/audit bookkeeping. Grounded on
// the teacher's incident store/handler shape for persistence and on
// pkg/escalation's engine.Run ticker-loop idiom for the worker-mode
// scheduler.
package ingest

import "time"

// JobStatus is the lifecycle state of an ingestion run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// Job is one ingestion run's persisted bookkeeping row.
type Job struct {
	JobID          string     `json:"job_id"`
	TenantID       string     `json:"tenant_id"`
	Status         JobStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Progress       int        `json:"progress"`
	ProcessedPages int        `json:"processed_pages"`
	TotalPages     *int       `json:"total_pages,omitempty"`
	NewIngested    int        `json:"new_ingested"`
	Updated        int        `json:"updated"`
	Errors         int        `json:"errors"`
}

// LogStatus is the terminal outcome recorded in the audit log.
type LogStatus string

const (
	LogSuccess        LogStatus = "SUCCESS"
	LogPartialSuccess LogStatus = "PARTIAL_SUCCESS"
	LogFailed         LogStatus = "FAILED"
)

// LogEntry is one append-only audit record for a completed (or failed) run.
type LogEntry struct {
	JobID       string    `json:"job_id"`
	TenantID    string    `json:"tenant_id"`
	LogStatus   LogStatus `json:"log_status"`
	Message     string    `json:"message,omitempty"`
	NewIngested int       `json:"new_ingested"`
	Updated     int       `json:"updated"`
	Errors      int       `json:"errors"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Result is what run_ingestion returns to its caller.
type Result struct {
	Status      string `json:"status"`
	JobID       string `json:"job_id"`
	NewIngested int    `json:"new_ingested"`
	Updated     int    `json:"updated"`
	Errors      int    `json:"errors"`
}
