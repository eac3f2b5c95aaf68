package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apidb "github.com/ticketsync/ingestor/internal/db"
)

// Store persists ingestion jobs and their audit log, backed by Postgres.
type Store struct {
	db apidb.DBTX
}

// NewStore builds an ingestion Store over the given database handle.
func NewStore(db apidb.DBTX) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new running job row.
func (s *Store) CreateJob(ctx context.Context, job Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ingestion_jobs (job_id, tenant_id, status, started_at, progress, processed_pages, total_pages, new_ingested, updated, errors)
		VALUES ($1, $2, $3, $4, 0, 0, NULL, 0, 0, 0)
	`, job.JobID, job.TenantID, job.Status, job.StartedAt)
	return err
}

// UpdateProgress updates the running counters of an in-flight job.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, processedPages, totalPages, progress, newIngested, updated, errs int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET processed_pages = $2, total_pages = $3, progress = $4, new_ingested = $5, updated = $6, errors = $7
		WHERE job_id = $1
	`, jobID, processedPages, totalPages, progress, newIngested, updated, errs)
	return err
}

// FinishJob marks a job terminal with the given status.
func (s *Store) FinishJob(ctx context.Context, jobID string, status JobStatus, newIngested, updated, errs int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, ended_at = $3, new_ingested = $4, updated = $5, errors = $6
		WHERE job_id = $1
	`, jobID, status, time.Now().UTC(), newIngested, updated, errs)
	return err
}

// GetJob fetches a job by job_id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	row := s.db.QueryRow(ctx, `
		SELECT job_id, tenant_id, status, started_at, ended_at, progress, processed_pages, total_pages, new_ingested, updated, errors
		FROM ingestion_jobs WHERE job_id = $1
	`, jobID)
	err := row.Scan(&j.JobID, &j.TenantID, &j.Status, &j.StartedAt, &j.EndedAt, &j.Progress, &j.ProcessedPages, &j.TotalPages, &j.NewIngested, &j.Updated, &j.Errors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetRunningJobForTenant returns the currently-running job for tenantID, if any.
func (s *Store) GetRunningJobForTenant(ctx context.Context, tenantID string) (*Job, error) {
	var j Job
	row := s.db.QueryRow(ctx, `
		SELECT job_id, tenant_id, status, started_at, ended_at, progress, processed_pages, total_pages, new_ingested, updated, errors
		FROM ingestion_jobs WHERE tenant_id = $1 AND status = $2
		ORDER BY started_at DESC LIMIT 1
	`, tenantID, JobRunning)
	err := row.Scan(&j.JobID, &j.TenantID, &j.Status, &j.StartedAt, &j.EndedAt, &j.Progress, &j.ProcessedPages, &j.TotalPages, &j.NewIngested, &j.Updated, &j.Errors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// RecordLog appends one audit log entry.
func (s *Store) RecordLog(ctx context.Context, entry LogEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ingestion_logs (job_id, tenant_id, log_status, message, new_ingested, updated, errors, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.JobID, entry.TenantID, entry.LogStatus, entry.Message, entry.NewIngested, entry.Updated, entry.Errors, time.Now().UTC())
	return err
}

// ListTenantIDs returns every distinct tenant_id with a prior ticket or job
// row, for the worker-mode scheduler to iterate over.
func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tenant_id FROM tickets
		UNION
		SELECT tenant_id FROM ingestion_jobs
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
