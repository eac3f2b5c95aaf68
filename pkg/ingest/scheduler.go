package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler periodically triggers ingestion for every known tenant in
// worker mode. Grounded on the source codebase's roster.RunScheduleTopUpLoop
// / escalation.Engine.Run ticker idiom (§4.7 SUPPLEMENTED).
type Scheduler struct {
	coordinator *Coordinator
	jobs        *Store
	interval    time.Duration
	logger      *slog.Logger
}

// NewScheduler builds a Scheduler that wakes every interval.
func NewScheduler(coordinator *Coordinator, jobs *Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{coordinator: coordinator, jobs: jobs, interval: interval, logger: logger}
}

// Run blocks, triggering ingestion sweeps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	tenantIDs, err := s.jobs.ListTenantIDs(ctx)
	if err != nil {
		s.logger.Error("scheduler: failed to list tenants", "error", err)
		return
	}

	for _, tenantID := range tenantIDs {
		result, err := s.coordinator.RunIngestion(ctx, tenantID)
		if err != nil {
			s.logger.Error("scheduler: ingestion run failed", "tenant_id", tenantID, "error", err)
			continue
		}
		if result.Status == "already_running" {
			s.logger.Info("scheduler: ingestion already running, skipping", "tenant_id", tenantID, "job_id", result.JobID)
			continue
		}
		s.logger.Info("scheduler: ingestion run finished",
			"tenant_id", tenantID, "job_id", result.JobID, "status", result.Status,
			"new_ingested", result.NewIngested, "updated", result.Updated, "errors", result.Errors)
	}
}
