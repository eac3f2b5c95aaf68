package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketsync/ingestor/internal/telemetry"
	"github.com/ticketsync/ingestor/pkg/classify"
	"github.com/ticketsync/ingestor/pkg/lock"
	"github.com/ticketsync/ingestor/pkg/notify"
	"github.com/ticketsync/ingestor/pkg/ratelimit"
	"github.com/ticketsync/ingestor/pkg/ticket"
)

// Coordinator runs per-tenant ingestion: page fetching, classification,
// idempotent upsert, deletion reconciliation, and job/audit bookkeeping.
// Grounded on the source codebase's structure for long-running, lock-
// guarded background work (escalation.Engine), generalized to the
// page-loop and fire-and-forget notification contract of spec §4.7.
type Coordinator struct {
	tickets  *ticket.Store
	jobs     *Store
	client   *Client
	locks    *lock.Service
	limiter  *ratelimit.Limiter
	notifier *notify.Notifier
	slack    *notify.SlackChannel
	logger   *slog.Logger

	mu          sync.Mutex
	cancelFlags map[string]bool
}

// NewCoordinator wires the ingestion coordinator's dependencies.
func NewCoordinator(tickets *ticket.Store, jobs *Store, client *Client, locks *lock.Service, limiter *ratelimit.Limiter, notifier *notify.Notifier, slack *notify.SlackChannel, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		tickets:     tickets,
		jobs:        jobs,
		client:      client,
		locks:       locks,
		limiter:     limiter,
		notifier:    notifier,
		slack:       slack,
		logger:      logger,
		cancelFlags: make(map[string]bool),
	}
}

// RunIngestion executes one ingestion run for tenantID, per spec §4.7.
func (c *Coordinator) RunIngestion(ctx context.Context, tenantID string) (Result, error) {
	jobID := uuid.New().String()

	if err := c.locks.Acquire(ctx, "ingest:"+tenantID, jobID, 0); err != nil {
		if errors.Is(err, lock.ErrAlreadyHeld) {
			existing, lookupErr := c.jobs.GetRunningJobForTenant(ctx, tenantID)
			if lookupErr != nil {
				return Result{}, lookupErr
			}
			existingID := ""
			if existing != nil {
				existingID = existing.JobID
			}
			telemetry.IngestionRunsTotal.WithLabelValues("already_running").Inc()
			return Result{Status: "already_running", JobID: existingID}, nil
		}
		return Result{}, err
	}

	c.setCancelFlag(jobID, false)
	defer func() {
		_ = c.locks.Release(context.Background(), "ingest:"+tenantID, jobID)
		c.clearCancelFlag(jobID)
	}()

	now := time.Now().UTC()
	if err := c.jobs.CreateJob(ctx, Job{JobID: jobID, TenantID: tenantID, Status: JobRunning, StartedAt: now}); err != nil {
		return Result{}, err
	}

	result, runErr := c.runPages(ctx, tenantID, jobID)
	if runErr != nil {
		telemetry.IngestionRunsTotal.WithLabelValues("failed").Inc()
		_ = c.jobs.FinishJob(context.Background(), jobID, JobFailed, result.NewIngested, result.Updated, result.Errors)
		_ = c.jobs.RecordLog(context.Background(), LogEntry{
			JobID: jobID, TenantID: tenantID, LogStatus: LogFailed, Message: runErr.Error(),
			NewIngested: result.NewIngested, Updated: result.Updated, Errors: result.Errors,
		})
		return Result{}, runErr
	}

	finalStatus := JobCompleted
	logStatus := LogSuccess
	if c.cancelFlag(jobID) {
		finalStatus = JobCancelled
		result.Status = "cancelled"
	} else {
		result.Status = "completed"
	}
	if result.Errors > 0 {
		logStatus = LogPartialSuccess
	}
	telemetry.IngestionRunsTotal.WithLabelValues(result.Status).Inc()

	if err := c.jobs.FinishJob(context.Background(), jobID, finalStatus, result.NewIngested, result.Updated, result.Errors); err != nil {
		return Result{}, err
	}
	if err := c.jobs.RecordLog(context.Background(), LogEntry{
		JobID: jobID, TenantID: tenantID, LogStatus: logStatus,
		NewIngested: result.NewIngested, Updated: result.Updated, Errors: result.Errors,
	}); err != nil {
		return Result{}, err
	}

	result.JobID = jobID
	return result, nil
}

func (c *Coordinator) runPages(ctx context.Context, tenantID, jobID string) (Result, error) {
	result := Result{JobID: jobID}
	var observedExternalIDs []string

	page := 1
	for {
		if c.cancelFlag(jobID) {
			break
		}

		if !c.limiter.WaitAndAcquire(ctx, "external_api") {
			return result, ctx.Err()
		}

		fetchStart := time.Now()
		fetched, err := c.client.FetchPageWithRetry(ctx, tenantID, page)
		telemetry.IngestionPageDuration.WithLabelValues(tenantID).Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			return result, err
		}
		if fetched == nil {
			break
		}

		totalPages := fetched.Pagination.TotalPages
		progress := 0
		if totalPages > 0 {
			progress = page * 100 / totalPages
		}
		if err := c.jobs.UpdateProgress(ctx, jobID, page, totalPages, progress, result.NewIngested, result.Updated, result.Errors); err != nil {
			c.logger.Error("ingest: failed to persist progress", "job_id", jobID, "error", err)
		}

		for _, ext := range fetched.Tickets {
			observedExternalIDs = append(observedExternalIDs, ext.ExternalID)
			if err := c.processTicket(ctx, tenantID, ext, &result); err != nil {
				result.Errors++
				telemetry.TicketsIngestedTotal.WithLabelValues(tenantID, "error").Inc()
				c.logger.Warn("ingest: per-ticket processing failed",
					"tenant_id", tenantID, "external_id", ext.ExternalID, "error", err)
			}
		}

		if totalPages > 0 && page >= totalPages {
			break
		}
		page++
		if page%5 == 0 {
			_ = c.locks.Refresh(ctx, "ingest:"+tenantID, jobID, 0)
		}
	}

	deletedIDs, err := c.tickets.DetectDeletedTickets(ctx, tenantID, observedExternalIDs)
	if err != nil {
		return result, err
	}
	if len(deletedIDs) > 0 {
		if _, err := c.tickets.MarkDeleted(ctx, tenantID, deletedIDs); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (c *Coordinator) processTicket(ctx context.Context, tenantID string, ext ExternalTicket, result *Result) error {
	domainExt := ext.toDomain()

	syncResult, err := c.tickets.SyncTicket(ctx, tenantID, domainExt)
	if err != nil {
		return err
	}

	verdict := classify.Classify(ext.Subject, ext.Message)

	up, err := c.tickets.Upsert(ctx, ticket.Ticket{
		TenantID:       tenantID,
		ExternalID:     ext.ExternalID,
		Subject:        ext.Subject,
		Message:        ext.Message,
		Status:         ext.Status,
		Urgency:        string(verdict.Urgency),
		Sentiment:      string(verdict.Sentiment),
		RequiresAction: verdict.RequiresAction,
		CustomerID:     ext.CustomerID,
		Source:         "external_api",
		UpdatedAt:      ext.UpdatedAt,
	})
	if err != nil {
		return err
	}

	switch {
	case up.Created:
		result.NewIngested++
		telemetry.TicketsIngestedTotal.WithLabelValues(tenantID, "created").Inc()
		if err := c.tickets.RecordHistory(ctx, ticket.HistoryEntry{
			TicketID: up.Ticket.ID, TenantID: tenantID, Action: ticket.HistoryActionCreated,
		}); err != nil {
			c.logger.Error("ingest: failed to record created history", "ticket_id", up.Ticket.ID, "error", err)
		}
	case syncResult.Action == ticket.SyncUpdated:
		result.Updated++
		telemetry.TicketsIngestedTotal.WithLabelValues(tenantID, "updated").Inc()
	default:
		telemetry.TicketsIngestedTotal.WithLabelValues(tenantID, "unchanged").Inc()
	}

	if verdict.Urgency == classify.UrgencyHigh {
		payload := notify.Payload{
			TicketID: up.Ticket.ID,
			TenantID: tenantID,
			Urgency:  string(verdict.Urgency),
			Reason:   fmt.Sprintf("ticket %s classified high urgency", ext.ExternalID),
		}
		c.notifier.Send(ctx, payload)
		c.slack.Notify(payload)
	}

	return nil
}

// CancelJob sets the in-process cancellation flag for jobID. Returns false
// if the job is not currently tracked as running.
func (c *Coordinator) CancelJob(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cancelFlags[jobID]; !ok {
		return false
	}
	c.cancelFlags[jobID] = true
	return true
}

// GetJobStatus fetches a job's persisted bookkeeping row.
func (c *Coordinator) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	return c.jobs.GetJob(ctx, jobID)
}

// GetIngestionStatus reports the currently-running job for tenantID, or
// nil if none is running.
func (c *Coordinator) GetIngestionStatus(ctx context.Context, tenantID string) (*Job, error) {
	return c.jobs.GetRunningJobForTenant(ctx, tenantID)
}

func (c *Coordinator) setCancelFlag(jobID string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelFlags[jobID] = v
}

func (c *Coordinator) clearCancelFlag(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancelFlags, jobID)
}

func (c *Coordinator) cancelFlag(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelFlags[jobID]
}
