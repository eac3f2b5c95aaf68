package ingest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ticketsync/ingestor/internal/apierror"
	"github.com/ticketsync/ingestor/internal/httpserver"
	"github.com/ticketsync/ingestor/pkg/lock"
)

// Handler serves the /ingest* HTTP routes.
type Handler struct {
	coordinator *Coordinator
	locks       *lock.Service
}

// NewHandler builds an ingest Handler.
func NewHandler(coordinator *Coordinator, locks *lock.Service) *Handler {
	return &Handler{coordinator: coordinator, locks: locks}
}

// Mount registers ingest routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/ingest/run", h.run)
	r.Get("/ingest/status", h.status)
	r.Get("/ingest/progress/{job_id}", h.progress)
	r.Delete("/ingest/{job_id}", h.cancel)
	r.Get("/ingest/lock/{tenant_id}", h.lockStatus)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}

	result, err := h.coordinator.RunIngestion(r.Context(), tenantID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "ingestion run failed")
		return
	}

	if result.Status == "already_running" {
		w.Header().Set("X-Job-ID", result.JobID)
		httpserver.Respond(w, http.StatusConflict, map[string]any{
			"status": "already_running",
			"job_id": result.JobID,
		})
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}

	job, err := h.coordinator.GetIngestionStatus(r.Context(), tenantID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch ingestion status")
		return
	}
	if job == nil {
		httpserver.Respond(w, http.StatusOK, map[string]any{"status": "idle", "tenant_id": tenantID})
		return
	}

	httpserver.Respond(w, http.StatusOK, job)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.coordinator.GetJobStatus(r.Context(), jobID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch job status")
		return
	}
	if job == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apierror.KindNotFound), "job not found")
		return
	}

	httpserver.Respond(w, http.StatusOK, job)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	if !h.coordinator.CancelJob(jobID) {
		httpserver.RespondError(w, http.StatusNotFound, string(apierror.KindNotFound), "job is not running")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"status": "cancelled", "job_id": jobID})
}

func (h *Handler) lockStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant_id")

	st, err := h.locks.GetLockStatus(r.Context(), "ingest:"+tenantID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch lock status")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"locked":     st.Held,
		"owner_id":   st.OwnerID,
		"expires_at": st.ExpiresAt,
	})
}
