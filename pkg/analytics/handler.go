package analytics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ticketsync/ingestor/internal/apierror"
	"github.com/ticketsync/ingestor/internal/httpserver"
)

// Handler serves GET /tenants/{tenant_id}/stats.
type Handler struct {
	cache *Cache
}

// NewHandler builds an analytics Handler.
func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

// Mount registers analytics routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tenants/{tenant_id}/stats", h.stats)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant_id")

	to := time.Now().UTC()
	if v := r.URL.Query().Get("to_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "to_date must be RFC3339")
			return
		}
		to = parsed.UTC()
	}

	from := to.Add(-60 * 24 * time.Hour)
	if v := r.URL.Query().Get("from_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "from_date must be RFC3339")
			return
		}
		from = parsed.UTC()
	}

	stats, err := h.cache.GetTenantStats(r.Context(), tenantID, from, to)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to compute tenant stats")
		return
	}

	httpserver.Respond(w, http.StatusOK, stats)
}
