package ticket

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ticketsync/ingestor/internal/apierror"
	"github.com/ticketsync/ingestor/internal/httpserver"
)

// Handler serves the /tickets* HTTP routes.
type Handler struct {
	store *Store
}

// NewHandler builds a ticket Handler over store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Mount registers ticket routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tickets", h.list)
	r.Get("/tickets/urgent", h.listUrgent)
	r.Get("/tickets/{external_id}", h.get)
	r.Get("/tickets/{external_id}/history", h.history)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), err.Error())
		return
	}

	f := Filter{
		Status:  r.URL.Query().Get("status"),
		Urgency: r.URL.Query().Get("urgency"),
		Source:  r.URL.Query().Get("source"),
	}

	ctx := r.Context()
	items, err := h.store.ListFiltered(ctx, tenantID, f, params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to list tickets")
		return
	}

	total, err := h.store.CountFiltered(ctx, tenantID, f)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to count tickets")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}

func (h *Handler) listUrgent(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}

	items, err := h.store.ListUrgent(r.Context(), tenantID, 100)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to list urgent tickets")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}
	externalID := chi.URLParam(r, "external_id")

	t, err := h.store.GetByExternalID(r.Context(), tenantID, externalID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch ticket")
		return
	}
	if t == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apierror.KindNotFound), "ticket not found")
		return
	}

	httpserver.Respond(w, http.StatusOK, t)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "tenant_id is required")
		return
	}
	externalID := chi.URLParam(r, "external_id")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			httpserver.RespondError(w, http.StatusUnprocessableEntity, string(apierror.KindValidationFailed), "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	ctx := r.Context()
	t, err := h.store.GetByExternalID(ctx, tenantID, externalID)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch ticket")
		return
	}
	if t == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apierror.KindNotFound), "ticket not found")
		return
	}

	entries, err := h.store.ListHistory(ctx, tenantID, t.ID, limit)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, string(apierror.KindInternal), "failed to fetch ticket history")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"items": entries})
}
