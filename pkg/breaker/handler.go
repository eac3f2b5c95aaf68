package breaker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ticketsync/ingestor/internal/apierror"
	"github.com/ticketsync/ingestor/internal/httpserver"
)

// Handler serves GET /circuit/{name}/status and POST /circuit/{name}/reset.
type Handler struct {
	registry *Registry
}

// NewHandler builds a breaker Handler over registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Mount registers circuit-breaker routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/circuit/{name}/status", h.status)
	r.Post("/circuit/{name}/reset", h.reset)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	httpserver.Respond(w, http.StatusOK, h.registry.Get(name).Status())
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.registry.Reset(name); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apierror.KindNotFound), err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"name": name, "status": "reset"})
}
