package donors

import (
	"log/slog"
	"net/http"

	"bloodlink/internal/platform/httputil"
	"bloodlink/internal/requests"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the donor directory. Every route needs an
// authenticated caller.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/donors", h.handleList)
	r.Get("/donors/{email}", h.handleProfile)
	r.Get("/requests/{id}/donors", h.handleRequestDonors)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDonors(r.Context(), r.URL.Query().Get("blood_group"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleRequestDonors(w http.ResponseWriter, r *http.Request) {
	id, err := requests.RequestID(r)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	matches, err := h.service.CompatibleDonorsForRequest(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matches)
}
