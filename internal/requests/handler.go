package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bloodlink/internal/membership"
	"bloodlink/internal/platform/httputil"
	"bloodlink/pkg/platform/sentinel"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
	members membership.Service
	logger  *slog.Logger
}

func NewHandler(service Service, members membership.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, members: members, logger: logger}
}

// RegisterRoutes mounts the request endpoints. Every route needs an
// authenticated caller.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.handleCreate)
	r.Get("/requests", h.handleListActive)
	r.Get("/requests/{id}", h.handleGet)
	r.Get("/requests/{id}/history", h.handleHistory)
	r.Post("/requests/{id}/accept", h.handleAccept)
	r.Post("/requests/{id}/confirm", h.handleConfirm)
	r.Get("/me/requests", h.handleMyRequests)
	r.Get("/me/donations", h.handleMyDonations)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	person, err := membership.CurrentPerson(r, h.members)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	// units arrive either as a JSON number or as the text of a form field
	var req struct {
		BloodGroup string          `json:"blood_group"`
		Units      json.RawMessage `json:"units"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	// unparseable units become 0 so the service reports role and blood group
	// problems first
	units, err := ParseUnits(unitsText(req.Units))
	if err != nil {
		units = 0
	}

	created, err := h.service.CreateRequest(r.Context(), person, req.BloodGroup, units)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ListActiveRequests(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, active)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := RequestID(r)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type historyEntry struct {
	Version   int             `json:"version"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := RequestID(r)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	out := make([]historyEntry, 0, len(events))
	for _, e := range events {
		entry := historyEntry{Version: e.Version, EventType: e.EventType, Data: e.EventData}
		if !e.CreatedAt.IsZero() {
			entry.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.AcceptRequest)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmRequest)
}

type transitionFunc func(ctx context.Context, person *membership.Person, id uuid.UUID) (*BloodRequest, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	person, err := membership.CurrentPerson(r, h.members)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	id, err := RequestID(r)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	updated, err := apply(r.Context(), person, id)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	person, err := membership.CurrentPerson(r, h.members)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	mine, err := h.service.RequestsForUser(r.Context(), person.Email, person.Role)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mine)
}

func (h *Handler) handleMyDonations(w http.ResponseWriter, r *http.Request) {
	person, err := membership.CurrentPerson(r, h.members)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if person.Role != membership.RoleDonor {
		httputil.WriteError(w, r, h.logger, fmt.Errorf("%w: only donors have a donation history", sentinel.ErrRoleMismatch))
		return
	}
	donations, err := h.service.DonationsFor(r.Context(), person.Email)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donations)
}

func unitsText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// RequestID parses the {id} URL parameter.
func RequestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid request id", sentinel.ErrValidation)
	}
	return id, nil
}
