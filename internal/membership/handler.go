package membership

import (
	"fmt"
	"log/slog"
	"net/http"

	"bloodlink/internal/middleware"
	"bloodlink/internal/platform/httputil"
	"bloodlink/pkg/platform/sentinel"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	tokens  *TokenIssuer
	logger  *slog.Logger
}

func NewHandler(service Service, tokens *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

// RegisterRoutes mounts the endpoints that need a bearer token.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type loginResponse struct {
	Token  string  `json:"token"`
	Person *Person `json:"person"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Role       string `json:"role"`
		BloodGroup string `json:"blood_group"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	person, err := h.service.RegisterPerson(r.Context(), RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		BloodGroup: req.BloodGroup,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, person)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	person, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	// optional: the client asked to log in as a specific role
	if req.Role != "" {
		expected, err := ParseRole(req.Role)
		if err != nil {
			httputil.WriteError(w, r, h.logger, err)
			return
		}
		if person.Role != expected {
			httputil.WriteError(w, r, h.logger, fmt.Errorf("%w: this account is registered as a %s, not a %s",
				sentinel.ErrRoleMismatch, person.Role, expected))
			return
		}
	}

	token, err := h.tokens.Issue(person)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, Person: person})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	person, err := CurrentPerson(r, h.service)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

// CurrentPerson resolves the authenticated caller to a registered person.
func CurrentPerson(r *http.Request, svc Service) (*Person, error) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		return nil, sentinel.ErrUnauthorized
	}
	person, err := svc.GetPerson(r.Context(), id.Email)
	if err != nil {
		return nil, fmt.Errorf("unknown caller: %w", sentinel.ErrUnauthorized)
	}
	return person, nil
}
