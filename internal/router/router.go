// Package router assembles the HTTP surface of the service.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/donors"
	"bloodlink/internal/membership"
	"bloodlink/internal/middleware"
	"bloodlink/internal/platform/httputil"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/requests"
	"bloodlink/pkg/platform/sentinel"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options carries everything the router needs to mount the handlers.
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Tokens     *membership.TokenIssuer
	Membership membership.Service
	Requests   requests.Service
	Donors     donors.Service
}

// New builds the chi router with public and authenticated route groups.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", opts.Metrics.Handler())

	r.Get("/blood-groups", handleBloodGroups)
	r.Get("/compatibility", handleCompatibility(opts.Logger))
	r.Get("/compatibility/stats", handleStats)

	membershipHandler := membership.NewHandler(opts.Membership, opts.Tokens, opts.Logger)
	membershipHandler.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(opts.Tokens, opts.Logger))

		membershipHandler.RegisterRoutes(r)
		requests.NewHandler(opts.Requests, opts.Membership, opts.Logger).RegisterRoutes(r)
		donors.NewHandler(opts.Donors, opts.Logger).RegisterRoutes(r)
	})

	return r
}

func handleBloodGroups(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, compatibility.ValidBloodGroups())
}

type compatibilityResponse struct {
	BloodGroup       string                     `json:"blood_group"`
	CompatibleDonors []compatibility.BloodGroup `json:"compatible_donors"`
	Explanation      string                     `json:"explanation"`
}

// handleCompatibility answers for any input; an unknown group yields an
// empty donor list and the engine's explanation.
func handleCompatibility(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("blood_group")
		if strings.TrimSpace(raw) == "" {
			httputil.WriteError(w, r, log, fmt.Errorf("%w: blood_group is required", sentinel.ErrValidation))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, compatibilityResponse{
			BloodGroup:       compatibility.Canonicalize(raw),
			CompatibleDonors: compatibility.CompatibleDonors(raw),
			Explanation:      compatibility.Explain(raw),
		})
	}
}

func handleStats(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, compatibility.Stats())
}
