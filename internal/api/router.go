package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/rescan"
)

func NewRouter(orch *rescan.Orchestrator, ms *matchstore.MatchStore, adminToken string, rateLimit int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	if rateLimit > 0 {
		r.Use(RateLimitMiddleware(rateLimit))
	}

	scoring := NewScoringHandler(orch)
	matches := NewMatchesHandler(ms)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/matches", matches.List)
		r.Get("/matches/{id}", matches.Get)
		r.Get("/rescan/{id}", scoring.Job)

		r.Group(func(r chi.Router) {
			r.Use(ActorMiddleware)

			r.Post("/score", scoring.Score)
			r.Post("/investors/{id}/live-score", scoring.LiveScore)

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(adminToken))
				r.Post("/rescan", scoring.StartRescan)
				r.Delete("/rescan/{id}", scoring.CancelRescan)
				r.Post("/investors/{id}/rescan", scoring.RescanInvestor)
				r.Post("/targets/{id}/rescan", scoring.RescanTarget)

				r.Post("/matches/{id}/approve", matches.Approve)
				r.Post("/matches/{id}/dismiss", matches.Dismiss)
				r.Post("/matches/{id}/convert", matches.Convert)
			})
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
