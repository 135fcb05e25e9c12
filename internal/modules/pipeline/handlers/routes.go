package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers pipeline, signal and performance routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pipelines/{source}", func(r chi.Router) {
		r.Get("/candidates", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetCandidates(w, r, chi.URLParam(r, "source"))
		})
		r.Get("/filters", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetFilters(w, r, chi.URLParam(r, "source"))
		})
		r.Post("/score", func(w http.ResponseWriter, r *http.Request) {
			h.HandleRunScoring(w, r, chi.URLParam(r, "source"))
		})
		r.Post("/evaluate", func(w http.ResponseWriter, r *http.Request) {
			h.HandleRunLifecycle(w, r, chi.URLParam(r, "source"))
		})
	})

	r.Get("/signals", h.HandleGetSignals)

	r.Route("/performance", func(r chi.Router) {
		r.Get("/summary", h.HandleGetPerformanceSummary)
		r.Get("/{period}/{source}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleComputePerformance(w, r, chi.URLParam(r, "period"), chi.URLParam(r, "source"))
		})
	})
}
