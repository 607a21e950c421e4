package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis and compute routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis/{symbol}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h.HandleAnalyze(w, r, "")
		})
		for _, view := range []string{"metrics", "montecarlo", "portfolio", "charts"} {
			view := view
			r.Get("/"+view, func(w http.ResponseWriter, r *http.Request) {
				h.HandleAnalyze(w, r, view)
			})
		}
	})

	r.Route("/compute", func(r chi.Router) {
		r.Post("/returns", h.HandleComputeReturns)
		r.Post("/metrics", h.HandleComputeMetrics)
		r.Post("/montecarlo", h.HandleComputeMonteCarlo)
		r.Post("/portfolio", h.HandleComputePortfolio)
	})
}
