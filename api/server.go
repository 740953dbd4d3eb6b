/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/rates/*          Calculation and ranking
  /api/companies/*      Companies, carriers, rate cards, zones
  /api/ratecards/*      Rate card lookup
  /api/pincodes/*       Pincode reference data
  /api/zones/*          Zone classification
  /api/quotes           Quote ledger
  /api/admin/*          Zone reload
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/rates", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/rank", h.Rank)
		})

		r.Route("/companies", func(r chi.Router) {
			r.Post("/", h.CreateCompany)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/ratecards", h.ListRateCards)
				r.Post("/ratecards", h.PublishRateCard)
				r.Post("/ratecards/import", h.ImportRateCards)
				r.Get("/carriers", h.ListCarriers)
				r.Post("/carriers", h.SaveCarrier)
				r.Get("/assignments", h.ListAssignments)
				r.Post("/assignments", h.CreateAssignment)
				r.Get("/zones", h.ListZones)
			})
		})

		r.Get("/ratecards/{id}", h.GetRateCard)
		r.Get("/pincodes/{pincode}", h.GetPincode)
		r.Get("/zones/classify", h.Classify)
		r.Get("/quotes", h.ListQuotes)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reload", h.ReloadZones)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
