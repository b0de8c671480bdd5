/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the shop UI

ROUTE GROUPS:
  /api/customers/*  Customer records
  /api/search       Search
  /api/settings/*   Settings
  /api/backups/*    Backup log
  /api/export       Export document
  /api/import       Import document
  /api/reset        Remove every customer
  /api/ids/*        Id generator
  /api/sync/*       Offline sync queue
  /api/scenarios/*  Sample data
  /api/events       Websocket update stream

SEE ALSO:
  - handlers.go: Handler implementations
  - events.go: Update stream
  - cmd/tailorbook/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. A nil events
// handler leaves /api/events unrouted.
func NewRouter(h *Handler, events http.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Delete("/{id}/purge", h.PurgeCustomer)
		})
		r.Get("/search", h.Search)

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Get("/{key}", h.GetSetting)
			r.Put("/{key}", h.PutSetting)
		})

		// Backup routes
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.ListBackups)
			r.Post("/", h.CreateBackup)
			r.Post("/{id}/restore", h.RestoreBackup)
		})
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/reset", h.Reset)

		// Id routes
		r.Route("/ids", func(r chi.Router) {
			r.Post("/next", h.NextID)
			r.Post("/sync", h.SyncIDs)
		})

		// Sync queue routes
		r.Route("/sync", func(r chi.Router) {
			r.Get("/queue", h.ListQueue)
			r.Post("/drain", h.Drain)
			r.Put("/online", h.SetOnline)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		if events != nil {
			r.Handle("/events", events)
		}
	})

	return r
}
