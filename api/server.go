/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for the browser frontend
  5. WithIdentity: Optional bearer token -> request identity

ROUTE GROUPS:
  /api/auth/*      Login and logout
  /api/slots/*     Slot listing and toggling
  /api/history     Booking history
  /api/stats       Admin dashboard numbers
  /api/ws          WebSocket snapshot stream

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(h.WithIdentity)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", h.ListSlots)
			r.Get("/mine", h.MySlots)
			r.Get("/{id}", h.GetSlot)
			r.Post("/{id}/toggle", h.ToggleSlot)
		})

		r.Get("/history", h.GetHistory)
		r.Get("/stats", h.GetStats)
		r.Get("/ws", h.ServeWS)
	})

	return r
}
