// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tadamon/internal/config"
	"tadamon/internal/domain/conversation"
	"tadamon/internal/server/handlers"
	conversationService "tadamon/internal/service/conversation"
	geoService "tadamon/internal/service/geo"
	listingService "tadamon/internal/service/listing"
)

// Dependencies are the services the HTTP API exposes
type Dependencies struct {
	Resolver   *geoService.Resolver
	Trackers   *geoService.TrackerRegistry
	Cities     *geoService.CityRegistry
	Feed       *listingService.Feed
	Manager    *conversationService.Manager
	Subscriber conversation.Subscriber
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	router := NewRouter(cfg, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// NewRouter builds the routing tree
func NewRouter(cfg config.ServerConfig, deps Dependencies) *chi.Mux {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	geoHandler := handlers.NewGeoHandler(deps.Resolver, deps.Trackers, deps.Cities)
	feedHandler := handlers.NewFeedHandler(deps.Feed, deps.Trackers)
	conversationHandler := handlers.NewConversationHandler(deps.Manager)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.Get("/cities", geoHandler.ListCities)
			r.Get("/distance", geoHandler.GetDistance)

			// Locations API
			r.Route("/locations", func(r chi.Router) {
				r.Post("/parse", geoHandler.ParseLocation)
				r.Post("/resolve", geoHandler.ResolveLocation)
			})

			// Per-viewer API
			r.Route("/viewers/{id}", func(r chi.Router) {
				r.Get("/location", geoHandler.GetViewerLocation)
				r.Put("/location", geoHandler.SetViewerLocation)
				r.Get("/feed", feedHandler.GetFeed)

				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", conversationHandler.ListConversations)
					r.Post("/", conversationHandler.StartConversation)
					r.Get("/{sid}", conversationHandler.GetConversation)
					r.Post("/{sid}/messages", conversationHandler.SendMessage)
				})
			})
		})
	})

	// WebSocket endpoint for real-time conversations
	router.Get("/ws/conversations/{sid}", handlers.SessionWebSocketHandler(deps.Manager, deps.Subscriber))

	return router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
