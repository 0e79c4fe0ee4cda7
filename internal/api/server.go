package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/challenge-engine/internal/challenge"
	"github.com/terra-clan/challenge-engine/internal/config"
	"github.com/terra-clan/challenge-engine/internal/events"
	"github.com/terra-clan/challenge-engine/internal/storage"
	"github.com/terra-clan/challenge-engine/internal/templates"
	"github.com/terra-clan/challenge-engine/internal/user"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	coordinator    *challenge.Coordinator
	challenges     *challenge.Service
	journey        *user.JourneyService
	templateLoader *templates.Loader
	eventHub       *events.Hub
	repo           storage.Repository
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	coordinator *challenge.Coordinator,
	challenges *challenge.Service,
	journey *user.JourneyService,
	loader *templates.Loader,
	hub *events.Hub,
	repo storage.Repository,
) *Server {
	s := &Server{
		config:         cfg,
		coordinator:    coordinator,
		challenges:     challenges,
		journey:        journey,
		templateLoader: loader,
		eventHub:       hub,
		repo:           repo,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by API key authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.Route("/challenges", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("challenges:read")).Get("/", s.handleListChallenges)
			r.With(s.authMiddleware.RequirePermission("challenges:write")).Post("/generate", s.handleGenerateChallenge)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("challenges:read")).Get("/", s.handleGetChallenge)
				r.With(s.authMiddleware.RequirePermission("challenges:write")).Post("/submit", s.handleSubmitResponse)
				r.With(s.authMiddleware.RequirePermission("challenges:write")).Patch("/", s.handleUpdateChallenge)
				r.With(s.authMiddleware.RequirePermission("challenges:write")).Delete("/", s.handleDeleteChallenge)
			})
		})

		r.Route("/templates", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("templates:read")).Get("/", s.handleListTemplates)
			r.With(s.authMiddleware.RequirePermission("templates:read")).Get("/{id}", s.handleGetTemplate)
		})

		r.With(s.authMiddleware.RequirePermission("challenges:read")).Get("/focus-areas", s.handleListFocusAreas)
		r.With(s.authMiddleware.RequirePermission("users:read")).Get("/users/{id}/journey", s.handleUserJourney)

		// Live domain-event stream
		r.With(s.authMiddleware.RequirePermission("events:read")).Get("/events/ws", s.handleEventsWS)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
