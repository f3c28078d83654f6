package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/propdesk/propdesk/internal/config"
	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/health"
	"github.com/propdesk/propdesk/internal/metrics"
	"github.com/propdesk/propdesk/internal/models"
	"github.com/propdesk/propdesk/internal/moderation"
	"github.com/propdesk/propdesk/internal/offers"
	"github.com/propdesk/propdesk/internal/stats"
	"github.com/propdesk/propdesk/internal/submission"
)

// StatsService runs company statistics functions
type StatsService interface {
	Get(ctx context.Context, kind stats.Kind, companyID string, param *float64) ([]stats.Row, error)
}

// Dependencies are the services behind the HTTP surface.
// Stats and Metrics may be nil.
type Dependencies struct {
	Offers     *offers.Service
	Submission *submission.Pipeline
	Moderation *moderation.Service
	Stats      StatsService
	Hub        *events.Hub
	Health     *health.Registry
	Metrics    *metrics.Metrics
	Clients    ClientStore
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	reviews        config.ReviewsConfig
	router         *chi.Mux
	deps           Dependencies
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, reviews config.ReviewsConfig, deps Dependencies) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if reviews.MaxUploadMemory <= 0 {
		reviews.MaxUploadMemory = 32 << 20
	}

	s := &Server{
		config:         cfg,
		reviews:        reviews,
		deps:           deps,
		authMiddleware: NewAuthMiddleware(deps.Clients),
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

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Moderation feed is long-lived and stays outside the request timeout
	r.With(
		s.authMiddleware.Authenticate,
		s.authMiddleware.RequirePermission(models.PermReviewsRead),
	).Get("/api/v1/admin/reviews/stream", s.handleReviewStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))

		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		if s.deps.Metrics != nil {
			r.Handle("/metrics", s.deps.Metrics.Handler())
		}

		// Public review form endpoint used by the site
		r.Post("/api/submit-review", s.handleSubmitReview)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/offers", func(r chi.Router) {
				r.Get("/", s.handleListOffers)
				r.Get("/facets", s.handleOfferFacets)
			})

			r.Post("/reviews", s.handleSubmitReview)

			r.Get("/stats/{companyId}/{kind}", s.handleCompanyStats)

			// Moderation (protected by API key)
			r.Route("/admin/reviews", func(r chi.Router) {
				r.Use(s.authMiddleware.Authenticate)

				r.With(s.authMiddleware.RequirePermission(models.PermReviewsRead)).Get("/", s.handleListReviews)
				r.With(s.authMiddleware.RequirePermission(models.PermReviewsRead)).Get("/{id}", s.handleGetReview)
				r.With(s.authMiddleware.RequirePermission(models.PermReviewsModerate)).Post("/{id}/status", s.handleSetReviewStatus)
			})
		})
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
