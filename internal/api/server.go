// Package api exposes the dossier engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/pipeline"
	"github.com/sells-group/dossier-cli/internal/store"
)

// Server is the HTTP front of the engine.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	pipeline *pipeline.Pipeline
	store    store.Store
	limiter  *rate.Limiter
}

// New creates a server. st may be nil, in which case the dossier routes
// answer 503.
func New(cfg config.ServerConfig, p *pipeline.Pipeline, st store.Store) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: p,
		store:    st,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(cfg.RateLimitBurst, 1))
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if s.limiter != nil {
		s.router.Use(rateLimit(s.limiter))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/intake/evaluate", s.handleIntakeEvaluate)
		r.Post("/smartscore", s.handleSmartScore)

		r.Route("/committee", func(r chi.Router) {
			r.Post("/memo", s.handleMemo)
			r.Post("/stress", s.handleStress)
		})

		r.Route("/dossiers", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Post("/", s.handleCreateDossier)
			r.Get("/", s.handleListDossiers)
			r.Get("/{id}", s.handleGetDossier)
			r.Post("/{id}/evaluate", s.handleEvaluateDossier)
			r.Get("/{id}/audit", s.handleListAudit)
		})
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("api: starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("api: shutting down server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// rateLimit rejects requests beyond the shared token bucket with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "no store configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}
