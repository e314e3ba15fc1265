// Package api exposes the HTTP trigger surface for the hunter service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	apphunting "github.com/ahrav/leakhunter/internal/app/hunting"
	"github.com/ahrav/leakhunter/internal/domain/hunting"
	"github.com/ahrav/leakhunter/pkg/common/logger"
	"github.com/ahrav/leakhunter/pkg/common/otel"
)

// HuntRunner starts one hunt invocation. Implemented by the orchestrator.
type HuntRunner interface {
	Run(ctx context.Context) (apphunting.Summary, error)
}

// ReadinessChecker reports whether the result sink is reachable.
type ReadinessChecker interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
}

type Server struct {
	logger  *logger.Logger
	router  *chi.Mux
	tracer  trace.Tracer
	runner  HuntRunner
	store   ReadinessChecker
	metrics APIMetrics

	listenAddr      string
	shutdownTimeout time.Duration
}

func NewServer(
	listenAddr string,
	shutdownTimeout time.Duration,
	runner HuntRunner,
	store ReadinessChecker,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics APIMetrics,
) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(loggerMiddleware(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		logger:          log,
		router:          r,
		tracer:          tracer,
		runner:          runner,
		store:           store,
		metrics:         metrics,
		listenAddr:      listenAddr,
		shutdownTimeout: shutdownTimeout,
	}

	s.routes()
	return s
}

func loggerMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Post("/hunts", s.handleStartHunt)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	// A fingerprint lookup doubles as a sink connectivity probe.
	if _, err := s.store.Exists(r.Context(), "readiness-probe"); err != nil {
		s.logger.Error(r.Context(), "readiness probe failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleStartHunt runs one hunt invocation synchronously and returns its
// summary. Per-candidate errors do not fail the request; only a run-level
// failure maps to a 500.
func (s *Server) handleStartHunt(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncHuntRequestsTotal(r.Context())

	summary, err := s.runner.Run(r.Context())
	if err != nil {
		var qe *hunting.QueryError
		reason := "internal"
		if errors.As(err, &qe) {
			reason = "query"
		}
		s.metrics.IncHuntRequestErrors(r.Context(), reason)
		s.logger.Error(r.Context(), "hunt invocation failed", "error", err, "run_id", summary.RunID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(summary)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.logger.Error(r.Context(), "failed to encode summary", "error", err)
	}
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server",
		"addr", server.Addr,
		"service", "hunter",
	)

	return server.ListenAndServe()
}
