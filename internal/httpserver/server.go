package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ticketsync/ingestor/internal/config"
)

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *prometheus.Registry

	externalAPIURL string
	httpClient     *http.Client
	startedAt      time.Time
}

// NewServer creates an HTTP server with middleware and health/metrics
// endpoints. Domain handlers should be mounted on APIRouter (or Router
// directly) after calling NewServer. Authentication is explicitly out of
// scope for this service — see SPEC_FULL.md §1 Non-goals.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:         chi.NewRouter(),
		Logger:         logger,
		DB:             db,
		Redis:          rdb,
		Metrics:        metricsReg,
		externalAPIURL: cfg.ExternalAPIURL,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		startedAt:      time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Get("/health", s.handleHealth)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.APIRouter = s.Router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

// healthResponse is the JSON shape returned by /health (§6).
type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// handleHealth reports the health of every external dependency: the
// document store, Redis, and the upstream ticket source.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := map[string]string{
		"database":     s.checkDatabase(ctx),
		"redis":        s.checkRedis(ctx),
		"external_api": s.checkExternalAPI(ctx),
	}

	status := "ok"
	for _, v := range deps {
		if v != "healthy" {
			status = "degraded"
		}
	}

	resp := healthResponse{Status: status, Dependencies: deps}
	if status == "ok" {
		Respond(w, http.StatusOK, resp)
	} else {
		Respond(w, http.StatusServiceUnavailable, resp)
	}
}

func (s *Server) checkDatabase(ctx context.Context) string {
	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("health check: database ping failed", "error", err)
		return "unhealthy"
	}
	return "healthy"
}

func (s *Server) checkRedis(ctx context.Context) string {
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("health check: redis ping failed", "error", err)
		return "unhealthy"
	}
	return "healthy"
}

func (s *Server) checkExternalAPI(ctx context.Context) string {
	if s.externalAPIURL == "" {
		return "healthy"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.externalAPIURL, nil)
	if err != nil {
		return "unhealthy"
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.Logger.Error("health check: external API unreachable", "error", err)
		return "unhealthy"
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "unhealthy"
	}
	return "healthy"
}
