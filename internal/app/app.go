// Package app wires together the ticketsync service: the document store,
// cache, domain components, and the api/worker mode split. Grounded on the
// teacher's internal/app/app.go Run(ctx, cfg) structure, stripped of the
// auth/tenant/alert-routing machinery that does not apply to this domain.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ticketsync/ingestor/internal/config"
	"github.com/ticketsync/ingestor/internal/httpserver"
	"github.com/ticketsync/ingestor/internal/platform"
	"github.com/ticketsync/ingestor/internal/telemetry"
	"github.com/ticketsync/ingestor/pkg/analytics"
	"github.com/ticketsync/ingestor/pkg/breaker"
	"github.com/ticketsync/ingestor/pkg/ingest"
	"github.com/ticketsync/ingestor/pkg/lock"
	"github.com/ticketsync/ingestor/pkg/notify"
	"github.com/ticketsync/ingestor/pkg/ratelimit"
	"github.com/ticketsync/ingestor/pkg/ticket"
)

// Run starts the service in the mode named by cfg.Mode ("api" or "worker")
// and blocks until ctx is cancelled or a fatal error occurs.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting ticketsync", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	metricsReg := prometheus.NewRegistry()
	for _, c := range telemetry.All() {
		metricsReg.MustRegister(c)
	}

	durations, err := parseDurations(cfg)
	if err != nil {
		return err
	}

	ticketStore := ticket.NewStore(pool)
	jobStore := ingest.NewStore(pool)
	lockSvc := lock.New(pool, durations.lockTTL)
	limiter := ratelimit.New(cfg.RateLimitRequests, durations.rateLimitWindow)
	breakers := breaker.NewRegistry(cfg.BreakerFailureThreshold, durations.breakerCooldown)
	externalClient := ingest.NewClient(cfg.ExternalAPIURL)

	notifier := notify.New(cfg.NotifyURL, durations.notifyTimeout, breakers, logger, durations.notifyBaseDelay, cfg.NotifyMaxRetries)
	slackChannel := notify.NewSlackChannel(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)

	coordinator := ingest.NewCoordinator(ticketStore, jobStore, externalClient, lockSvc, limiter, notifier, slackChannel, logger)

	aggregator := analytics.NewAggregator(pool)
	statsCache := analytics.NewCache(aggregator, rdb, durations.statsCacheTTL, logger)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, metricsReg, ticketStore, coordinator, lockSvc, breakers, statsCache, durations.statsTimeout)
	case "worker":
		return runWorker(ctx, logger, lockSvc, coordinator, jobStore, durations.ingestScheduleInterval)
	default:
		return fmt.Errorf("app: unknown mode %q (expected \"api\" or \"worker\")", cfg.Mode)
	}
}

// durationSet holds the config.Config duration fields, pre-parsed once at
// startup rather than on every request. ExternalAPITimeout is not among
// them: it is not read anywhere.
type durationSet struct {
	lockTTL                time.Duration
	rateLimitWindow        time.Duration
	breakerCooldown        time.Duration
	notifyTimeout          time.Duration
	notifyBaseDelay        time.Duration
	statsCacheTTL          time.Duration
	statsTimeout           time.Duration
	ingestScheduleInterval time.Duration
}

func parseDurations(cfg *config.Config) (durationSet, error) {
	var d durationSet

	fields := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"LOCK_TTL", cfg.LockTTL, &d.lockTTL},
		{"RATE_LIMIT_WINDOW", cfg.RateLimitWindow, &d.rateLimitWindow},
		{"BREAKER_COOLDOWN", cfg.BreakerCooldown, &d.breakerCooldown},
		{"NOTIFY_TIMEOUT", cfg.NotifyTimeout, &d.notifyTimeout},
		{"NOTIFY_BASE_DELAY", cfg.NotifyBaseDelay, &d.notifyBaseDelay},
		{"STATS_CACHE_TTL", cfg.StatsCacheTTL, &d.statsCacheTTL},
		{"STATS_TIMEOUT", cfg.StatsTimeout, &d.statsTimeout},
		{"INGEST_SCHEDULE_INTERVAL", cfg.IngestScheduleInterval, &d.ingestScheduleInterval},
	}
	for _, f := range fields {
		parsed, err := time.ParseDuration(f.src)
		if err != nil {
			return d, fmt.Errorf("parsing %s %q: %w", f.name, f.src, err)
		}
		*f.dst = parsed
	}
	return d, nil
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	metricsReg *prometheus.Registry,
	ticketStore *ticket.Store,
	coordinator *ingest.Coordinator,
	lockSvc *lock.Service,
	breakers *breaker.Registry,
	statsCache *analytics.Cache,
	statsTimeout time.Duration,
) error {
	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg)

	ticket.NewHandler(ticketStore).Mount(srv.APIRouter)
	ingest.NewHandler(coordinator, lockSvc).Mount(srv.APIRouter)
	breaker.NewHandler(breakers).Mount(srv.APIRouter)

	// The stats endpoint alone carries the 2s performance-limit contract.
	srv.APIRouter.Group(func(r chi.Router) {
		r.Use(httpserver.StatsTimeout(statsTimeout))
		analytics.NewHandler(statsCache).Mount(r)
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, logger *slog.Logger, lockSvc *lock.Service, coordinator *ingest.Coordinator, jobStore *ingest.Store, interval time.Duration) error {
	logger.Info("worker started")

	scheduler := ingest.NewScheduler(coordinator, jobStore, interval, logger)

	janitor := time.NewTicker(5 * time.Minute)
	defer janitor.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-janitor.C:
				n, err := lockSvc.CleanupExpiredLocks(ctx)
				if err != nil {
					logger.Error("worker: lock cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("worker: cleaned up expired locks", "count", n)
				}
			}
		}
	}()

	scheduler.Run(ctx)
	return nil
}
