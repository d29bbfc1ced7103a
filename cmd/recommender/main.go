// Command recommender serves content-based movie recommendations.
//
// On startup it loads the catalog from the configured source (a JSON cache
// file or PostgreSQL), builds the recommendation engine and serves
// POST /api/v1/recommendations. Catalog-update events from the ingestion
// service trigger a rebuild; queries in flight keep the engine they started
// with.
//
// Usage:
//
//	go run ./cmd/recommender [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/consumer"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("recommender", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recommender service",
		"port", cfg.Server.Port,
		"catalog_source", cfg.Catalog.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "recommender")
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	cleanOpts := catalog.CleanOptions{
		DropIncomplete: cfg.Catalog.DropIncomplete,
		MinVoteCount:   cfg.Catalog.MinVoteCount,
	}

	var source catalog.Source
	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		db, err := connectPostgres(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := catalog.NewStore(db, cleanOpts)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure catalog schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(db.Ping))
		source = store
	default:
		source = &catalog.FileSource{Path: cfg.Catalog.Path, Options: cleanOpts}
	}

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, recommendation caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.OptionalPingCheck(redisClient.Ping))
			slog.Info("recommendation cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	breaker := resilience.NewCircuitBreaker("catalog-source", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	holder := recommender.NewHolder(nil)
	reloadOpts := []recommender.ReloaderOption{
		recommender.WithMetrics(m),
		recommender.WithTimeout(cfg.Catalog.ReloadTimeout),
		recommender.WithBreaker(breaker),
	}
	if resultCache != nil {
		reloadOpts = append(reloadOpts, recommender.WithInvalidator(resultCache))
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(analyticsProducer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		reloadOpts = append(reloadOpts, recommender.WithEvents(collector))
	}
	reloader := recommender.NewReloader(source, holder, reloadOpts...)

	err = resilience.Retry(ctx, "initial catalog load", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     15 * time.Second,
		Retryable: func(err error) bool {
			return !errors.Is(err, apperrors.ErrSchema)
		},
	}, func(ctx context.Context) error {
		_, err := reloader.Reload(ctx)
		return err
	})
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	checker.Register("engine", health.StatusCheck(func() (health.Status, string) {
		e := holder.Load()
		if e == nil {
			return health.StatusDown, "no catalog loaded"
		}
		return health.StatusUp, fmt.Sprintf("%d movies, version %s", e.Len(), e.Version())
	}))
	// The loaded engine keeps serving while the source is failing.
	checker.Register("catalog-source", health.StatusCheck(func() (health.Status, string) {
		if s := breaker.Stats(); s.State != resilience.StateClosed.String() {
			return health.StatusDegraded, fmt.Sprintf("breaker %s after %d failures", s.State, s.ConsecutiveFailures)
		}
		return health.StatusUp, ""
	}))

	if cfg.Kafka.Enabled {
		// Every replica rebuilds on every event, so each gets its own group.
		hostname, _ := os.Hostname()
		group := fmt.Sprintf("%s-recommender-%s", cfg.Kafka.ConsumerGroup, hostname)
		catalogConsumer := consumer.New(kafka.NewConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.CatalogUpdates,
			group,
			consumer.HandleMessage(reloader, holder),
		))
		go func() {
			if err := catalogConsumer.Start(ctx); err != nil {
				slog.Error("catalog consumer error", "error", err)
			}
		}()
		slog.Info("catalog consumer started", "topic", cfg.Kafka.Topics.CatalogUpdates, "group", group)
	}

	h := handler.New(holder, reloader, resultCache, collector, m, cfg.Recommend)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))
	r.Use(tracing.Middleware(tracing.NewSampler(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	h.Register(r)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("recommender service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("recommender service stopped")
}

func connectPostgres(ctx context.Context, cfg config.PostgresConfig) (*postgres.Client, error) {
	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}, func(ctx context.Context) error {
		var err error
		db, err = postgres.New(ctx, cfg)
		return err
	})
	return db, err
}
