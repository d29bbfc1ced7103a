// Command ingestion runs the catalog ingestion service.
//
// The service accepts movies via POST /api/v1/movies and
// POST /api/v1/movies/batch, validates them, upserts them into PostgreSQL and
// publishes a catalog-update event so recommenders rebuild their engines.
//
// With -import it instead loads a JSON movie cache, writes the movies the
// store does not have yet (all of them with -overwrite) and exits.
//
// When auth.enabled is set the write routes require an API key. Keys are
// managed with -create-key, -revoke-key and -list-keys.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
//	go run ./cmd/ingestion -import data/movies_cache.json [-overwrite]
//	go run ./cmd/ingestion -create-key importer [-key-ttl 720h]
package main

import (
	"context"
	"encoding/json"
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

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	importPath := flag.String("import", "", "import a JSON movie cache file and exit")
	overwrite := flag.Bool("overwrite", false, "with -import, also update movies already stored")
	createKey := flag.String("create-key", "", "create an API key with this name, print it and exit")
	keyTTL := flag.Duration("key-ttl", 0, "with -create-key, expire the key after this long")
	revokeKey := flag.String("revoke-key", "", "revoke the API key with this id and exit")
	listKeys := flag.Bool("list-keys", false, "list active API keys and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("ingestion", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}, func(ctx context.Context) error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	store := catalog.NewStore(db, catalog.CleanOptions{})
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure catalog schema", "error", err)
		os.Exit(1)
	}

	keys := apikey.NewStore(db)
	if err := keys.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure api key schema", "error", err)
		os.Exit(1)
	}
	if *createKey != "" || *revokeKey != "" || *listKeys {
		if err := runKeyCommand(ctx, keys, *createKey, *keyTTL, *revokeKey); err != nil {
			slog.Error("api key command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var events kafka.Publisher
	var batch *collector.Batcher
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates)
		defer producer.Close()
		events = producer
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		batch = collector.NewBatcher(analyticsProducer, collector.Options{Size: 200, Interval: 5 * time.Second})
		batch.Start(collectorCtx)
		slog.Info("kafka producers initialized",
			"catalog_topic", cfg.Kafka.Topics.CatalogUpdates,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	}
	// Deferred after the producers so the final flush runs before they close.
	defer func() {
		stopCollector()
		if batch != nil {
			batch.Close()
		}
	}()

	m := metrics.New()
	pub := publisher.New(store, events, batch, m)

	if *importPath != "" {
		if err := runImport(ctx, store, pub, *importPath, *overwrite); err != nil {
			slog.Error("import failed", "path", *importPath, "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "ingestion")
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))

	h := handler.New(pub, store)
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))
	r.Use(tracing.Middleware(tracing.NewSampler(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	if cfg.Auth.Enabled {
		h.Register(r, apikey.Require(keys))
		slog.Info("api key required for catalog writes")
	} else {
		h.Register(r)
	}
	r.Get("/health", h.Health)
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

	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

// runImport merges a JSON movie cache into the store. Movies already stored
// are skipped unless overwrite is set.
func runImport(ctx context.Context, store *catalog.Store, pub *publisher.Publisher, path string, overwrite bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()
	incoming, err := catalog.Decode(f)
	if err != nil {
		return err
	}

	existing, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading stored catalog: %w", err)
	}
	toWrite := catalog.Merge(nil, incoming)
	if !overwrite {
		toWrite = catalog.Merge(existing, incoming)[len(existing):]
	}
	for i := range toWrite {
		if err := catalog.ValidateMovie(&toWrite[i]); err != nil {
			return fmt.Errorf("record %d (id=%d): %w", i, toWrite[i].ID, err)
		}
	}
	slog.Info("importing movies",
		"path", path,
		"records", len(incoming),
		"stored", len(existing),
		"to_write", len(toWrite),
		"overwrite", overwrite,
	)
	if len(toWrite) == 0 {
		return nil
	}

	resp, err := pub.Import(ctx, "file:"+path, toWrite)
	if err != nil {
		return err
	}
	slog.Info("import finished",
		"inserted", resp.Inserted,
		"updated", resp.Updated,
		"event_id", resp.EventID,
		"status", resp.Status,
	)
	return nil
}

// runKeyCommand creates, revokes or lists API keys and prints the result as
// JSON on stdout.
func runKeyCommand(ctx context.Context, keys *apikey.Store, create string, ttl time.Duration, revoke string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	switch {
	case create != "":
		raw, info, err := keys.Create(ctx, create, ttl)
		if err != nil {
			return err
		}
		return enc.Encode(struct {
			Key string `json:"key"`
			*apikey.KeyInfo
		}{raw, info})
	case revoke != "":
		if err := keys.Revoke(ctx, revoke); err != nil {
			return fmt.Errorf("revoking %s: %w", revoke, err)
		}
		return enc.Encode(map[string]string{"revoked": revoke})
	default:
		list, err := keys.List(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(list)
	}
}
