// cmd/scoring-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inclusion-scoring/internal/common/camunda"
	"inclusion-scoring/internal/common/config"
	"inclusion-scoring/internal/common/database"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/common/observability"
	"inclusion-scoring/internal/endpoint"
	"inclusion-scoring/internal/modelregistry"
	"inclusion-scoring/internal/predictor"
	"inclusion-scoring/internal/store"

	sr "inclusion-scoring/internal/workers/scoring/score-records"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting scoring server...",
		zap.String("model", cfg.Model.Name),
		zap.String("registry", cfg.Model.Registry.Type),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Tracing, cfg.App.Name, cfg.App.Version)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()
	var checks []endpoint.ReadinessCheck

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("postgres schema migration failed", zap.Error(err))
		}
		checks = append(checks, endpoint.ReadinessCheck{Name: "postgres", Check: pg.Ping})
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Redis with retry ---
	var cache store.PredictionCache
	if cfg.Database.Redis.Enabled {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		cache = store.NewRedisCache(redis.Client, config.GetDuration(cfg.Cache.TTL))
		checks = append(checks, endpoint.ReadinessCheck{Name: "redis", Check: redis.Ping})
		zapLog.Info("Redis connected successfully")
	}

	// --- Init Elasticsearch with retry ---
	var eventIndex store.AuditLog
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		eventIndex = store.NewIndexAudit(store.NewESIndexer(esClient.Client, esClient.Index))
		checks = append(checks, endpoint.ReadinessCheck{Name: "elasticsearch", Check: esClient.Ping})
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", esClient.Index))
	}

	// --- Resolve and load the model once ---
	var db modelregistry.Querier
	var pgAudit store.AuditLog
	if pg != nil {
		db = pg.DB
		pgAudit = store.NewPostgresAudit(pg.DB)
	}
	audit := store.NewMultiAudit(pgAudit, eventIndex)

	resolver, err := modelregistry.New(cfg.Model.Registry, db)
	if err != nil {
		zapLog.Fatal("model registry init failed", zap.Error(err))
	}

	handler, err := endpoint.Init(ctx, endpoint.Options{
		ModelName:     cfg.Model.Name,
		ModelVersion:  cfg.Model.Version,
		Resolver:      resolver,
		Loader:        predictor.NewFileLoader(),
		Logger:        log,
		Cache:         cache,
		CachePrefix:   cfg.Cache.KeyPrefix,
		Audit:         audit,
		Observability: obs,
		Tracing:       tracing,
	})
	if err != nil {
		zapLog.Fatal("model init failed", zap.Error(err))
	}

	// --- Workflow worker ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks = append(checks, endpoint.ReadinessCheck{Name: "zeebe", Check: zeebe.HealthCheck})

		if config.IsWorkerEnabled(cfg, sr.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, sr.TaskType)
			h := sr.NewHandler(sr.LoadConfig(wcfg), handler, log)
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), sr.TaskType, wcfg, h.Handle, log))
		}
	}

	// --- HTTP server ---
	server := endpoint.NewServer(handler, cfg.Server, log, checks...)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Scoring server stopped")
}
