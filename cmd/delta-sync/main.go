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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/ttd-workflows/api/controllers"
	"github.com/angelmondragon/ttd-workflows/api/routes"
	"github.com/angelmondragon/ttd-workflows/internal/cron"
	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/bigquery"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	"github.com/angelmondragon/ttd-workflows/pkg/db"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
	"github.com/angelmondragon/ttd-workflows/pkg/migrate"
	"github.com/angelmondragon/ttd-workflows/pkg/pubsub"
	"github.com/angelmondragon/ttd-workflows/pkg/redis"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

const (
	serviceName     = "delta-sync"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Redact:      cfg.Secrets(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"platform_env": cfg.Platform.Environment,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "delta sync stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "delta sync shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	var (
		lock        cron.Lock = &cron.LocalLock{}
		checkpoints delta.CheckpointStore
		redisPinger controllers.Pinger
	)
	checkpoints = delta.NewGormCheckpoints(dbClient.DB())
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), cfg.Delta.LockTTL)
		if err != nil {
			return fmt.Errorf("create sync lock: %w", err)
		}
		lock = redisLock
		checkpoints = delta.NewRedisCheckpoints(redisClient)
		redisPinger = redisClient
	} else {
		logg.Warn(ctx, "redis disabled, using a process-local sync lock")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := ttd.NewClient(cfg.Platform,
		ttd.WithLogger(logg),
		ttd.WithMetrics(metrics.NewAPIMetrics(reg)),
	)
	if err != nil {
		return fmt.Errorf("create platform client: %w", err)
	}

	var (
		exporters   []delta.Exporter
		exportPings = map[string]controllers.Pinger{}
	)
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return fmt.Errorf("bootstrap pubsub: %w", err)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		exp, err := delta.NewPubSubExporter(psClient.DeltaPublisher(), logg)
		if err != nil {
			return fmt.Errorf("create pubsub exporter: %w", err)
		}
		exporters = append(exporters, exp)
		exportPings["pubsub"] = psClient
	}
	if cfg.BigQuery.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return fmt.Errorf("bootstrap bigquery: %w", err)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		exp, err := delta.NewBigQueryExporter(bqClient, bqClient.Table(), logg)
		if err != nil {
			return fmt.Errorf("create bigquery exporter: %w", err)
		}
		exporters = append(exporters, exp)
		exportPings["bigquery"] = bqClient
	}

	changes := delta.NewRepository(dbClient.DB())
	registry, err := buildRegistry(cfg, client, logg, checkpoints, changes, exporters...)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "workflows", registry.Names()), "delta workflows scheduled")

	runner, err := workflows.NewRunner(workflows.RunnerParams{
		Logger:   logg,
		Registry: registry,
		Metrics:  metrics.NewWorkflowMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Runner:   runner,
		Registry: registry,
		Lock:     lock,
		Interval: cfg.Delta.SyncInterval,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisPinger,
		Changes:  changes,
		Gatherer: reg,
		Exports:  exportPings,
	})
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", server.Addr), "starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logg.Info(gctx, "starting delta scheduler")
		if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
