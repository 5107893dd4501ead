package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumberlens/backend-lumber/internal/buildorder"
	"github.com/lumberlens/backend-lumber/internal/config"
	"github.com/lumberlens/backend-lumber/internal/lock"
	"github.com/lumberlens/backend-lumber/internal/obs"
	"github.com/lumberlens/backend-lumber/internal/repo"
	"github.com/lumberlens/backend-lumber/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "lumberlens"), prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	buildOrdersRepo := repo.BuildOrders{Pool: pool}
	repriceService, err := buildorder.NewService(buildorder.Config{
		Store:              buildOrdersRepo,
		Products:           repo.Products{Pool: pool},
		Listings:           repo.Listings{Pool: pool},
		DefaultWasteFactor: cfg.DefaultWasteFactor,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init reprice service")
	}

	redisOpt, err := tasks.RedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	queue := envOrDefault("TASK_QUEUE", "default")
	snapshotBatch := envInt("REPRICE_SNAPSHOT_BATCH", 100)

	worker, err := tasks.NewWorker(tasks.WorkerConfig{
		RedisOpt:       redisOpt,
		Listings:       repo.Listings{Pool: pool},
		Orders:         buildOrdersRepo,
		Reprices:       repriceService,
		Locker:         lock.Locker{R: redisClient},
		Logger:         logger,
		Concurrency:    envInt("TASK_CONCURRENCY", 5),
		Queue:          queue,
		SnapshotMaxAge: cfg.RepriceSnapshotMaxAge,
		SnapshotBatch:  snapshotBatch,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init task worker")
	}

	client := tasks.NewClient(redisOpt, queue)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	interval := envDuration("TASK_TICK_INTERVAL", 15*time.Minute)
	logger.Info().Dur("tick_interval", interval).Msg("worker starting")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.RunPeriodic(ctx, interval, snapshotBatch, logger)
	}()

	worker.Run(ctx)
	wg.Wait()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "lumberlens-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
