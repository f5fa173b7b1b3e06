// Package main - точка входа фонового worker-процесса аналитики графа.
//
// Worker отвечает за задачи, работающие с разделяемым состоянием:
// - Ночная сверка счётчиков взаимодействий: Redis-счётчики
//   пересобираются из durable-журнала событий в PostgreSQL.
//
// Снимки метрик и чистка кеша сюда не входят: они оперируют
// in-process состоянием API-инстанса и выполняются его планировщиком.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sociogram/graph-analytics/config"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/postgres"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/redis"
	"github.com/sociogram/graph-analytics/internal/infrastructure/scheduler"
	"github.com/sociogram/graph-analytics/internal/infrastructure/scheduler/jobs"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	rollbackMigration := flag.Bool("rollback-last-migration",
		false, "откатить последнюю применённую миграцию схемы и выйти")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *rollbackMigration); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rollbackMigration bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the worker")
	}
	if cfg.Redis.Disabled {
		return fmt.Errorf("worker requires Redis: counter reconciliation has no in-memory target")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	log := logger.New(opts).With(logger.Component("worker"))

	log.Info("starting graph analytics worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Worker тоже должен видеть актуальную схему журнала событий.
	// Он же служит точкой обслуживания схемы: откат миграции — это
	// разовый запуск с флагом, а не отдельная утилита.
	migrator := postgres.NewMigrator(dbConn)
	if rollbackMigration {
		log.Warn("rolling back last applied migration...")
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		log.Info("migration rollback completed")
		return nil
	}

	log.Info("checking database migrations...")
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	eventLog := postgres.NewFriendshipRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisClient, err := redis.NewClient(redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis connection...")
		_ = redisClient.Close()
	}()

	window := graph.InteractionWindow{Lookback: cfg.Analytics.InteractionLookback}
	counters := redis.NewInteractionStore(redisClient, window)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER И ДЖОБЫ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting scheduler...")
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = cfg.App.Location
	schedConfig.MaxHistorySize = cfg.Scheduler.MaxHistorySize
	sched := scheduler.NewScheduler(schedConfig)

	rebuildSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.RebuildCountersCron)
	if err != nil {
		return fmt.Errorf("invalid rebuild counters cron %q: %w", cfg.Scheduler.RebuildCountersCron, err)
	}

	rebuildJob := jobs.NewRebuildCountersJob(eventLog, counters, window, log)
	if err := sched.Register(rebuildJob, rebuildSchedule); err != nil {
		return fmt.Errorf("failed to register %s: %w", rebuildJob.Name(), err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		_ = sched.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("graph analytics worker is running",
		logger.String("rebuild_schedule", rebuildSchedule.String()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	// Scheduler, Redis и база закроются через defer.
	log.Info("shutdown completed successfully")
	return nil
}
