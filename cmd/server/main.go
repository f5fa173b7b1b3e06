// Package main - точка входа HTTP-сервера аналитики социального графа.
//
// Сервер отвечает на аналитические запросы (круги общения, охват влияния,
// сила связи, рекомендации друзей) поверх кеша с TTL и LRU-вытеснением,
// принимает мутации графа и взаимодействия, и публикует доменные события
// для инвалидации кешей других инстансов.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистые алгоритмы графа и аналитики без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Event Handlers)
// - Infrastructure: PostgreSQL, Redis, in-memory кеш, шина событий
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sociogram/graph-analytics/config"
	"github.com/sociogram/graph-analytics/internal/application/command"
	"github.com/sociogram/graph-analytics/internal/application/eventhandler"
	"github.com/sociogram/graph-analytics/internal/application/query"
	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/internal/infrastructure/external/social"
	"github.com/sociogram/graph-analytics/internal/infrastructure/messaging"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/postgres"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/redis"
	"github.com/sociogram/graph-analytics/internal/infrastructure/scheduler"
	"github.com/sociogram/graph-analytics/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/sociogram/graph-analytics/internal/interface/http"
	"github.com/sociogram/graph-analytics/internal/interface/http/handlers"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting graph analytics server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ ГРАФА (PostgreSQL или in-memory для разработки)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		friendships graph.FriendshipRepository
		users       graph.UserDirectory
		eventLog    command.InteractionEventLog
	)

	if cfg.Database.URL != "" {
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
		log.Info("database connection established")

		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if migrations, serr := migrator.Status(ctx); serr == nil {
			applied := 0
			for _, m := range migrations {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("database schema up to date",
				logger.Int("applied_migrations", applied),
				logger.Int("known_migrations", len(migrations)),
			)
		}

		repo := postgres.NewFriendshipRepository(dbConn)
		friendships = repo
		users = postgres.NewUserDirectory(dbConn)
		eventLog = repo
		// Readiness опирается на подробную проверку пула (latency,
		// статистика соединений), а не только на Ping.
		health.AddCheck("postgres", func(checkCtx context.Context) error {
			status, herr := dbConn.Health(checkCtx)
			if herr != nil {
				return herr
			}
			if !status.Healthy {
				return errors.New(status.Error)
			}
			return nil
		})
	} else {
		// Память вместо Postgres допустима только вне production
		// (config.Validate требует DATABASE_URL в production).
		log.Warn("DATABASE_URL is not set, using in-memory graph store")
		store := memory.NewGraphStore()
		friendships = store
		users = memory.NewUserDirectory()
		health.AddCheck("graph_store", handlers.NewStoreCheck(store))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS: СЧЁТЧИКИ ВЗАИМОДЕЙСТВИЙ И PUB/SUB
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisClient       *redis.Client
		interactionSignal graph.InteractionSignal
		publisher         analytics.SnapshotPublisher
	)

	window := graph.InteractionWindow{Lookback: cfg.Analytics.InteractionLookback}

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisClient, err = redis.NewClient(redisConfigFrom(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = redisClient.Close()
		}()

		interactions := redis.NewInteractionStore(redisClient, window)
		interactionSignal = interactions
		health.AddCheck("redis", handlers.NewStoreCheck(interactions))

		if cfg.Features.IsGloballyEnabled(config.FeatureMetricsPush) {
			publisher = redis.NewMetricsPublisher(redisClient, log)
		}
		log.Info("Redis connection established")
	} else {
		log.Warn("Redis is disabled, interaction counters are in-process only")
		interactionSignal = memory.NewInteractionStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КЕШ АНАЛИТИКИ И СБОРЩИК МЕТРИК
	// ─────────────────────────────────────────────────────────────────────────
	cache := memory.NewAnalyticsCache(memory.CacheConfig{
		Capacity:           cfg.Cache.Capacity,
		DefaultTTL:         cfg.Cache.DefaultTTL,
		EnableSingleflight: cfg.Features.IsGloballyEnabled(config.FeatureSingleflight),
	}, log)

	collector := memory.NewMetricsCollector(memory.CollectorConfig{
		MaxSnapshots: cfg.Metrics.MaxSnapshots,
		Retention:    cfg.Metrics.Retention,
	}, cache, publisher, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ДОМЕННЫЕ СЕРВИСЫ АНАЛИТИКИ
	// ─────────────────────────────────────────────────────────────────────────
	scorerCfg := analytics.DefaultScorerConfig()
	scorerCfg.Weights = analytics.ScoreWeights{
		CommonFriends: cfg.Analytics.CommonFriendsWeight,
		Interactions:  cfg.Analytics.InteractionsWeight,
	}
	scorer, err := analytics.NewRelationshipScorer(friendships, interactionSignal, scorerCfg)
	if err != nil {
		return fmt.Errorf("invalid scorer config: %w", err)
	}

	classifier, err := analytics.NewCircleClassifier(friendships, scorer, analytics.CircleThresholds{
		Close:   cfg.Analytics.CloseThreshold,
		Distant: cfg.Analytics.DistantThreshold,
	})
	if err != nil {
		return fmt.Errorf("invalid circle thresholds: %w", err)
	}

	calculator := analytics.NewInfluenceCalculator(friendships)

	// Приватность, заявки в друзья и активити-лента принадлежат
	// социальному сервису; без него кандидаты считаются открытыми,
	// а рекомендации строятся только по близости в графе.
	var (
		ranker   analytics.ActivityRanker = memory.NoActivity{}
		privacy  graph.PrivacyCheck       = memory.OpenPrivacy{}
		requests graph.FriendRequestState = memory.NoRequests{}
	)
	if cfg.Social.URL != "" {
		socialCfg := social.DefaultClientConfig(cfg.Social.URL)
		socialCfg.APIKey = cfg.Social.APIKey
		socialCfg.Timeout = cfg.Social.Timeout
		socialCfg.RateLimiterConfig.RequestsPerSecond = cfg.Social.RequestsPerSecond
		socialCfg.RateLimiterConfig.BurstSize = cfg.Social.BurstSize
		socialCfg.Logger = log
		socialCfg.Debug = cfg.App.Debug
		socialClient := social.NewClient(socialCfg)

		privacy = socialClient
		requests = socialClient
		if cfg.Features.IsGloballyEnabled(config.FeatureActivityRecommendations) {
			ranker = socialClient
		}
		health.AddCheck("social_api", handlers.NewStoreCheck(socialClient))
		log.Info("social service integration enabled",
			logger.String("url", cfg.Social.URL),
		)
	}

	engine := analytics.NewRecommendationEngine(
		friendships, calculator, ranker, privacy, requests,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ШИНА СОБЫТИЙ И DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log

	var eventBus interface {
		shared.EventBus
		Close() error
	}
	if redisClient != nil && cfg.Features.IsGloballyEnabled(config.FeatureRemoteInvalidation) {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         newPubSubAdapter(redisClient),
			ChannelName:    redis.PubSubChannel("events"),
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start Redis event bus: %w", err)
		}
		eventBus = redisBus
		log.Info("cross-instance invalidation enabled")
	} else {
		eventBus = messaging.NewInMemoryEventBus(localBusConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher...")
		_ = dispatcher.Stop()
	}()

	// Хранилище графа нужно обработчику, чтобы расширять зону
	// инвалидации удалённых мутаций до соседей обоих концов ребра.
	invalidation := eventhandler.NewOnFriendshipChangedHandler(cache, friendships, log)
	if err := invalidation.RegisterAt(dispatcher); err != nil {
		return fmt.Errorf("failed to register invalidation handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands и Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")
	cacheTTL := cfg.Cache.DefaultTTL

	circlesQuery := query.NewGetCirclesHandler(classifier, users, cache, collector, cacheTTL)
	influenceQuery := query.NewGetInfluenceHandler(calculator, cache, collector, cacheTTL)
	strengthQuery := query.NewGetRelationshipStrengthHandler(scorer, cache, collector, cacheTTL)
	recommendQuery := query.NewGetRecommendationsHandler(engine, users, cache, collector, cacheTTL)
	metricsQuery := query.NewGetCacheMetricsHandler(collector)

	connectCmd := command.NewConnectUsersHandler(friendships, cache, eventBus, log)
	disconnectCmd := command.NewDisconnectUsersHandler(friendships, cache, eventBus, log)
	interactionCmd := command.NewRecordInteractionHandler(interactionSignal, eventLog, cache, eventBus, log)
	invalidateCmd := command.NewInvalidateCacheHandler(cache, eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER: СНИМКИ МЕТРИК И ЧИСТКА КЕША
	// Оба джоба работают с in-process состоянием этого инстанса, поэтому
	// живут в процессе сервера, а не в отдельном worker.
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("starting scheduler...")
		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		schedConfig.Timezone = cfg.App.Location
		schedConfig.MaxHistorySize = cfg.Scheduler.MaxHistorySize
		sched = scheduler.NewScheduler(schedConfig)

		snapshotJob := jobs.NewSnapshotMetricsJob(collector, log)
		if err := sched.Register(snapshotJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SnapshotInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", snapshotJob.Name(), err)
		}

		sweepJob := jobs.NewSweepCacheJob(cache, log)
		if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SweepInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", sweepJob.Name(), err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.AdminAPIKeyHash = cfg.HTTP.AdminAPIKeyHash

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		GetCirclesHandler:              circlesQuery,
		GetInfluenceHandler:            influenceQuery,
		GetRelationshipStrengthHandler: strengthQuery,
		GetRecommendationsHandler:      recommendQuery,
		GetCacheMetricsHandler:         metricsQuery,
		ConnectUsersHandler:            connectCmd,
		DisconnectUsersHandler:         disconnectCmd,
		RecordInteractionHandler:       interactionCmd,
		InvalidateCacheHandler:         invalidateCmd,
		Logger:                         log,
		HealthChecker:                  health,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("graph analytics server is running",
		logger.String("http_address", httpServer.Address()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Scheduler, dispatcher, event bus, Redis и база закроются через defer.
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// redisConfigFrom собирает конфигурацию Redis-клиента. REDIS_URL вида
// [redis://][:password@]host:port имеет приоритет над отдельными полями.
func redisConfigFrom(rc config.RedisConfig) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout

	if rc.URL != "" {
		addr := strings.TrimPrefix(rc.URL, "redis://")
		if at := strings.LastIndex(addr, "@"); at >= 0 {
			auth := addr[:at]
			addr = addr[at+1:]
			if colon := strings.Index(auth, ":"); colon >= 0 {
				cfg.Password = auth[colon+1:]
			}
		}
		if host, port, ok := strings.Cut(addr, ":"); ok {
			cfg.Host = host
			if p, err := strconv.Atoi(strings.TrimSuffix(port, "/0")); err == nil {
				cfg.Port = p
			}
		} else {
			cfg.Host = addr
		}
	}

	return cfg
}

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// These adapt infrastructure implementations to messaging interfaces.
// ══════════════════════════════════════════════════════════════════════════════

// pubSubAdapter adapts redis.Client to messaging.RedisClient.
type pubSubAdapter struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*goredis.PubSub
}

func newPubSubAdapter(client *redis.Client) *pubSubAdapter {
	return &pubSubAdapter{client: client}
}

// Publish implements messaging.RedisClient.
func (a *pubSubAdapter) Publish(ctx context.Context, channel string, message interface{}) error {
	return a.client.Publish(ctx, channel, message)
}

// Subscribe implements messaging.RedisClient.
func (a *pubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := a.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	a.mu.Lock()
	a.subs = append(a.subs, pubsub)
	a.mu.Unlock()

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	return out, nil
}

// Close implements messaging.RedisClient. The underlying client is shared
// and closed by its own defer; only the subscriptions are released here.
func (a *pubSubAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, sub := range a.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.subs = nil
	return firstErr
}
