// Package main - точка входа для API-сервиса Progression Hub.
//
// Сервис ведёт XP-журнал, уровни, серии активных дней, достижения и
// челленджи для учеников платформы EduForge. Платформа присылает
// события активности через вебхук, сервис превращает их в команды
// прогрессии и отдаёт прочитанные модели через REST API.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: реализация репозиториев, внешние API
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Application layer
	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/application/eventhandler"
	"github.com/eduforge/progression-hub/internal/application/query"
	"github.com/eduforge/progression-hub/internal/application/saga"

	// Domain layer
	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/eduforge/progression-hub/internal/infrastructure/external/platform"
	"github.com/eduforge/progression-hub/internal/infrastructure/messaging"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/postgres"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/projections"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/redis"
	"github.com/eduforge/progression-hub/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/eduforge/progression-hub/internal/interface/http"
	"github.com/eduforge/progression-hub/internal/interface/http/handlers"

	// Packages
	"github.com/eduforge/progression-hub/config"
	"github.com/eduforge/progression-hub/pkg/circuitbreaker"
	"github.com/eduforge/progression-hub/pkg/logger"
	"github.com/eduforge/progression-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
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
	log.Info("starting Progression Hub API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// Логгер для application/interface слоёв (структурированный JSON)
	appLog := setupAppLogger(cfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")

	var dbConn *postgres.Connection
	connectErr := retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			return err
		}
		dbConn = conn
		return nil
	})
	if connectErr != nil {
		return fmt.Errorf("failed to connect to database: %w", connectErr)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	// Без Redis лидерборд и кеш счётчиков работают на in-memory
	// проекциях, а шина событий остаётся локальной для процесса.
	var redisCache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", "addr", cfg.Redis.RedisAddr())
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-memory projections", "error", err)
			redisCache = nil
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = redisCache.Close()
			}()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	var learnerRepo learner.Repository = postgres.NewLearnerRepository(dbConn)
	if redisCache != nil {
		// Кэшируем снапшоты учеников поверх Postgres - инвалидация при записи.
		learnerRepo = redis.NewCachedLearnerRepository(learnerRepo, redis.NewLearnerCache(redisCache))
	}
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	catalogRepo := postgres.NewAchievementRepository(dbConn)
	unlockRepo := postgres.NewUnlockRepository(dbConn)

	var leaderboardRepo leaderboard.Repository
	var countersCache command.CountersCache
	if redisCache != nil {
		leaderboardRepo = redis.NewLeaderboardRepository(redisCache)
		countersCache = redis.NewCountersCache(redisCache)
	} else {
		leaderboardRepo = projections.NewLeaderboardView()
		countersCache = projections.NewCountersView(cfg.Platform.CacheTTL)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")

	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log
	localBusConfig.AsyncMode = true

	var eventBus shared.EventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			InstanceID:     fmt.Sprintf("api-%d", os.Getpid()),
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer func() {
			log.Info("closing event bus...")
			_ = redisBus.Close()
		}()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		defer func() {
			log.Info("closing event bus...")
			_ = localBus.Close()
		}()
		eventBus = localBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing platform client...", "base_url", cfg.Platform.BaseURL)

	platformConfig := platform.DefaultClientConfig(cfg.Platform.BaseURL)
	platformConfig.APIKey = cfg.Platform.APIKey
	platformConfig.Timeout = cfg.Platform.RequestTimeout
	platformConfig.Logger = log
	platformConfig.Debug = cfg.App.Debug
	platformConfig.RateLimiterConfig.RequestsPerSecond = cfg.Platform.RateLimit
	platformConfig.RateLimiterConfig.BurstSize = cfg.Platform.RateLimitBurst
	platformConfig.CircuitBreakerConfig.FailureThreshold = cfg.Platform.CircuitBreakerThreshold
	platformConfig.CircuitBreakerConfig.Timeout = cfg.Platform.CircuitBreakerTimeout
	platformConfig.CircuitBreakerConfig.HalfOpenMaxRetries = cfg.Platform.CircuitBreakerHalfOpenMax
	platformConfig.RetryConfig.MaxRetries = cfg.Platform.MaxRetries
	platformConfig.RetryConfig.InitialBackoff = cfg.Platform.RetryBaseDelay
	platformConfig.RetryConfig.MaxBackoff = cfg.Platform.RetryMaxDelay
	platformClient := platform.NewClient(platformConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries, Sagas)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	rankingService := service.NewRankingService(leaderboardRepo)

	recordXPCmd := command.NewRecordXPHandler(
		ledgerRepo, learnerRepo, eventBus,
		command.DefaultRecordXPHandlerConfig(),
	)
	claimChallengeCmd := command.NewClaimChallengeHandler(
		challengeRepo, ledgerRepo, recordXPCmd, eventBus,
	)
	registerLearnerCmd := command.NewRegisterLearnerHandler(learnerRepo)
	syncCountersCmd := command.NewSyncCountersHandler(
		learnerRepo, platformClient, countersCache, rankingService, eventBus,
		command.DefaultSyncCountersHandlerConfig(),
	)
	advanceChallengesCmd := command.NewAdvanceChallengesHandler(challengeRepo, eventBus)

	progressQuery := query.NewGetProgressHandler(
		learnerRepo, ledgerRepo, catalogRepo, unlockRepo, countersCache,
	)
	historyQuery := query.NewGetXPHistoryHandler(ledgerRepo)
	leaderboardQuery := query.NewGetLeaderboardHandler(leaderboardRepo, learnerRepo)
	challengesQuery := query.NewGetActiveChallengesHandler(challengeRepo)

	rewardFlow := saga.NewRewardFlowSaga(
		learnerRepo, catalogRepo, unlockRepo, ledgerRepo,
		platformClient, countersCache, recordXPCmd, eventBus,
		saga.DefaultRewardFlowConfig(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	// Обновление рейтинга идёт best-effort: упавший Redis не должен
	// блокировать обработку XP, поэтому счёт обновляется через circuit breaker.
	scoreBreaker := circuitbreaker.New("leaderboard_scores",
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithTimeout(15*time.Second),
	)
	guardedScores := &guardedScoreUpdater{inner: rankingService, breaker: scoreBreaker}

	onXPRecorded := eventhandler.NewOnXPRecordedHandler(advanceChallengesCmd, guardedScores, appLog)
	onLevelUp := eventhandler.NewOnLevelUpHandler(rewardFlow, appLog)
	platformMirror := eventhandler.NewPlatformMirrorHandler(learnerRepo, platformClient, appLog)

	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	if err := dispatcher.Register(shared.EventXPRecorded, "advance_challenges", onXPRecorded.Handle); err != nil {
		return fmt.Errorf("failed to register advance_challenges handler: %w", err)
	}
	if cfg.Features.IsEnabled(config.FeatureAchievementsAutoUnlock, nil) {
		if err := dispatcher.Register(shared.EventLevelUp, "reward_flow", onLevelUp.Handle); err != nil {
			return fmt.Errorf("failed to register reward_flow handler: %w", err)
		}
	} else {
		log.Warn("automatic achievement unlocks are disabled by feature flag")
	}
	if err := dispatcher.Register(shared.EventXPRecorded, "platform_mirror_xp", platformMirror.HandleXPRecorded); err != nil {
		return fmt.Errorf("failed to register platform_mirror_xp handler: %w", err)
	}
	if err := dispatcher.Register(shared.EventLevelUp, "platform_mirror_level", platformMirror.HandleLevelUp); err != nil {
		return fmt.Errorf("failed to register platform_mirror_level handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping event dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HEALTH CHECKS И ВЕБХУК ПЛАТФОРМЫ
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))
	}
	healthChecker.AddCheck("platform", handlers.NewPlatformCheck(platformClient))

	var ingest handlers.IngestHandler
	if cfg.Features.IsEnabled(config.FeatureWebhookIngest, nil) {
		ingest = newIngestHandler(learnerRepo, recordXPCmd, registerLearnerCmd, syncCountersCmd, log)
	} else {
		log.Warn("platform webhook ingestion is disabled by feature flag")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.AdminKeyHashes = cfg.HTTP.AdminKeyHashes
	httpConfig.WebhookSecret = cfg.HTTP.WebhookSecret

	httpDeps := httpserver.Dependencies{
		GetProgressHandler:         progressQuery,
		GetXPHistoryHandler:        historyQuery,
		GetLeaderboardHandler:      leaderboardQuery,
		GetActiveChallengesHandler: challengesQuery,
		RecordXPHandler:            recordXPCmd,
		ClaimChallengeHandler:      claimChallengeCmd,
		RegisterLearnerHandler:     registerLearnerCmd,
		SyncCountersHandler:        syncCountersCmd,
		Logger:                     appLog,
		HealthChecker:              healthChecker,
		IngestHandler:              ingest,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Progression Hub API is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Останавливаем HTTP сервер (перестаём принимать новые запросы)
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// 2. Dispatcher, event bus, Redis и база закроются через defer
	//    в обратном порядке инициализации.

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLATFORM WEBHOOK ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// newIngestHandler строит маршрутизацию вебхука платформы: каждое
// событие активности превращается в команду прогрессии.
//
// group.joined не начисляет XP напрямую. Участие в группах
// учитывается счётчиками платформы, поэтому это событие лишь
// форсирует синхронизацию.
func newIngestHandler(
	learnerRepo learner.Repository,
	recordXP *command.RecordXPHandler,
	registerLearner *command.RegisterLearnerHandler,
	syncCounters *command.SyncCountersHandler,
	log *slog.Logger,
) *handlers.PlatformIngestHandler {
	ingest := handlers.NewPlatformIngestHandler()

	// resolveLearner находит внутренний ID по платформенному,
	// регистрируя ученика при первом событии.
	resolveLearner := func(ctx context.Context, event *handlers.PlatformEvent) (string, error) {
		lrn, err := learnerRepo.GetByPlatformID(ctx, event.LearnerID)
		if err == nil {
			return string(lrn.ID), nil
		}
		if !errors.Is(err, shared.ErrLearnerNotFound) {
			return "", fmt.Errorf("resolve learner %s: %w", event.LearnerID, err)
		}

		result, err := registerLearner.Handle(ctx, command.RegisterLearnerCommand{
			PlatformID:  event.LearnerID,
			DisplayName: event.GetString("display_name"),
			JoinedAt:    event.OccurredAt,
		})
		if err != nil {
			return "", fmt.Errorf("register learner %s: %w", event.LearnerID, err)
		}
		return result.LearnerID, nil
	}

	recordActivity := func(source ledger.Source, referenceKey string) handlers.IngestFunc {
		return func(ctx context.Context, event *handlers.PlatformEvent) error {
			learnerID, err := resolveLearner(ctx, event)
			if err != nil {
				return err
			}

			_, err = recordXP.Handle(ctx, command.RecordXPCommand{
				EventID:       event.EventID,
				LearnerID:     learnerID,
				Amount:        event.GetInt("xp"),
				Source:        string(source),
				Reference:     event.GetString(referenceKey),
				OccurredAt:    event.OccurredAt,
				CorrelationID: event.EventID,
			})
			return err
		}
	}

	ingest.Register("module.completed", recordActivity(ledger.SourceModuleComplete, "module_id"))
	ingest.Register("quiz.passed", recordActivity(ledger.SourceQuizPass, "quiz_id"))
	ingest.Register("practical.approved", recordActivity(ledger.SourcePracticalApproved, "practical_id"))

	ingest.Register("group.joined", func(ctx context.Context, event *handlers.PlatformEvent) error {
		if _, err := resolveLearner(ctx, event); err != nil {
			return err
		}
		_, err := syncCounters.Handle(ctx, command.SyncCountersCommand{
			PlatformID:    event.LearnerID,
			ForceSync:     true,
			CorrelationID: event.EventID,
		})
		return err
	})

	// Незнакомые типы событий логируются и подтверждаются, чтобы
	// платформа не ретраила их бесконечно.
	ingest.RegisterDefault(func(ctx context.Context, event *handlers.PlatformEvent) error {
		log.Debug("ignoring unhandled platform event",
			"type", event.Type,
			"event_id", event.EventID,
		)
		return nil
	})

	ingest.SetErrorHandler(func(err error) {
		log.Error("platform event ingestion failed", "error", err)
	})

	return ingest
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// guardedScoreUpdater оборачивает обновление рейтинга в circuit breaker.
type guardedScoreUpdater struct {
	inner   eventhandler.ScoreUpdater
	breaker *circuitbreaker.CircuitBreaker
}

func (g *guardedScoreUpdater) UpdateScore(ctx context.Context, learnerID string, totalXP int64) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.UpdateScore(ctx, learnerID, totalXP)
	})
}

// setupLogger настраивает структурированное логирование для
// infrastructure-слоя (slog).
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseSlogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// setupAppLogger настраивает логгер application/interface слоёв.
func setupAppLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	return logger.New(opts)
}

func parseSlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
