// Package main - точка входа для фоновых процессов (Worker) Progression Hub.
//
// Worker отвечает за периодические задачи:
// - Ротация ежедневных и еженедельных челленджей
// - Завершение просроченных челленджей
// - Начисление бонусов за серии активных дней
// - Синхронизация устаревших счётчиков с платформой EduForge
// - Обновление каталога достижений и импорт платформенных челленджей
//
// Worker не обрабатывает события прогрессии сам: опубликованные им
// события уходят через Redis-шину в API-инстансы, где зарегистрированы
// обработчики.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Application layer
	"github.com/eduforge/progression-hub/internal/application/command"

	// Domain layer
	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/eduforge/progression-hub/internal/infrastructure/external/platform"
	"github.com/eduforge/progression-hub/internal/infrastructure/messaging"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/postgres"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/projections"
	"github.com/eduforge/progression-hub/internal/infrastructure/persistence/redis"
	"github.com/eduforge/progression-hub/internal/infrastructure/scheduler"
	"github.com/eduforge/progression-hub/internal/infrastructure/scheduler/jobs"
	"github.com/eduforge/progression-hub/internal/infrastructure/service"

	// Packages
	"github.com/eduforge/progression-hub/config"
	"github.com/eduforge/progression-hub/pkg/retry"
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
	log.Info("starting Progression Hub Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled (SCHEDULER_ENABLED=false), nothing to do")
		return nil
	}

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

	// Миграции применяет API-сервис. Worker только проверяет,
	// что схема на месте.
	migrator := postgres.NewMigrator(dbConn)
	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	for _, m := range status {
		if !m.IsApplied {
			return fmt.Errorf("migration %s is not applied, start the API service first", m.Name)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
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
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	learnerRepo := postgres.NewLearnerRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	catalogRepo := postgres.NewAchievementRepository(dbConn)

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
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	// События джоб (ротация, бонусы серий, истечение) уезжают в Redis
	// и обрабатываются API-инстансами. Без Redis шина локальная и
	// подписчиков у неё нет.
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log
	localBusConfig.AsyncMode = true

	var eventBus shared.EventBus
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			InstanceID:     fmt.Sprintf("worker-%d", os.Getpid()),
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer func() { _ = redisBus.Close() }()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		defer func() { _ = localBus.Close() }()
		eventBus = localBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing platform client...", "base_url", cfg.Platform.BaseURL)

	platformConfig := platform.DefaultClientConfig(cfg.Platform.BaseURL)
	platformConfig.APIKey = cfg.Platform.APIKey
	platformConfig.Timeout = cfg.Platform.RequestTimeout
	platformConfig.Logger = log
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
	// 8. ИНИЦИАЛИЗАЦИЯ COMMAND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	rankingService := service.NewRankingService(leaderboardRepo)

	recordXPCmd := command.NewRecordXPHandler(
		ledgerRepo, learnerRepo, eventBus,
		command.DefaultRecordXPHandlerConfig(),
	)

	rotateConfig := command.DefaultRotateChallengesHandlerConfig()
	rotateConfig.Seed = cfg.Scheduler.RotationSeed
	rotateCmd := command.NewRotateChallengesHandler(challengeRepo, learnerRepo, eventBus, rotateConfig)

	expireCmd := command.NewExpireChallengesHandler(challengeRepo, eventBus)

	streakBonusCmd := command.NewGrantStreakBonusHandler(
		learnerRepo, ledgerRepo, recordXPCmd,
		command.GrantStreakBonusHandlerConfig{},
	)

	syncCountersCmd := command.NewSyncCountersHandler(
		learnerRepo, platformClient, countersCache, rankingService, eventBus,
		command.DefaultSyncCountersHandlerConfig(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ ДЖОБ В SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")

	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.MaxHistorySize = cfg.Scheduler.MaxHistorySize
	schedConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	sched := scheduler.NewScheduler(schedConfig)

	syncConfig := jobs.DefaultSyncStaleCountersConfig()
	syncConfig.Concurrency = cfg.Scheduler.SyncConcurrency
	syncConfig.StaleAfter = cfg.Scheduler.SyncStaleAfter
	syncConfig.Timeout = cfg.Scheduler.JobTimeout

	type registration struct {
		job      scheduler.Job
		schedule scheduler.Schedule
	}

	var registrations []registration

	// Ротационные механики можно выключать пофичево, не трогая
	// остальные джобы.
	if cfg.Features.IsEnabled(config.FeatureChallengesDaily, nil) {
		registrations = append(registrations, registration{
			jobs.NewRotateChallengesJob(rotateCmd, challenge.TypeDaily, log),
			scheduler.MustParseCronExpression(scheduler.EveryDayMidnight),
		})
	}
	if cfg.Features.IsEnabled(config.FeatureChallengesWeekly, nil) {
		registrations = append(registrations, registration{
			jobs.NewRotateChallengesJob(rotateCmd, challenge.TypeWeekly, log),
			scheduler.MustParseCronExpression(scheduler.EveryMondayMidnight),
		})
	}
	if cfg.Features.IsEnabled(config.FeatureStreaksBonusXP, nil) {
		registrations = append(registrations, registration{
			jobs.NewGrantStreakBonusesJob(streakBonusCmd, log),
			scheduler.MustParseCronExpression(scheduler.ShortlyAfterMidnight),
		})
	}

	registrations = append(registrations,
		registration{
			jobs.NewExpireChallengesJob(expireCmd, log),
			scheduler.NewIntervalSchedule(cfg.Scheduler.ExpirySweepInterval),
		},
		registration{
			jobs.NewSyncStaleCountersJob(learnerRepo, syncCountersCmd, log, syncConfig),
			scheduler.NewIntervalSchedule(cfg.Scheduler.StaleSyncInterval),
		},
		registration{
			jobs.NewRefreshCatalogJob(platformClient, catalogRepo, log),
			// Каталог меняется редко, подтягиваем его ночью, когда
			// платформа наименее нагружена.
			scheduler.MustParseCronExpression("30 3 * * *"),
		},
		registration{
			jobs.NewImportChallengesJob(learnerRepo, challengeRepo, platformClient, log),
			scheduler.MustParseCronExpression("0 4 * * *"),
		},
	)

	for _, r := range registrations {
		if err := sched.Register(r.job, r.schedule); err != nil {
			return fmt.Errorf("failed to register job %s: %w", r.job.Name(), err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("Progression Hub Worker is running", "jobs", len(sched.ListJobs()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("stopping scheduler...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
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
