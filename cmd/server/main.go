package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/snapurl/snapurl/config"
	appmodel "github.com/snapurl/snapurl/internal/app/model"
	apprepository "github.com/snapurl/snapurl/internal/app/repository"
	appserver "github.com/snapurl/snapurl/internal/app/server"
	appservice "github.com/snapurl/snapurl/internal/app/service"
	"github.com/snapurl/snapurl/internal/infra/logger"
	infraNATS "github.com/snapurl/snapurl/internal/infra/nats"
	infraPostgres "github.com/snapurl/snapurl/internal/infra/postgres"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	infraRedis "github.com/snapurl/snapurl/internal/infra/redis"
	"go.uber.org/zap"
)

const bloomFalsePositiveRate = 0.01

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.App.Addr),
		zap.Int("validity_minutes", cfg.App.ValidityMinutes),
		zap.Int("code_length", cfg.App.CodeLength),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.ClickEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	clickRepo := apprepository.NewClickEventRepository(pool)

	filter := appservice.NewCodeFilter(cfg.App.BloomCapacity, bloomFalsePositiveRate)
	codes, err := linkRepo.Codes(ctx)
	if err != nil {
		log.Fatal("Failed to load existing shortcodes", zap.Error(err))
	}
	filter.Warm(codes)
	log.Info("Shortcode bloom filter warmed", zap.Int("codes", len(codes)))

	publisher := appservice.NewClickPublisher(js)
	recorder := appservice.NewClickRecorder(clickRepo, publisher, log)
	cache := appservice.NewResolveCache(redisClient, parseDuration(cfg.App.CacheTTL, time.Minute), log)

	linkService := appservice.NewLinkService(appservice.Deps{
		Logger:           log,
		Links:            linkRepo,
		Recorder:         recorder,
		Generator:        appservice.NewShortcodeGenerator(cfg.App.CodeLength),
		Filter:           filter,
		Cache:            cache,
		ValidityMinutes:  cfg.App.ValidityMinutes,
		GenerateAttempts: cfg.App.GenerateAttempts,
	})

	consumer := appservice.NewClickConsumer(js, log)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}

	sweeper := appservice.NewExpirySweeper(log, linkRepo, parseDuration(cfg.App.SweepInterval, 30*time.Second))
	sweeper.Start()
	defer sweeper.Stop()

	srv := appserver.New(appserver.Dependencies{
		Logger:      log,
		Redis:       redisClient,
		LinkService: linkService,
	})

	if err := srv.Listen(cfg.App.Addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
