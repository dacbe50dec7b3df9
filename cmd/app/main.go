// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"notion-telegram-relay/internal/application"
	"notion-telegram-relay/internal/config"
	notionadapter "notion-telegram-relay/internal/infra/adapters/notion"
	tele "notion-telegram-relay/internal/infra/adapters/telegram"
	pg "notion-telegram-relay/internal/infra/db/postgres"
	"notion-telegram-relay/internal/infra/logging"
	"notion-telegram-relay/internal/infra/metrics"
	red "notion-telegram-relay/internal/infra/redis"
	"notion-telegram-relay/internal/infra/web"
	"notion-telegram-relay/internal/infra/worker"
	"notion-telegram-relay/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Redis (optional) ----
	var rateLimiter *red.RateLimiter
	var locker usecase.PageLocker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url is empty, rate limits and page locks disabled")
	}

	// ---- Delivery log (optional) ----
	deliveries := pg.NewNoopDeliveryLogRepo()
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema setup failed")
		}
		deliveries = pg.NewDeliveryLogRepo(pool)
	} else {
		logger.Info().Msg("database.url is empty, delivery log disabled")
	}

	// ---- Notion ----
	notionClient, err := notionadapter.NewClient(&cfg.Notion, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notion client init failed")
	}

	// ---- Use cases ----
	extractor := usecase.NewExtractor(notionClient, logger)
	statusUC := usecase.NewStatusUseCase(notionClient, locker, deliveries, logger)
	intakeUC := usecase.NewIntakeUseCase(notionClient, cfg.Notion.DatabaseID, logger)
	statsUC := usecase.NewStatsUseCase(deliveries)
	facade := application.NewBotFacade(statusUC, intakeUC, statsUC)

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot init failed")
	}

	relayUC := usecase.NewRelayUseCase(notionClient, botAdapter, extractor, deliveries, cfg.Bot.ChannelID, logger)

	// ---- Inbound updates: exactly one delivery mode ----
	var feeder web.UpdateFeeder
	if strings.EqualFold(cfg.Bot.Mode, "webhook") {
		if err := botAdapter.StartWebhook(ctx); err != nil {
			logger.Fatal().Err(err).Msg("telegram webhook registration failed")
		}
		feeder = botAdapter
	} else {
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Webhook processing pool ----
	pool := worker.NewPool(cfg.Bot.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- HTTP server ----
	srv := web.NewServer(cfg, relayUC, statsUC, intakeUC, pool, feeder, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
	if err := srv.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
}
