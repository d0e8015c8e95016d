package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crypto-ai-trader/config"
	"crypto-ai-trader/internal/advisor"
	"crypto-ai-trader/internal/api"
	"crypto-ai-trader/internal/auth"
	"crypto-ai-trader/internal/binance"
	"crypto-ai-trader/internal/cache"
	"crypto-ai-trader/internal/database"
	"crypto-ai-trader/internal/executor"
	"crypto-ai-trader/internal/market"
	"crypto-ai-trader/internal/scheduler"
	"crypto-ai-trader/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Str("symbol", cfg.TradingConfig.Symbol).Msg("starting crypto-ai-trader")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiKey := cfg.BinanceConfig.APIKey
	secretKey := cfg.BinanceConfig.SecretKey
	testnet := cfg.BinanceConfig.TestNet
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to vault")
		}
		creds, err := vaultClient.LoadCredentials(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load exchange credentials from vault")
		}
		apiKey = creds.APIKey
		secretKey = creds.SecretKey
		testnet = creds.IsTestnet
		logger.Info().Msg("exchange credentials loaded from vault")
	}

	exchange := binance.NewClient(apiKey, secretKey, cfg.BinanceConfig.BaseURL, testnet, logger)

	db, err := database.NewDB(cfg.DatabaseConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewRepository(db)

	var responseCache *cache.ResponseCache
	if cfg.RedisConfig.Enabled {
		responseCache, err = cache.NewResponseCache(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, response caching disabled")
			responseCache = nil
		} else {
			defer responseCache.Close()
		}
	}

	marketSvc := market.NewService(
		exchange,
		cache.NewTTLCache(market.CacheTTL),
		cfg.TradingConfig.InitialCapital,
		logger,
	)

	llmClient := advisor.NewClient(&advisor.ClientConfig{
		Provider:    advisor.Provider(cfg.AIConfig.Provider),
		APIKey:      cfg.AIConfig.APIKey,
		Model:       cfg.AIConfig.Model,
		MaxTokens:   cfg.AIConfig.MaxTokens,
		Temperature: cfg.AIConfig.Temperature,
	})
	adv := advisor.New(llmClient, logger)

	exec := executor.New(exchange, executor.Config{
		Leverage:       cfg.TradingConfig.Leverage,
		MinNotional:    cfg.TradingConfig.MinNotional,
		DefaultSizePct: cfg.TradingConfig.DefaultSizePct,
		DryRun:         cfg.TradingConfig.DryRun,
	}, logger)

	sched := scheduler.New(marketSvc, adv, exec, repo, scheduler.Config{
		Symbol:           cfg.TradingConfig.Symbol,
		ModelLabel:       modelLabel(cfg.AIConfig.Provider),
		DecisionInterval: cfg.SchedulerConfig.DecisionInterval,
		MetricsInterval:  cfg.SchedulerConfig.MetricsInterval,
	}, logger)

	tokenManager := auth.NewTokenManager(cfg.AuthConfig.CronSecret, cfg.AuthConfig.TokenDuration)

	server := api.NewServer(
		cfg.ServerConfig,
		cfg.TradingConfig.PricingSymbols,
		marketSvc,
		sched,
		repo,
		responseCache,
		tokenManager,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})

	if cfg.SchedulerConfig.Enabled {
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.ServerConfig))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
	}
	logger.Info().Msg("crypto-ai-trader stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// modelLabel is the display name recorded on chat and metrics rows.
func modelLabel(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OpenAI"
	case "claude":
		return "Claude"
	default:
		return "Deepseek"
	}
}

func shutdownTimeout(cfg config.ServerConfig) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.ShutdownTimeout) * time.Second
}
