package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flipfinder/backend/config"
	httpDelivery "github.com/flipfinder/backend/internal/delivery/http"
	"github.com/flipfinder/backend/internal/domain"
	"github.com/flipfinder/backend/internal/infrastructure/cache"
	"github.com/flipfinder/backend/internal/infrastructure/ebay"
	"github.com/flipfinder/backend/internal/infrastructure/llm"
	"github.com/flipfinder/backend/internal/infrastructure/logging"
	"github.com/flipfinder/backend/internal/infrastructure/store"
	"github.com/flipfinder/backend/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Server.Verbose)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	os.Exit(finish(logger, run(cfg, logger)))
}

// finish logs the outcome of run and flushes the logger before the process exits
func finish(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting FlipFinder proxy",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Type),
	)

	// Initialize infrastructure dependencies
	accounts, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := accounts.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	searchCache := cache.NewMemoryCache(0)
	defer searchCache.Close()

	ebayClient := ebay.NewClient(cfg.EBay.AppID, cfg.EBay.BaseURL, cfg.EBay.RequestsPerHour, logger)

	model, err := llm.NewClient(ctx, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		TextModel:   cfg.LLM.TextModel,
		VisionModel: cfg.LLM.VisionModel,
	}, logger)
	if err != nil {
		return err
	}

	// Initialize usecase layer
	authService := usecase.NewAuthService(accounts, usecase.AuthServiceConfig{
		JWTSecret:         cfg.Auth.JWTSecret,
		TokenTTL:          cfg.Auth.TokenTTL,
		DefaultUsageLimit: cfg.Quota.DefaultMonthlyLimit,
	}, logger)

	seeds, err := accountSeeds(cfg.Auth.SeedAccounts)
	if err != nil {
		return err
	}
	if err := authService.SeedAccounts(ctx, seeds); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	logger.Info("accounts seeded", zap.Int("count", len(seeds)))

	proxyService := usecase.NewProxyService(searchCache, ebayClient, model, accounts, usecase.ProxyServiceConfig{
		CacheTTL:           cfg.Cache.TTL,
		DefaultSearchLimit: cfg.Search.DefaultLimit,
		MaxSearchLimit:     cfg.Search.MaxLimit,
	}, logger)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(proxyService, authService, logger)
	router := httpDelivery.SetupRouter(cfg, handler, httpDelivery.NewMetrics(searchCache), logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openStore builds the account store selected in config
func openStore(ctx context.Context, cfg config.StoreConfig) (domain.AccountRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Type {
	case "postgres":
		pg, err := store.NewPostgresStore(connectCtx, cfg.PostgresDSN, 0)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "mongo":
		mg, err := store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return mg, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// accountSeeds converts configured seed accounts, parsing their RFC 3339 expiry
func accountSeeds(configured []config.SeedAccount) ([]usecase.AccountSeed, error) {
	seeds := make([]usecase.AccountSeed, 0, len(configured))
	for _, sa := range configured {
		expires, err := time.Parse(time.RFC3339, sa.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("seed account %s: invalid expires_at %q: %w", sa.Email, sa.ExpiresAt, err)
		}
		seeds = append(seeds, usecase.AccountSeed{
			Email:           sa.Email,
			SubscriptionKey: sa.SubscriptionKey,
			Plan:            sa.Plan,
			ExpiresAt:       expires,
			UsageLimit:      sa.UsageLimit,
		})
	}
	return seeds, nil
}
