// Package main is the entry point for the FoodSaver server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration
// 2. Create dependencies (logger, storage, recipe client)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, etc.).
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/foodsaver/internal/auth"
	"github.com/sakif/foodsaver/internal/config"
	"github.com/sakif/foodsaver/internal/recipe"
	"github.com/sakif/foodsaver/internal/server"
	"github.com/sakif/foodsaver/internal/storage"
	"github.com/sakif/foodsaver/internal/storage/redis"
	"github.com/sakif/foodsaver/internal/storage/sqlite"
)

// proxyBurst is how many proxy calls one IP may make back to back.
const proxyBurst = 5

func main() {
	// === 1. READ CONFIGURATION ===
	// .env is loaded first; real environment variables win over it.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level: debug, info, warn or error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// === 3. OPEN STORAGE ===
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage",
			slog.String("driver", cfg.StorageDriver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CLIENT SCOPE SIGNING ===
	// SCOPE_SECRET should be a long random string, e.g.
	//   SCOPE_SECRET=$(openssl rand -hex 32)
	// Without it every restart invalidates existing scope cookies, which
	// logs every browser out.
	secret := cfg.ScopeSecret
	if secret == "" {
		logger.Warn("SCOPE_SECRET not set; using a random secret, sessions will not survive restarts")
		if secret, err = auth.RandomSecret(); err != nil {
			logger.Error("failed to generate scope secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		logger.Error("invalid SCOPE_SECRET", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. RECIPE API CLIENT ===
	if cfg.SpoonacularAPIKey == "" {
		logger.Warn("SPOONACULAR_API_KEY not set; recipe search and the proxy will fail")
	}
	recipes, err := recipe.New(recipe.Config{
		BaseURL:    cfg.SpoonacularBaseURL,
		APIKey:     cfg.SpoonacularAPIKey,
		Timeout:    cfg.RecipeTimeout,
		RatePerSec: cfg.RecipeRatePerSec,
		Burst:      cfg.RecipeConcurrency,
	}, logger)
	if err != nil {
		logger.Error("failed to create recipe client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 6. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:              cfg.Port,
		ProxyRatePerSec:   cfg.ProxyRatePerSec,
		ProxyBurst:        proxyBurst,
		RecipeConcurrency: cfg.RecipeConcurrency,
		RecipeTimeout:     cfg.RecipeTimeout,
	}, server.Deps{
		Store:   store,
		Recipes: recipes,
		Tokens:  tokens,
	}, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openStore opens the backend named by STORAGE_DRIVER.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverRedis:
		logger.Info("using redis storage", slog.String("addr", cfg.RedisAddr))
		s, err := redis.New(context.Background(), cfg.RedisAddr, "foodsaver:")
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		logger.Info("using sqlite storage", slog.String("path", cfg.DBPath))
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}
