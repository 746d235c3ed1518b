// Package config reads the server's settings from the environment.
//
// A .env file in the working directory is loaded first if present;
// variables already set in the environment win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds all configuration for the server.
type Config struct {
	Port int

	StorageDriver string
	DBPath        string
	RedisAddr     string

	// ScopeSecret signs the client scope cookie. When empty a random
	// secret is generated at startup and scopes do not survive restarts.
	ScopeSecret string

	SpoonacularAPIKey  string
	SpoonacularBaseURL string
	RecipeTimeout      time.Duration
	RecipeRatePerSec   float64
	RecipeConcurrency  int

	ProxyRatePerSec float64

	LogLevel slog.Level
}

// Load reads .env and the environment.
func Load() (*Config, error) {
	// A missing .env is normal; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite)),
		DBPath:             getEnv("DB_PATH", "data/foodsaver.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		ScopeSecret:        os.Getenv("SCOPE_SECRET"),
		SpoonacularAPIKey:  os.Getenv("SPOONACULAR_API_KEY"),
		SpoonacularBaseURL: getEnv("SPOONACULAR_BASE_URL", "https://api.spoonacular.com/recipes/"),
	}

	var err error
	if cfg.Port, err = parseInt("PORT", getEnv("PORT", "8080")); err != nil {
		return nil, err
	}
	if cfg.RecipeTimeout, err = parseDuration("RECIPE_TIMEOUT", getEnv("RECIPE_TIMEOUT", "10s")); err != nil {
		return nil, err
	}
	if cfg.RecipeRatePerSec, err = parseFloat("RECIPE_RATE_PER_SEC", getEnv("RECIPE_RATE_PER_SEC", "5")); err != nil {
		return nil, err
	}
	if cfg.RecipeConcurrency, err = parseInt("RECIPE_FETCH_CONCURRENCY", getEnv("RECIPE_FETCH_CONCURRENCY", "4")); err != nil {
		return nil, err
	}
	if cfg.ProxyRatePerSec, err = parseFloat("PROXY_RATE_PER_SEC", getEnv("PROXY_RATE_PER_SEC", "2")); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if cfg.StorageDriver != DriverSQLite && cfg.StorageDriver != DriverRedis {
		return nil, fmt.Errorf("config: STORAGE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverRedis, cfg.StorageDriver)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: PORT %d out of range", cfg.Port)
	}
	if cfg.RecipeConcurrency < 1 {
		return nil, fmt.Errorf("config: RECIPE_FETCH_CONCURRENCY must be at least 1")
	}

	return cfg, nil
}

// getEnv reads an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseFloat(key, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, s)
	}
	return f, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, s)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
	}
	return lvl, nil
}
