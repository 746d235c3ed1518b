// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - Which URL patterns map to which handler
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go opens the storage backend and builds the recipe client, then
// hands them to New, which creates:
//
//	storage.Store → kv.Repository → StoreFactory / MealPlanner → handlers
//
// All dependencies are wired in one place (New/setupRoutes) rather than
// scattered across the codebase.
package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/foodsaver/internal/auth"
	"github.com/sakif/foodsaver/internal/handler"
	"github.com/sakif/foodsaver/internal/middleware"
	"github.com/sakif/foodsaver/internal/recipe"
	"github.com/sakif/foodsaver/internal/repository/kv"
	"github.com/sakif/foodsaver/internal/service"
	"github.com/sakif/foodsaver/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Port int

	// ProxyRatePerSec limits /api/spoonacular per client IP.
	// Zero disables the limit.
	ProxyRatePerSec float64
	ProxyBurst      int

	// Options for the meal planner's recipe fetches.
	RecipeConcurrency int
	RecipeTimeout     time.Duration
}

// Deps are the long-lived resources the server is built from.
//
// RESOURCE MANAGEMENT:
// The Server takes ownership of Store and closes it on shutdown, so
// pending writes are flushed and the SQLite file lock is released.
type Deps struct {
	Store   storage.Store
	Recipes *recipe.Client
	Tokens  *auth.TokenService
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  storage.Store
}

// New creates a Server and registers every route.
//
// Each layer only receives what it needs:
//   - Services get repository interfaces, not the concrete store
//   - Handlers get services, never the repositories
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Recipes == nil || deps.Tokens == nil {
		return nil, errors.New("server: store, recipe client and token service are required")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  deps.Store,
	}
	s.setupRoutes(deps)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz            → liveness probe
//	     /api/account/...    → register, login, logout, me, profile, password
//	     /api/pantry/...     → pantry items
//	     /api/cookbook/...   → saved recipes
//	     /api/shopping-list  → shopping list
//	     /api/planner/...    → weekly meal plan and list generation
//	     /api/recipes/...    → typed recipe search and details
//	GET  /api/spoonacular    → raw recipe API proxy (rate limited per IP)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request
// 2. RealIP: takes the client IP from proxy headers
// 3. Recoverer: turns panics into 500s
// 4. Logger: logs each request with timing info
// 5. ClientScope: gives every browser a signed scope cookie (API only)
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealth)

	// === Services ===
	repo := kv.New(deps.Store)
	stores := service.NewStoreFactory(repo, repo.Sessions(), s.logger)

	var plannerOpts []service.Option
	if s.config.RecipeConcurrency > 0 {
		plannerOpts = append(plannerOpts, service.WithFetchConcurrency(s.config.RecipeConcurrency))
	}
	if s.config.RecipeTimeout > 0 {
		plannerOpts = append(plannerOpts, service.WithFetchTimeout(s.config.RecipeTimeout))
	}
	planner := service.NewMealPlanner(repo.MealPlans(), deps.Recipes, s.logger, plannerOpts...)

	proxyLimiter := middleware.NewIPRateLimiter(s.config.ProxyRatePerSec, s.config.ProxyBurst)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.ClientScope(deps.Tokens, s.logger))

		handler.NewAccountHandler(stores, s.logger).Routes(r)
		handler.NewPantryHandler(stores, s.logger).Routes(r)
		handler.NewCookbookHandler(stores, s.logger).Routes(r)
		handler.NewShoppingHandler(stores, s.logger).Routes(r)
		handler.NewPlannerHandler(stores, planner, s.logger).Routes(r)
		handler.NewRecipeHandler(deps.Recipes, s.logger).Routes(r)
		handler.NewProxyHandler(deps.Recipes, s.logger).Routes(r, middleware.RateLimit(proxyLimiter, s.logger))
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the storage backend
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing storage", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // shopping list generation waits on the recipe API
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
