// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root that connects
// the database, services, handlers, and middleware. main.go stays minimal:
// load config, create the logger, hand both to New, call Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rafid/habit-tracker/internal/auth"
	"github.com/rafid/habit-tracker/internal/config"
	"github.com/rafid/habit-tracker/internal/handler"
	"github.com/rafid/habit-tracker/internal/middleware"
	sqliteRepo "github.com/rafid/habit-tracker/internal/repository/sqlite"
	"github.com/rafid/habit-tracker/internal/service"
)

// Server owns the router and the resources behind it. The database
// connection is closed during graceful shutdown in Start.
type Server struct {
	router *chi.Mux
	config *config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → AuthService → AuthHandler / ActivityHandler → routes
//
// Each layer only receives what it needs: the service gets the repository
// interface (not the concrete DB), handlers get the service (not the
// repository). The TokenService refuses a missing/short secret here, so a
// misconfigured server never comes up.
func New(cfg *config.Server, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /auth/github           → redirect to GitHub authorization
//	GET  /auth/github/callback  → exchange code, issue token, redirect to relay
//	GET  /me                    → bearer token → user profile (three-way)
//	POST /api/activity          → record daily counters (auth required)
//
// MIDDLEWARE ORDER MATTERS — Recoverer must wrap the handlers so a panic
// becomes a 500, and the request logger sits outside everything it times.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	github := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
	)

	authSvc := service.NewAuthService(s.db, tokens, s.logger)
	authHandler := handler.NewAuthHandler(github, authSvc, s.config.RelayURL, s.logger)
	activityHandler := handler.NewActivityHandler(authSvc, s.logger)

	s.router.Get("/auth/github", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// /me is NOT behind RequireAuth — it must tell a missing header apart
	// from an invalid token, which a blanket 401 middleware cannot.
	s.router.Get("/me", authHandler.HandleMe)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Post("/activity", activityHandler.HandleRecord)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30s,
// close the database (flushes the WAL, releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
