package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/admin"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/filter"
	"github.com/stemsi/exstem-runner/internal/handler"
	"github.com/stemsi/exstem-runner/internal/logger"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/results"
	"github.com/stemsi/exstem-runner/internal/router"
	"github.com/stemsi/exstem-runner/internal/service"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/store"
	"github.com/stemsi/exstem-runner/internal/validator"
	"github.com/stemsi/exstem-runner/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("api", cfg.APIBaseURL).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Runner")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Local Store ──────────────────────────────────────────────
	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Store close error")
		}
	}()

	// ─── API Client & Session ──────────────────────────────────────────
	client := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Log:     log,
	})

	holder := session.NewHolder(client, st, session.NavigatorFunc(func() {
		log.Warn().Msg("Session lost, login required")
	}), log)
	client.SetTokenSource(holder)
	client.SetUnauthorizedHandler(holder.HandleUnauthorized)

	if user, err := holder.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("No usable stored session")
	} else {
		log.Info().Str("user_id", user.ID).Msg("Session restored")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	selector := filter.NewSelector(client, log)
	hub := service.NewHub(log)
	runService := service.NewRunService(workerCtx, client, selector, hub, service.RunOptions{
		Store:            st,
		SnapshotTTL:      cfg.SnapshotTTL,
		BatchConcurrency: cfg.BatchConcurrency,
	}, log)
	resultService := results.NewService(client, log)
	adminService := admin.NewService(client, holder, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(holder, runService, log),
		Test:   handler.NewTestHandler(selector, runService, log),
		Run:    handler.NewRunHandler(runService, log),
		Result: handler.NewResultHandler(resultService, runService, log),
		Admin:  handler.NewAdminHandler(adminService, log),
		WS:     handler.NewWSHandler(hub, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(runService, holder, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	sweeper, _ := st.(worker.Sweeper)
	reaper := worker.NewRunReaper(runService, sweeper, cfg.ReapInterval, cfg.RunGrace, log)
	go reaper.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(router.Guards{
		Session:     holder,
		Runs:        runService,
		AuthLimiter: middleware.NewRateLimiter(workerCtx, cfg.AuthRateLimit, time.Minute),
	}, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop countdowns; progress stays in the store for the next start.
	runService.CloseAll()
	workerCancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
