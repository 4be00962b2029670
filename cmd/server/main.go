// Package main is the entry point for the trading desk server.
//
// Startup order:
//  1. Load configuration and initialize logging
//  2. Wire dependencies (databases, repositories, services, work processor, jobs)
//  3. Start the HTTP server
//  4. Resume the trading bot if it was running before the last shutdown
//  5. Wait for a shutdown signal and stop everything in reverse order
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tradingdesk/internal/config"
	"github.com/aristath/tradingdesk/internal/di"
	"github.com/aristath/tradingdesk/internal/server"
	"github.com/aristath/tradingdesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("execution_mode", string(cfg.ExecutionMode)).
		Str("data_dir", cfg.DataDir).
		Msg("Starting trading desk")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// The bot only resumes once the API is reachable so its first cycle
	// shows up on connected dashboards.
	resumeCtx, resumeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := container.BotScheduler.ResumeIfActive(resumeCtx); err != nil {
		log.Error().Err(err).Msg("Failed to resume trading bot")
	}
	resumeCancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close container")
	}

	log.Info().Msg("Server stopped")
}
