package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceswap/internal/app"
	"voiceswap/internal/config"
	"voiceswap/internal/telemetry"
)

// @title Voiceswap Session API
// @version 1.0
// @description Coordinates persona takeover sessions between a target and a detector
// @host localhost:8080
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "voiceswap", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	go a.Sweeper.Run(ctx)
	if a.Relay != nil {
		go func() {
			if err := a.Relay.Run(ctx); err != nil {
				logger.Error("update relay stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr(),
			"store", cfg.StoreDriver,
			"redis", cfg.RedisURI != "",
			"personaBudget", cfg.PersonaBudget,
			"sessionMaxDuration", cfg.SessionMaxDuration,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			a.Close(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("close backends", "err", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("flush traces", "err", err)
		}
	}

	logger.Info("server exited")
	return nil
}
