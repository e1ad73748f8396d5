package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/config"
	"github.com/atlasformation/funnel-engine/internal/database"
	"github.com/atlasformation/funnel-engine/internal/httpserver"
	"github.com/atlasformation/funnel-engine/internal/metrics"
	"github.com/atlasformation/funnel-engine/internal/middleware"
	"github.com/atlasformation/funnel-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Log.Level
	logFormat := cfg.Log.Format
	if cfg.IsDevelopment() {
		logFormat = "console"
	}
	logger, err := middleware.NewLogger(logLevel, logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting funnel-engine",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx := context.Background()

	// Select the event storage tier for the process lifetime.
	store := storage.Open(ctx, cfg, logger)
	defer store.Close()
	logger.Info("event store ready", zap.String("tier", string(store.Tier())))

	// Redis is optional; without it the result cache stays process-local.
	var redis *database.RedisDB
	if cfg.Redis.Addr != "" {
		redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, using in-process result cache", zap.Error(err))
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	deps := &httpserver.Dependencies{
		Store:   store,
		Redis:   redis,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewMetrics("funnel"),
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpserver.NewServer(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
