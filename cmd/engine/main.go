package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hkmcoding/landie-next-sub000/internal/api"
	"github.com/hkmcoding/landie-next-sub000/internal/app"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/notifications"
	"github.com/hkmcoding/landie-next-sub000/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting suggestion and impact engine")

	ctx := context.Background()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize engine: %v", err)
	}
	defer engine.Close()

	var guard api.RecentGuard
	if cfg.RedisAddr != "" {
		redisGuard, err := api.NewRedisGuard(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.AnalysisCooldown)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisGuard.Close()
		guard = redisGuard
	} else {
		guard = api.NewStoreGuard(engine.Store, cfg.AnalysisCooldown)
	}

	var notifier notifications.Notifier
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	}

	schedulerService, err := scheduler.NewService(cfg, engine.Impact, notifier)
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	handler := api.NewHandler(engine.Suggestions, engine.Impact, guard)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ModelTimeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
