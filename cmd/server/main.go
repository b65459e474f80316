package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/tutorstore/internal/api"
	"github.com/andresuchdata/tutorstore/internal/archive"
	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/andresuchdata/tutorstore/internal/metrics"
	"github.com/andresuchdata/tutorstore/internal/storage"
	"github.com/andresuchdata/tutorstore/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(os.Stdout, cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialize object store")
	}
	if !cfg.Storage.HasCredentials() && cfg.Storage.Driver != "memory" {
		logger.Log.Warn().Msg("Storage credentials are not set; upload and download routes will report a configuration error")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	gw := gateway.New(store, gateway.Config{
		Bucket:           cfg.Storage.Bucket,
		Region:           cfg.Storage.Region,
		CanonicalBaseURL: cfg.Storage.CanonicalBaseURL,
		GrantTTL:         cfg.Storage.GrantTTL,
		HasCredentials:   cfg.Storage.HasCredentials() || cfg.Storage.Driver == "memory",
	}, gateway.WithMetrics(m))

	router := api.NewRouter(&api.Services{
		Gateway:        gw,
		Archive:        archive.NewStreamer(store, m),
		Metrics:        registry,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		DefaultFolder:  cfg.Storage.DefaultFolder,
	}, cfg.Server.AllowedOrigins)

	// Initialize HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("driver", cfg.Storage.Driver).
			Str("bucket", cfg.Storage.Bucket).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// Archive streams can run long; give in-flight requests time to drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
