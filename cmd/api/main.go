package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/brightslot/ghl-importer/internal/api/router"
	appconfig "github.com/brightslot/ghl-importer/internal/config"
	"github.com/brightslot/ghl-importer/internal/credentials"
	"github.com/brightslot/ghl-importer/internal/ghl"
	"github.com/brightslot/ghl-importer/internal/importer"
	"github.com/brightslot/ghl-importer/internal/mappings"
	"github.com/brightslot/ghl-importer/internal/observability/metrics"
	"github.com/brightslot/ghl-importer/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting ghl-importer API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	importMetrics := metrics.NewImportMetrics(registry)
	refreshMetrics := metrics.NewRefreshMetrics(registry)

	ghlClient := ghl.NewClient(cfg.GHLBaseURL, cfg.GHLAPIVersion, logger)
	oauthClient := ghl.NewOAuthClient(ghl.OAuthConfig{
		ClientID:     cfg.GHLClientID,
		ClientSecret: cfg.GHLClientSecret,
		RedirectURI:  cfg.GHLRedirectURI,
		Scope:        cfg.GHLScope,
		BaseURL:      cfg.GHLBaseURL,
	}, logger)

	credStore := credentials.NewPostgresStore(pool)
	resolver := mappings.NewPostgresResolver(pool)
	repo := importer.NewPostgresRepository(pool)
	contactCache := importer.NewContactCache(rdb, cfg.ContactCacheTTL, logger)

	importService := importer.NewService(credStore, resolver, repo, ghlClient, logger).
		WithWorkers(cfg.ImportWorkerCount).
		WithContactCache(contactCache).
		WithMetrics(importMetrics)

	refreshWorker := credentials.NewRefreshWorker(credStore, oauthClient, logger).
		WithInterval(cfg.TokenRefreshInterval).
		WithTimeout(cfg.TokenRefreshTimeout).
		WithMetrics(refreshMetrics)
	go refreshWorker.Start(ctx)

	r := router.New(&router.Config{
		Logger:             logger,
		ImportHandler:      importer.NewHandler(importService, credStore, ghlClient, logger),
		OAuthHandler:       credentials.NewOAuthHandler(oauthClient, credStore, cfg.FrontendURL, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
