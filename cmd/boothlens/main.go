// Package main
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tyarity/boothlens/internal/config"
	"github.com/tyarity/boothlens/internal/index"
	"github.com/tyarity/boothlens/internal/metrics"
	"github.com/tyarity/boothlens/internal/optout"
	"github.com/tyarity/boothlens/internal/server"
	"github.com/tyarity/boothlens/pkg/clip"
	"github.com/tyarity/boothlens/pkg/i18n"
	"github.com/tyarity/boothlens/pkg/search"
	"github.com/tyarity/boothlens/pkg/vectorstore"
	"github.com/tyarity/boothlens/pkg/vectorstore/memory"
	"github.com/tyarity/boothlens/pkg/vectorstore/qdrant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting BOOTH Lens ---")

	store, err := buildStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize vector store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		slog.Error("Failed to ensure collection", "error", err)
		os.Exit(1)
	}

	embedder, err := clip.NewClient(cfg.ClipURL, cfg.ClipModel)
	if err != nil {
		slog.Error("Failed to create CLIP client", "error", err)
		os.Exit(1)
	}

	registry, err := optout.LoadFile(cfg.BlacklistPath)
	if err != nil {
		slog.Error("Failed to load opt-out blacklist", "error", err)
		os.Exit(1)
	}
	slog.Info("Opt-out blacklist loaded", "entries", registry.Len())

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer cache.Close()
	}

	table, err := i18n.New()
	if err != nil {
		slog.Error("Failed to load localization tables", "error", err)
		os.Exit(1)
	}

	svc := search.New(embedder, store, search.Options{
		Limit:      cfg.SearchLimit,
		Exclusions: registry,
		Cache:      cache,
	})

	var seeder *index.Seeder
	if cfg.SeedOnStartup {
		seeder = index.New(embedder, store, index.Config{
			MetadataPath: cfg.MetadataPath,
			ImagesDir:    cfg.ImagesDir,
			Workers:      cfg.SeedWorkers,
			BatchSize:    cfg.SeedBatchSize,
			SkipLimit:    cfg.SeedSkipLimit,
			FetchTimeout: cfg.FetchTimeout,
		})
		go func() {
			if err := seeder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Background seeding failed", "error", err)
			}
		}()
	}

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	srv := server.New(svc, seeder, table, server.Config{
		ImagesDir:      cfg.ImagesDir,
		UploadMaxBytes: cfg.UploadMaxBytes,
		RequestTimeout: cfg.RequestTimeout,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "address", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received. Exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
}

func buildStore(cfg config.Config) (vectorstore.Store, error) {
	if cfg.QdrantHost == "" {
		slog.Info("No Qdrant credentials configured, using in-memory store")
		return memory.New(), nil
	}
	slog.Info("Connecting to Qdrant", "host", cfg.QdrantHost)
	return qdrant.New(qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantTLS,
	})
}

func setupLogging(cfg config.Config) {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevelVar()}))
	slog.SetDefault(logger)
}
