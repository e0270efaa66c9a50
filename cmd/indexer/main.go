// Package main
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tyarity/boothlens/internal/config"
	"github.com/tyarity/boothlens/internal/index"
	"github.com/tyarity/boothlens/pkg/clip"
	"github.com/tyarity/boothlens/pkg/vectorstore"
	"github.com/tyarity/boothlens/pkg/vectorstore/memory"
	"github.com/tyarity/boothlens/pkg/vectorstore/qdrant"
)

// indexer runs one seeding pass to completion and exits. Useful for
// populating a Qdrant collection ahead of a deployment instead of
// waiting on the server's background seeder.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var store vectorstore.Store
	if cfg.QdrantHost == "" {
		slog.Warn("No Qdrant credentials configured; indexing into memory is discarded on exit")
		store = memory.New()
	} else {
		store, err = qdrant.New(qdrant.Config{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantTLS,
		})
		if err != nil {
			slog.Error("Failed to connect to Qdrant", "error", err)
			os.Exit(1)
		}
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

	seeder := index.New(embedder, store, index.Config{
		MetadataPath: cfg.MetadataPath,
		ImagesDir:    cfg.ImagesDir,
		Workers:      cfg.SeedWorkers,
		BatchSize:    cfg.SeedBatchSize,
		SkipLimit:    cfg.SeedSkipLimit,
		FetchTimeout: cfg.FetchTimeout,
	})
	if err := seeder.Run(ctx); err != nil {
		slog.Error("Seeding failed", "error", err)
		os.Exit(1)
	}

	st := seeder.Status()
	slog.Info("Seeding finished", "processed", st.Current, "indexed", st.Indexed)
}
