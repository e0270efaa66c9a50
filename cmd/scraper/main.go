// Package main
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tyarity/boothlens/internal/scrape"
	"github.com/tyarity/boothlens/pkg/types"
)

func main() {
	var phase string
	var listPath, fullPath string
	var delay time.Duration

	flag.StringVar(&phase, "phase", "all", "which phase to run: 1, 2 or all")
	flag.StringVar(&listPath, "list", "scraper/data/popular_items_list.jsonl", "phase 1 output / phase 2 input")
	flag.StringVar(&fullPath, "out", "scraper/data/popular_items_full.jsonl", "phase 2 output")
	flag.DurationVar(&delay, "delay", 2*time.Second, "pause between page fetches")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scraper := scrape.New(15*time.Second, delay)

	var stubs []types.ListingRecord
	var err error

	if phase == "1" || phase == "all" {
		stubs, err = scraper.CollectPopular(ctx)
		if err != nil {
			slog.Error("Phase 1 failed", "collected", len(stubs), "error", err)
		}
		slog.Info("Phase 1 complete", "items", len(stubs))
		if err := scrape.WriteJSONL(listPath, stubs); err != nil {
			slog.Error("Failed to write phase 1 output", "error", err)
			os.Exit(1)
		}
	}

	if phase == "2" || phase == "all" {
		if len(stubs) == 0 {
			stubs, err = readStubs(listPath)
			if err != nil {
				slog.Error("Failed to read phase 1 output", "path", listPath, "error", err)
				os.Exit(1)
			}
		}
		var full []types.ListingRecord
		for i, stub := range stubs {
			if ctx.Err() != nil {
				break
			}
			rec, err := scraper.Enrich(ctx, stub)
			if err != nil {
				slog.Error("Detail fetch failed", "url", stub.URL, "error", err)
				continue
			}
			full = append(full, rec)
			slog.Info("Enriched listing", "n", i+1, "of", len(stubs), "title", rec.Title)
		}
		if err := scrape.WriteJSONL(fullPath, full); err != nil {
			slog.Error("Failed to write phase 2 output", "error", err)
			os.Exit(1)
		}
		slog.Info("Phase 2 complete", "items", len(full))
	}
}

func readStubs(path string) ([]types.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scrape.ReadJSONL(f)
}
