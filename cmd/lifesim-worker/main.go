package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifesim/internal/catalog"
	"lifesim/internal/config"
	"lifesim/internal/db"
	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
	"lifesim/internal/sim"
	"lifesim/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	indexer, err := inflation.NewIndexer(cfg.IndexerSize)
	if err != nil {
		logger.Error("indexer init failed", "err", err)
		os.Exit(1)
	}
	seed := cfg.Seed
	if seed == 0 {
		if seed, err = randsrc.NewSeed(); err != nil {
			logger.Error("seed init failed", "err", err)
			os.Exit(1)
		}
	}

	pool, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}
	svc := sim.NewService(pg, sim.NewPipeline(cat, indexer), seed, logger)

	if cfg.RunOnce {
		if _, err := svc.RunTick(ctx); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "seed", seed)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if _, err := svc.RunTick(ctx); err != nil {
				logger.Error("world tick failed", "err", err)
				continue
			}
		}
	}
}
