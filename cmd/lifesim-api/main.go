package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifesim/internal/api"
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

	cfg, err := config.LoadAPIFromEnv()
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

	var worldStore sim.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
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
		worldStore = pg
	} else {
		logger.Warn("DATABASE_URL not set; world is kept in memory")
	}

	simSvc := sim.NewService(worldStore, sim.NewPipeline(cat, indexer), seed, logger)
	server := api.New(cfg, logger, simSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("lifesim api listening", "addr", cfg.Addr, "countries", len(cat.Countries), "seed", seed)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
