package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aevon-lab/aevon-datum/internal/aggregation"
	"github.com/aevon-lab/aevon-datum/internal/audit"
	corecfg "github.com/aevon-lab/aevon-datum/internal/core/config"
	"github.com/aevon-lab/aevon-datum/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-datum/internal/migrations"
	"github.com/aevon-lab/aevon-datum/internal/server"
	"github.com/aevon-lab/aevon-datum/internal/stream"
	"github.com/aevon-lab/aevon-datum/internal/stream/seed"
	"github.com/coder/quartz"
)

func main() {
	configPath := flag.String("config", "aevon.yaml", "Path to configuration file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	interval, err := cfg.Aggregation.Interval()
	if err != nil {
		slog.Error("Invalid aggregation interval", "error", err)
		os.Exit(1)
	}
	auditTimeout, err := cfg.Audit.RunTimeout()
	if err != nil {
		slog.Error("Invalid audit timeout", "error", err)
		os.Exit(1)
	}

	clock := quartz.NewReal()

	// 2. Storage
	store, err := postgres.NewAdapter(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, clock)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := migrations.RunMigrations(store.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Streams
	streams := stream.NewRegistry(store, cfg.Streams.CacheCapacity)
	if cfg.Streams.SeedPath != "" {
		if _, err := seed.Apply(ctx, cfg.Streams.SeedPath, streams); err != nil {
			slog.Error("Failed to seed streams", "error", err)
			os.Exit(1)
		}
	}

	auditSvc := audit.NewService(store, clock)

	var wg sync.WaitGroup

	// 4. Stale aggregate processing
	if cfg.Aggregation.Enabled {
		scheduler := aggregation.NewScheduler(interval, store, aggregation.BatchJobParameter{
			BatchSize:   cfg.Aggregation.BatchSize,
			WorkerCount: cfg.Aggregation.WorkerCount,
		}, clock)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Aggregation scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Aggregation scheduler disabled by config")
	}

	// 5. Audit rollups
	if cfg.Audit.Enabled {
		auditScheduler, err := audit.NewScheduler(ctx, auditSvc, cfg.Audit.Schedule, cfg.Audit.BatchSize, auditTimeout)
		if err != nil {
			slog.Error("Invalid audit schedule", "schedule", cfg.Audit.Schedule, "error", err)
			os.Exit(1)
		}
		auditScheduler.Start()
		defer auditScheduler.Stop()
	} else {
		slog.Info("Audit rollup scheduler disabled by config")
	}

	// 6. Health server
	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), store.DB(), store, cfg.Server.Mode)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		cancel()
	}
	wg.Wait()

	slog.Info("Shutdown complete")
}

func newLogger(c corecfg.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
