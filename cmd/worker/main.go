package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedutinova/bikeshare/internal/app"
	appconfig "github.com/fedutinova/bikeshare/internal/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := appconfig.Load()
	appconfig.SetupLogger(cfg)
	slog.Info("starting bikeshare worker",
		"consumer", cfg.ConsumerName,
		"workers", cfg.QueueWorkers,
		"queue", cfg.QueueBackend,
		"claim_timeout", cfg.QueueClaimTimeout)

	if local := cfg.ProcessLocal(); len(local) > 0 {
		slog.Error("the worker process needs backends shared with the api, use redis, postgres, s3 or local storage, or run EMBEDDED_WORKERS in the api",
			"memory_backends", local)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartRedelivery(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i := range max(cfg.QueueWorkers, 1) {
		w := a.NewWorker(i + 1)
		g.Go(func() error { return w.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("worker error", "err", err)
		os.Exit(1)
	}
	slog.Info("worker shut down")
}
