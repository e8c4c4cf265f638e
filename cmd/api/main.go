package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedutinova/bikeshare/internal/app"
	appconfig "github.com/fedutinova/bikeshare/internal/config"
	"github.com/fedutinova/bikeshare/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := appconfig.Load()
	appconfig.SetupLogger(cfg)
	slog.Info("starting bikeshare api", "addr", cfg.HTTPAddr, "embedded_workers", cfg.EmbeddedWorkers)

	if local := cfg.ProcessLocal(); len(local) > 0 && cfg.EmbeddedWorkers <= 0 {
		slog.Warn("memory backends without embedded workers, a separate worker process cannot see them and submitted jobs will never finish",
			"memory_backends", local)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(a.Handlers()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.EmbeddedWorkers > 0 {
		a.StartRedelivery(gctx)
		for i := range cfg.EmbeddedWorkers {
			w := a.NewWorker(i + 1)
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shCancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
