package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greed-games/greedroulette/internal/archive"
	"github.com/greed-games/greedroulette/internal/config"
	"github.com/greed-games/greedroulette/internal/httpapi"
	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	opts := hub.Options{Timing: cfg.Timing(), RecentGames: cfg.RecentGames}
	if cfg.ArchiveDSN != "" {
		store, err := archive.Open(ctx, cfg.ArchiveDSN)
		if err != nil {
			logger.Fatalw("archive open failed", "err", err)
		}
		opts.Archive = store
		logger.Infow("archive enabled")
	}

	h := hub.NewHub(ctx, opts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infow("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatalw("server stopped", "err", err)
	}
	logger.Infow("goodbye")
}
