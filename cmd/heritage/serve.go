package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackielii/heritage/internal/config"
	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/logging"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/tracing"
	"github.com/jackielii/heritage/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().String("addr", config.Defaults().Addr, "listen address")
	_ = a.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown error", "error", err)
		}
	}()

	store, err := content.NewStore(cfg.ContentPath, logger)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	go func() {
		if err := store.Watch(ctx); err != nil {
			logger.Error("catalog watcher stopped", "error", err)
		}
	}()

	// The page's code is encoded once per process and the page polls until
	// it lands. Download sizes are encoded on request and cached.
	slot := qr.NewSlot(qr.NewPNGEncoder(), cfg.PublicURL, cfg.QR, logger)
	slot.Start(ctx)

	site, err := web.NewServer(web.Deps{
		Logger:   logger,
		Catalog:  store,
		QR:       slot,
		QRSizes:  qr.NewCachedEncoder(qr.NewPNGEncoder(), cfg.QRCacheTTL),
		Sessions: web.NewSessionManager(cfg.Session),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           site,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "public_url", cfg.PublicURL, "content", cfg.ContentPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
