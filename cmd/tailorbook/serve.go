package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alfajr/tailorbook/api"
	"github.com/alfajr/tailorbook/tailor"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.cfg.HTTPAddr, "addr", opts.cfg.HTTPAddr, "HTTP listen address")
	return cmd
}

// runServe starts the server and blocks until SIGINT/SIGTERM.
func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := opts.logger
	cfg := opts.cfg

	book, store, err := opts.openBook(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// Interval backups
	scheduler := api.NewBackupScheduler(book, logger)
	scheduler.CheckInterval = cfg.BackupCheck
	scheduler.BackupInterval = backupInterval(ctx, book, cfg.BackupInterval)
	scheduler.Start()
	defer scheduler.Stop()

	// Connectivity
	if cfg.ProbeURL != "" {
		monitor := &tailor.ConnectivityMonitor{
			Probe:    tailor.HTTPProbe{URL: cfg.ProbeURL},
			Target:   book,
			Interval: cfg.ProbeInterval,
			Logger:   logger.Named("connectivity"),
		}
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	handler := api.NewHandler(book, logger.Named("api"))
	events := api.NewEventStream(book, logger, originChecker(cfg.AllowedOrigins))
	router := api.NewRouter(handler, events, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// backupInterval prefers the backupInterval setting (hours) over the default.
func backupInterval(ctx context.Context, book *tailor.Book, def time.Duration) time.Duration {
	s, err := book.GetSetting(ctx, tailor.SettingBackupInterval)
	if err != nil || s == nil {
		return def
	}
	hours, ok := s.Value.(float64)
	if !ok || hours <= 0 {
		return def
	}
	return time.Duration(hours * float64(time.Hour))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
