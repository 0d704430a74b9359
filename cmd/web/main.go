// Command web serves the Ledgerline landing site.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/config"
	"finitefield.org/ledgerline-web/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "web",
		Short:         "Ledgerline landing site",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newSitemapCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newSitemapCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemap.xml from the content directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.LogLevel, cfg.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger, analytics.Nop)
			if err != nil {
				return err
			}
			if out == "-" {
				return a.writeSitemap(cmd.Context(), cmd.OutOrStdout())
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := a.writeSitemap(cmd.Context(), f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("sitemap written", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", filepath.Join("public", "sitemap.xml"), "output file, or - for stdout")
	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dispatcher := analytics.NewDispatcher(newTracker(cfg, logger), cfg.Analytics.QueueSize, cfg.Analytics.Timeout, logger.Named("analytics"))

	a, err := newApp(ctx, cfg, logger, dispatcher)
	if err != nil {
		return err
	}
	srv := a.server()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web listening", zap.String("addr", srv.Addr), zap.Bool("dev", cfg.Dev), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("analytics drain", zap.Error(err))
	}
	return nil
}

// newTracker logs every event and forwards to GA4 when credentials exist.
func newTracker(cfg config.Config, logger *zap.Logger) analytics.Tracker {
	trackers := []analytics.Tracker{analytics.LogTracker{Logger: logger.Named("analytics")}}
	if cfg.Analytics.GA4MeasurementID != "" && cfg.Analytics.GA4APISecret != "" {
		trackers = append(trackers, analytics.NewGA4(cfg.Analytics.GA4Endpoint, cfg.Analytics.GA4MeasurementID, cfg.Analytics.GA4APISecret, cfg.Analytics.Timeout))
	}
	return analytics.Multi(trackers...)
}
