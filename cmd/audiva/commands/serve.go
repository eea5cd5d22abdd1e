package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AnkitChauhan19/Audiva/internal/metrics"
	"github.com/AnkitChauhan19/Audiva/internal/server"
	"github.com/AnkitChauhan19/Audiva/internal/tracing"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload form and prediction API",
	Long: `Start the HTTP front end.

Endpoints:
  GET  /             upload form
  POST /             classify the uploaded audio_file and show the result
  POST /api/predict  classify the uploaded audio_file and return JSON
  GET  /health       service health check
  GET  /config       service configuration
  GET  /stats        upload statistics
  GET  /metrics      Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides http.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if servePort != 0 {
		cfg.HTTP.Port = servePort
		if err := cfg.HTTP.Validate(); err != nil {
			return err
		}
	}

	logger.Info("Service starting",
		slog.String("service", "audiva"),
		slog.String("version", Version),
		slog.String("config_path", resolvedConfigPath()),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := tracing.Init(ctx, cfg.Tracing, Version, os.Stderr); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracing", slog.String("error", err.Error()))
		}
	}()

	// Initialize Prometheus metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)
	logger.Info("Prometheus metrics initialized")

	// Artifacts are loaded once and shared by every request
	p, err := newPipeline(cfg, appMetrics, true)
	if err != nil {
		return err
	}

	httpServer, err := server.NewHTTPServer(cfg, p, appMetrics, reg, logger, Version)
	if err != nil {
		return err
	}
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", cfg.HTTP.ListenAddress()),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	stats := httpServer.GetStats()
	logger.Info("Final server statistics",
		slog.Uint64("uploads", stats.Uploads),
		slog.Uint64("real", stats.Real),
		slog.Uint64("fake", stats.Fake),
		slog.Uint64("rejected", stats.Rejected),
		slog.Uint64("failed", stats.Failed),
	)

	logger.Info("Service stopped")
	return nil
}
