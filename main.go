package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/election-assistant/pkg/app"
	"github.com/ekaya-inc/election-assistant/pkg/config"
	"github.com/ekaya-inc/election-assistant/pkg/handlers"
	"github.com/ekaya-inc/election-assistant/pkg/logging"
	"github.com/ekaya-inc/election-assistant/pkg/mcp"
	"github.com/ekaya-inc/election-assistant/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("engine", cfg.Engine.Type),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_base_url", logging.SanitizeConnectionString(cfg.LLM.BaseURL)),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.Build(ctx, cfg, promRegistry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close engine", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, a.Executor, logger).RegisterRoutes(mux)
	handlers.NewStatsHandler(a.Registry, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(a.Assistant, cfg.RequestTimeout, logger).RegisterRoutes(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}))
	}

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("election-assistant", cfg.Version, logger)
		mcpServer.RegisterElectionTools(a.Assistant, a.Executor)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting election-assistant",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
