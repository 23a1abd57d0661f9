// Package main is the entry point for the token launchpad API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/stylusforge/launchpad/internal/config"
	"github.com/stylusforge/launchpad/internal/deployer"
	"github.com/stylusforge/launchpad/internal/handler"
	"github.com/stylusforge/launchpad/internal/middleware"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting launchpad API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	if err := cfg.Deployer.Validate(); err != nil {
		// Startup proceeds so health and metrics stay reachable; deploy
		// requests report the configuration hole per request.
		logger.Warn("deployer not fully configured", slog.String("error", err.Error()))
	}

	orch := deployer.NewOrchestrator(pipelineConfig(cfg.Deployer), deployer.WithLogger(logger))
	defer orch.Close()

	deployment := handler.NewDeploymentHandler(cfg.Deployer, orch, logger)
	health := handler.NewHealthHandler()

	// Setup router
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())
	// The deploy flow holds the request open for the whole pipeline.
	r.Use(chimiddleware.Timeout(10 * time.Minute))

	handler.RegisterRoutes(r, deployment, health)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	// Drain detached background work (factory activations)
	orch.Close()

	logger.Info("Server stopped gracefully")
}

// pipelineConfig maps the loaded configuration onto the pipeline's
// own config type so the deployer package stays free of the config
// loader.
func pipelineConfig(c config.DeployerConfig) deployer.Config {
	return deployer.Config{
		PrivateKey:     c.PrivateKey,
		RPCEndpoint:    c.RPCEndpoint,
		ContractDir:    c.ContractDir,
		ScratchDir:     c.ScratchDir,
		CargoBin:       c.CargoBin,
		CastBin:        c.CastBin,
		MaxFeeGwei:     c.MaxFeeGwei,
		CacheBidWei:    c.CacheBidWei,
		ProbeTimeout:   c.ProbeTimeout,
		SendTimeout:    c.SendTimeout,
		ConfirmTimeout: c.ConfirmTimeout,
	}
}
