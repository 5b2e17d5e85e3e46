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

	"github.com/saifu-wallet/gateway/internal/config"
	"github.com/saifu-wallet/gateway/internal/log"
	"github.com/saifu-wallet/gateway/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, log.Options{Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting Saifu gateway",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"network", cfg.Solana.Network,
		"rpc_credential", cfg.Solana.APIKey != "",
		"rpc_policy", cfg.RPCPolicy(),
	)
	if cfg.Solana.APIKey == "" {
		logger.Warnw("No RPC credential configured, using the public rate-limited endpoint",
			"public_rps", cfg.Solana.PublicRPS,
		)
	}

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("saifu-gateway")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	app, err := newApp(cfg, logger, metricsObj, metricsHandler)
	if err != nil {
		logger.Fatalw("Failed to build gateway", "error", err)
	}
	defer app.Close()

	logger.Infow("CORS configured", "allowed_origins", cfg.AllowedOrigins())

	// Setup HTTP server. WriteTimeout leaves room for one full upstream call.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
