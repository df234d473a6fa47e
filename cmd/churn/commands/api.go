package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/api"
	"github.com/wonny/churn-mlops/internal/api/handlers"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/logger"
	"github.com/wonny/churn-mlops/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the model-serving API",
	Long: `Starts the HTTP serving layer for the production model.

Endpoints:
  GET  /live          - liveness probe
  GET  /ready         - readiness probe (lazy model load)
  GET  /health        - serving status + loaded model
  GET  /metrics       - Prometheus metrics
  POST /api/predict   - score one user snapshot
  POST /api/reload    - re-read the production alias

Example:
  go run ./cmd/churn api
  go run ./cmd/churn api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Optional prediction cache
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "churn")

	// 4. Model state: built here, handed to handlers explicitly
	state := handlers.NewModelState(cfg.Paths.Models)
	if err := state.EnsureLoaded(); err != nil {
		// Serve anyway; /ready keeps retrying until a promotion lands.
		log.WithError(err).Warn("No production model yet")
	}

	// 5. Handlers + router + server
	predictHandler := handlers.NewPredictHandler(state, cache, log)
	healthHandler := handlers.NewHealthHandler(state, log)
	router := api.NewRouter(predictHandler, healthHandler, cfg.MetricsEnabled, log)
	server := api.New(cfg, log, router)

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s (Ctrl+C to stop)\n", cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
