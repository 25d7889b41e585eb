package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketlens/oi-tracker/internal/api"
	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/ingest"
	"github.com/marketlens/oi-tracker/internal/nse"
	"github.com/marketlens/oi-tracker/internal/store"
	"github.com/marketlens/oi-tracker/internal/stream"
	"github.com/marketlens/oi-tracker/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting OI tracker service",
		logger.Int("port", cfg.API.Port),
		logger.Duration("poll_interval", cfg.Ingest.PollInterval),
		logger.Int("symbols", len(cfg.Ingest.Symbols)),
		logger.Int("rate_limit_rps", cfg.API.RateLimitRPS),
	)

	// State store with the synthetic prior-session baseline source
	st := store.New(cfg.Ingest.HistoryCap, store.SyntheticBaselineSource{})

	// Upstream option-chain client
	client, err := nse.NewClient(cfg.NSE)
	if err != nil {
		logger.Fatal("Failed to initialize NSE client",
			logger.ErrorField(err),
		)
	}

	// Alert stream hub
	hub := stream.NewHub(cfg.Stream)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start alert hub",
			logger.ErrorField(err),
		)
	}

	// Ingestion runner
	cooldown := stream.NewCooldown(cfg.Stream.AlertCooldown)
	runner := ingest.NewRunner(cfg.Ingest, client, st, hub, cooldown)
	if err := runner.Start(); err != nil {
		logger.Fatal("Failed to start ingestion runner",
			logger.ErrorField(err),
		)
	}

	// Initialize handlers
	stockHandler := api.NewStockHandler(st)
	settingsHandler := api.NewSettingsHandler(st)
	statusHandler := api.NewStatusHandler(st, cfg.Ingest.PollInterval)
	triggerHandler := api.NewTriggerHandler(st, runner)
	streamHandler := api.NewStreamHandler(hub, cfg.Stream.SendBuffer)

	// Set up router
	router := mux.NewRouter()

	// API v1 routes
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/stocks", stockHandler.ListStocks).Methods("GET")
	v1.HandleFunc("/stock/{symbol}", stockHandler.GetStock).Methods("GET")
	v1.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
	v1.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("POST")
	v1.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
	v1.HandleFunc("/trigger-update", triggerHandler.TriggerUpdate).Methods("POST")
	v1.HandleFunc("/ws", streamHandler.ServeWS).Methods("GET")

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		// Not ready until the first polling cycle has completed
		if !runner.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Apply middleware
	middlewares := api.ChainMiddleware(
		api.CORSMiddleware(),
		api.LoggingMiddleware(),
		api.ErrorHandlingMiddleware(),
		api.RateLimitMiddleware(cfg.API.RateLimitRPS),
	)

	handler := middlewares(router)

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: handler,
	}

	go func() {
		logger.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down OI tracker service")

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}

	runner.Stop()
	hub.Stop()

	logger.Info("OI tracker service stopped")
}
