package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/models"
	"github.com/marketlens/oi-tracker/pkg/logger"
)

// The poller keeps the API service processing fresh data: it fires the
// trigger endpoint once at startup and then on every tick. A failed
// trigger is logged and retried on the next tick, never fatal.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting update poller",
		logger.String("api_base_url", cfg.Poller.APIBaseURL),
		logger.Duration("interval", cfg.Poller.Interval),
	)

	client := &http.Client{Timeout: cfg.Poller.RequestTimeout}
	endpoint := strings.TrimRight(cfg.Poller.APIBaseURL, "/") + "/api/v1/trigger-update"

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Poller.Interval)
	defer ticker.Stop()

	triggerUpdate(client, endpoint)

	for {
		select {
		case <-sigChan:
			logger.Info("Update poller stopped")
			return
		case <-ticker.C:
			triggerUpdate(client, endpoint)
		}
	}
}

func triggerUpdate(client *http.Client, endpoint string) {
	resp, err := client.Post(endpoint, "application/json", nil)
	if err != nil {
		logger.Error("Trigger request failed, retrying next tick",
			logger.ErrorField(err),
		)
		return
	}
	defer resp.Body.Close()

	var result models.TriggerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn("Unparseable trigger response",
			logger.Int("status_code", resp.StatusCode),
			logger.ErrorField(err),
		)
		return
	}

	if result.Status != "success" {
		logger.Warn("Update cycle reported failure",
			logger.String("message", result.Message),
		)
		return
	}

	logger.Info("Update cycle triggered",
		logger.Int("processed_stocks", result.ProcessedStocks),
	)
}
