package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/marketlens/oi-tracker/internal/ingest"
	"github.com/marketlens/oi-tracker/internal/metrics"
	"github.com/marketlens/oi-tracker/internal/models"
	"github.com/marketlens/oi-tracker/internal/store"
	"github.com/marketlens/oi-tracker/internal/stream"
	"github.com/marketlens/oi-tracker/pkg/logger"
)

// CycleTrigger runs one ingestion cycle on demand
type CycleTrigger interface {
	RunCycle(ctx context.Context) (ingest.CycleResult, error)
}

// StockHandler handles the analytics read endpoints
type StockHandler struct {
	store *store.Store
}

// NewStockHandler creates a new stock handler
func NewStockHandler(st *store.Store) *StockHandler {
	return &StockHandler{store: st}
}

// ListStocks handles GET /api/v1/stocks. It returns every analysis whose
// open-interest change clears the variable A threshold, largest absolute
// move first.
func (h *StockHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	threshold := h.store.Settings().VariableA
	analyses := h.store.Analyses()

	filtered := make([]models.Analysis, 0, len(analyses))
	for _, a := range analyses {
		if math.Abs(a.OIChangePct) >= threshold {
			filtered = append(filtered, a)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		ai, aj := math.Abs(filtered[i].OIChangePct), math.Abs(filtered[j].OIChangePct)
		if ai != aj {
			return ai > aj
		}
		return filtered[i].Symbol < filtered[j].Symbol
	})

	respondWithJSON(w, http.StatusOK, filtered)
}

// GetStock handles GET /api/v1/stock/{symbol}. The put and call side
// changes are derived at request time from the latest snapshot and the
// session baseline.
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(vars["symbol"])

	latest, hasLatest := h.store.Latest(symbol)
	baseline, hasBaseline := h.store.Baseline(symbol)
	analysis, hasAnalysis := h.store.Analysis(symbol)
	if !hasLatest || !hasBaseline || !hasAnalysis {
		respondWithError(w, http.StatusNotFound, "Stock data not found or not yet processed.")
		return
	}

	detail := models.StockDetail{
		Symbol:             symbol,
		LastSessionTotalOI: baseline.TotalOI,
		CurrentTotalOI:     latest.TotalOI,
		OIChangePct:        analysis.OIChangePct,
		PutOIChangePct:     metrics.ChangePct(float64(latest.PutOI), float64(baseline.PutOI)),
		CallOIChangePct:    metrics.ChangePct(float64(latest.CallOI), float64(baseline.CallOI)),
		PCRNow:             analysis.PCRNow,
		LastUpdated:        analysis.LastUpdated,
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// SettingsHandler handles the user threshold endpoints
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(st *store.Store) *SettingsHandler {
	return &SettingsHandler{store: st}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.store.Settings())
}

// UpdateSettings handles POST /api/v1/settings. The stored object is
// replaced wholesale; fields missing from the body fall back to their
// defaults, and values are not range-checked.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := models.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.store.UpdateSettings(settings)
	logger.Info("Settings updated",
		logger.Float64("variable_a", settings.VariableA),
		logger.Float64("variable_b", settings.VariableB),
	)

	respondWithJSON(w, http.StatusOK, h.store.Settings())
}

// StatusHandler handles the processing status endpoint
type StatusHandler struct {
	store        *store.Store
	pollInterval time.Duration
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(st *store.Store, pollInterval time.Duration) *StatusHandler {
	return &StatusHandler{store: st, pollInterval: pollInterval}
}

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	settings := h.store.Settings()

	// Sub-minute intervals are valid config; the note floors at one minute
	// rather than reporting zero.
	minutes := int(h.pollInterval.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	respondWithJSON(w, http.StatusOK, models.StatusReport{
		Status:               "OK",
		LastProcessedCount:   h.store.AnalysisCount(),
		LastUpdatedTimestamp: h.store.LastUpdated(),
		VariableA:            settings.VariableA,
		VariableB:            settings.VariableB,
		Note:                 fmt.Sprintf("Data is scraped every %d minutes by the external cron job.", minutes),
	})
}

// TriggerHandler handles the manual update endpoint
type TriggerHandler struct {
	store  *store.Store
	runner CycleTrigger
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(st *store.Store, runner CycleTrigger) *TriggerHandler {
	return &TriggerHandler{store: st, runner: runner}
}

// TriggerUpdate handles POST /api/v1/trigger-update. The cycle runs
// synchronously and shares the runner's cycle mutex, so a manual trigger
// can never interleave with a scheduled cycle. Failures are reported in
// the body rather than the status code; the envelope carries the outcome.
func (h *TriggerHandler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.runner.RunCycle(r.Context()); err != nil {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "error",
			"message":   err.Error(),
			"timestamp": unixNow(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, models.TriggerResult{
		Status:          "success",
		Message:         "Data processing triggered successfully",
		ProcessedStocks: h.store.AnalysisCount(),
		Timestamp:       unixNow(),
	})
}

// StreamHandler upgrades clients onto the alert hub
type StreamHandler struct {
	hub        *stream.Hub
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *stream.Hub, sendBuffer int) *StreamHandler {
	return &StreamHandler{
		hub:        hub,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same posture as the CORS middleware: any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS handles GET /api/v1/ws
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		logger.Warn("WebSocket upgrade failed", logger.ErrorField(err))
		return
	}
	h.hub.Register(stream.NewConnection(ws, h.sendBuffer))
}

// unixNow returns the current time as Unix seconds with fractions
func unixNow() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}
