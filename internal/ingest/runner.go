package ingest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/metrics"
	"github.com/marketlens/oi-tracker/internal/models"
	"github.com/marketlens/oi-tracker/internal/nse"
	"github.com/marketlens/oi-tracker/internal/store"
	"github.com/marketlens/oi-tracker/internal/stream"
	"github.com/marketlens/oi-tracker/pkg/logger"
)

// ChainFetcher is the upstream surface the runner polls
type ChainFetcher interface {
	Bootstrap(ctx context.Context) error
	FetchOptionChain(ctx context.Context, symbol string) (*nse.OptionChain, error)
}

// AlertSink receives alerts that cross the live threshold
type AlertSink interface {
	Publish(alert models.LiveAlert)
}

// CycleResult summarizes one polling cycle
type CycleResult struct {
	Processed int
	Skipped   int
	Duration  time.Duration
}

// Runner drives the polling loop. Each cycle bootstraps the upstream
// session, then walks the watchlist serially: fetch, normalize, append to
// history, recompute the analysis, and check the live alert threshold.
// Scheduled cycles and manual triggers share one cycle mutex so two cycles
// never interleave.
type Runner struct {
	cfg      config.IngestConfig
	fetcher  ChainFetcher
	store    *store.Store
	alerts   AlertSink
	cooldown *stream.Cooldown

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ready   atomic.Bool

	cycleMu sync.Mutex
}

// NewRunner creates a runner. alerts and cooldown may be nil, which
// disables live alerting.
func NewRunner(cfg config.IngestConfig, fetcher ChainFetcher, st *store.Store, alerts AlertSink, cooldown *stream.Cooldown) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    st,
		alerts:   alerts,
		cooldown: cooldown,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling loop: one immediate cycle, then one per tick
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner is already running")
	}
	r.running = true
	r.mu.Unlock()

	logger.Info("Starting ingestion runner",
		logger.Duration("poll_interval", r.cfg.PollInterval),
		logger.Int("symbols", len(r.cfg.Symbols)),
	)

	r.wg.Add(1)
	go r.run()
	return nil
}

// Stop stops the polling loop and waits for an in-flight cycle to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	logger.Info("Stopping ingestion runner")
	r.cancel()
	r.wg.Wait()
	logger.Info("Ingestion runner stopped")
}

// IsRunning reports whether the polling loop is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Ready reports whether at least one full cycle has completed
func (r *Runner) Ready() bool {
	return r.ready.Load()
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// First cycle immediately so the API has data before the first tick
	r.RunCycle(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.RunCycle(r.ctx)
		}
	}
}

// RunCycle executes one polling cycle. A cookie bootstrap failure aborts
// the whole cycle; any per-symbol failure skips that symbol only. Errors
// are logged and counted here, and returned so manual triggers can shape
// their response.
func (r *Runner) RunCycle(ctx context.Context) (CycleResult, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	start := time.Now()
	var result CycleResult

	if err := r.fetcher.Bootstrap(ctx); err != nil {
		logger.IngestCyclesTotal.WithLabelValues("aborted").Inc()
		logger.Error("Cookie bootstrap failed, aborting cycle", logger.ErrorField(err))
		result.Duration = time.Since(start)
		return result, fmt.Errorf("cookie bootstrap: %w", err)
	}

	for _, symbol := range r.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			logger.IngestCyclesTotal.WithLabelValues("interrupted").Inc()
			result.Duration = time.Since(start)
			return result, err
		}

		if err := r.processSymbol(ctx, symbol); err != nil {
			result.Skipped++
			logger.Warn("Skipping symbol for this cycle",
				logger.String("symbol", symbol),
				logger.ErrorField(err),
			)
			continue
		}
		result.Processed++
	}

	result.Duration = time.Since(start)
	r.ready.Store(true)

	logger.IngestCyclesTotal.WithLabelValues("completed").Inc()
	logger.IngestCycleDuration.Observe(result.Duration.Seconds())
	logger.Info("Polling cycle complete",
		logger.Int("processed", result.Processed),
		logger.Int("skipped", result.Skipped),
		logger.Duration("duration", result.Duration),
	)
	return result, nil
}

func (r *Runner) processSymbol(ctx context.Context, symbol string) error {
	chain, err := r.fetcher.FetchOptionChain(ctx, symbol)
	if err != nil {
		logger.SymbolErrorsTotal.WithLabelValues("fetch").Inc()
		return err
	}

	snap, err := nse.BuildSnapshot(symbol, chain, time.Now())
	if err != nil {
		logger.SymbolErrorsTotal.WithLabelValues("normalize").Inc()
		return err
	}

	baseline := r.store.EnsureBaseline(symbol, snap.Timestamp)
	r.store.Append(symbol, snap)

	analysis := metrics.Compute(snap, baseline, r.store.History(symbol))
	r.store.SetAnalysis(analysis)
	logger.SnapshotsIngestedTotal.Inc()

	logger.Debug("Symbol processed",
		logger.String("symbol", symbol),
		logger.Int64("total_oi", snap.TotalOI),
		logger.Float64("oi_change_pct", analysis.OIChangePct),
		logger.Float64("live_oi_change_pct", analysis.LiveOIChangePct),
	)

	r.maybeAlert(snap, analysis)
	return nil
}

// maybeAlert publishes a live alert when the latest live OI change crosses
// the configured threshold and the symbol is outside its cooldown window
func (r *Runner) maybeAlert(snap models.Snapshot, analysis models.Analysis) {
	if r.alerts == nil {
		return
	}

	threshold := r.store.Settings().VariableB
	if math.Abs(analysis.LiveOIChangePct) < threshold {
		return
	}
	if r.cooldown != nil && !r.cooldown.Allow(snap.Symbol, time.Now()) {
		return
	}

	alert := models.LiveAlert{
		ID:              uuid.New().String(),
		Symbol:          snap.Symbol,
		LiveOIChangePct: analysis.LiveOIChangePct,
		TotalOI:         snap.TotalOI,
		PCRNow:          analysis.PCRNow,
		Threshold:       threshold,
		Timestamp:       snap.Timestamp,
	}
	r.alerts.Publish(alert)
	logger.AlertsEmittedTotal.Inc()

	logger.Info("Live OI alert",
		logger.String("symbol", alert.Symbol),
		logger.Float64("live_oi_change_pct", alert.LiveOIChangePct),
		logger.Float64("threshold", alert.Threshold),
	)
}
