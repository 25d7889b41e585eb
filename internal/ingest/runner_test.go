package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/models"
	"github.com/marketlens/oi-tracker/internal/nse"
	"github.com/marketlens/oi-tracker/internal/store"
	"github.com/marketlens/oi-tracker/internal/stream"
)

type fakeFetcher struct {
	mu             sync.Mutex
	bootstrapErr   error
	bootstrapCalls int
	fetchCalls     int
	chains         map[string]*nse.OptionChain
	fetchErrs      map[string]error
}

func (f *fakeFetcher) Bootstrap(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapCalls++
	return f.bootstrapErr
}

func (f *fakeFetcher) FetchOptionChain(ctx context.Context, symbol string) (*nse.OptionChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if err, ok := f.fetchErrs[symbol]; ok {
		return nil, err
	}
	chain, ok := f.chains[symbol]
	if !ok {
		return nil, errors.New("no chain configured for " + symbol)
	}
	return chain, nil
}

func (f *fakeFetcher) setChain(symbol string, chain *nse.OptionChain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains[symbol] = chain
}

type fakeSink struct {
	mu     sync.Mutex
	alerts []models.LiveAlert
}

func (f *fakeSink) Publish(alert models.LiveAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func (f *fakeSink) last() models.LiveAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts[len(f.alerts)-1]
}

// chainWith builds a single-strike chain whose nearest-expiry aggregates
// are exactly the given legs
func chainWith(callOI, putOI, callVol, putVol, underlying float64) *nse.OptionChain {
	const expiry = "28-Aug-2025"
	return &nse.OptionChain{
		Records: nse.ChainRecords{
			ExpiryDates:     []string{expiry},
			UnderlyingValue: underlying,
		},
		Filtered: nse.ChainFiltered{Data: []nse.StrikeRow{
			{
				ExpiryDate: expiry,
				CE:         &nse.OptionLeg{OpenInterest: callOI, TotalTradedVolume: callVol},
				PE:         &nse.OptionLeg{OpenInterest: putOI, TotalTradedVolume: putVol},
			},
		}},
	}
}

func testIngestConfig(symbols ...string) config.IngestConfig {
	return config.IngestConfig{
		PollInterval: time.Hour,
		Symbols:      symbols,
		HistoryCap:   50,
	}
}

func TestRunner_RunCycleProcessesWatchlist(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		// 125000 total OI against the 100000 synthetic baseline
		"RELIANCE": chainWith(70000, 55000, 325000, 300000, 95.0),
		"TCS":      chainWith(50000, 50000, 250000, 250000, 100.0),
	}}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE", "TCS"), fetcher, st, nil, nil)

	result, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if result.Processed != 2 || result.Skipped != 0 {
		t.Fatalf("expected 2 processed / 0 skipped, got %d / %d", result.Processed, result.Skipped)
	}
	if fetcher.bootstrapCalls != 1 {
		t.Errorf("expected 1 bootstrap call, got %d", fetcher.bootstrapCalls)
	}

	analysis, ok := st.Analysis("RELIANCE")
	if !ok {
		t.Fatal("expected an analysis for RELIANCE")
	}
	if analysis.OIChangePct != 25.0 {
		t.Errorf("expected OI change 25.0 vs synthetic baseline, got %v", analysis.OIChangePct)
	}
	if analysis.PriceChangePct != -5.0 {
		t.Errorf("expected price change -5.0, got %v", analysis.PriceChangePct)
	}
	if analysis.VolumeChangePct != 25.0 {
		t.Errorf("expected volume change 25.0, got %v", analysis.VolumeChangePct)
	}
	if !runner.Ready() {
		t.Error("expected runner to be ready after a completed cycle")
	}
}

func TestRunner_BootstrapFailureAbortsCycle(t *testing.T) {
	fetcher := &fakeFetcher{
		bootstrapErr: errors.New("connection refused"),
		chains:       map[string]*nse.OptionChain{"RELIANCE": chainWith(1, 1, 1, 1, 1)},
	}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, nil, nil)

	result, err := runner.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected cycle error on bootstrap failure")
	}
	if result.Processed != 0 {
		t.Errorf("expected 0 processed, got %d", result.Processed)
	}
	if fetcher.fetchCalls != 0 {
		t.Errorf("expected no symbol fetches after bootstrap failure, got %d", fetcher.fetchCalls)
	}
	if st.AnalysisCount() != 0 {
		t.Errorf("expected no analyses, got %d", st.AnalysisCount())
	}
	if runner.Ready() {
		t.Error("expected runner not ready after an aborted cycle")
	}
}

func TestRunner_SymbolFailureSkipsSymbolOnly(t *testing.T) {
	fetcher := &fakeFetcher{
		chains:    map[string]*nse.OptionChain{"TCS": chainWith(50000, 50000, 100, 100, 100.0)},
		fetchErrs: map[string]error{"RELIANCE": errors.New("status 401")},
	}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE", "TCS"), fetcher, st, nil, nil)

	result, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if result.Processed != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 processed / 1 skipped, got %d / %d", result.Processed, result.Skipped)
	}
	if _, ok := st.Analysis("RELIANCE"); ok {
		t.Error("expected no analysis for the failed symbol")
	}
	if _, ok := st.Analysis("TCS"); !ok {
		t.Error("expected an analysis for the healthy symbol")
	}
}

func TestRunner_MalformedChainSkipsSymbol(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": {Records: nse.ChainRecords{ExpiryDates: nil}},
	}}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, nil, nil)

	result, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("expected the symbol to be skipped, got %+v", result)
	}
}

func TestRunner_AlertFiresAboveThreshold(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": chainWith(70000, 55000, 100, 100, 100.0),
	}}
	st := store.New(0, nil)
	sink := &fakeSink{}
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, sink, stream.NewCooldown(time.Minute))

	// First cycle: 125000 vs the 100000 baseline is a 25% live move,
	// well over the default 1.0 threshold
	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if sink.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", sink.count())
	}
	alert := sink.last()
	if alert.Symbol != "RELIANCE" {
		t.Errorf("expected alert for RELIANCE, got %q", alert.Symbol)
	}
	if alert.LiveOIChangePct != 25.0 {
		t.Errorf("expected live change 25.0, got %v", alert.LiveOIChangePct)
	}
	if alert.Threshold != 1.0 {
		t.Errorf("expected default threshold 1.0, got %v", alert.Threshold)
	}
	if alert.ID == "" {
		t.Error("expected a generated alert id")
	}
}

func TestRunner_AlertRespectsThresholdSetting(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": chainWith(70000, 55000, 100, 100, 100.0),
	}}
	st := store.New(0, nil)
	st.UpdateSettings(models.Settings{VariableA: 3.0, VariableB: 50.0})
	sink := &fakeSink{}
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, sink, stream.NewCooldown(time.Minute))

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("expected no alert below a 50.0 threshold, got %d", sink.count())
	}
}

func TestRunner_AlertCooldownSuppressesRepeat(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": chainWith(70000, 55000, 100, 100, 100.0),
	}}
	st := store.New(0, nil)
	sink := &fakeSink{}
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, sink, stream.NewCooldown(time.Hour))

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	// Keep the live move above threshold: 150000 vs 125000 is 20%
	fetcher.setChain("RELIANCE", chainWith(85000, 65000, 100, 100, 100.0))
	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if sink.count() != 1 {
		t.Errorf("expected the cooldown to suppress the second alert, got %d", sink.count())
	}
}

func TestRunner_StartStop(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": chainWith(50000, 50000, 100, 100, 100.0),
	}}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, nil, nil)

	if err := runner.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := runner.Start(); err == nil {
		t.Error("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && st.AnalysisCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if st.AnalysisCount() != 1 {
		t.Fatalf("expected the immediate first cycle to run, got %d analyses", st.AnalysisCount())
	}

	runner.Stop()
	if runner.IsRunning() {
		t.Error("expected runner to report stopped")
	}
	runner.Stop()
}

func TestRunner_CanceledContextInterruptsCycle(t *testing.T) {
	fetcher := &fakeFetcher{chains: map[string]*nse.OptionChain{
		"RELIANCE": chainWith(50000, 50000, 100, 100, 100.0),
	}}
	st := store.New(0, nil)
	runner := NewRunner(testIngestConfig("RELIANCE"), fetcher, st, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.AnalysisCount() != 0 {
		t.Errorf("expected no analyses from an interrupted cycle, got %d", st.AnalysisCount())
	}
}
