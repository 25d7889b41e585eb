package store

import (
	"sync"

	"github.com/marketlens/oi-tracker/internal/models"
)

// Store owns the process-wide mutable state: per-symbol snapshot history,
// the baseline registry, the analysis cache, and the user settings. It is
// passed explicitly into the ingestion runner and the HTTP handlers rather
// than living as package globals.
//
// One writer (the ingestion runner) mutates it; HTTP readers take the read
// lock and receive copies, never aliases of internal slices or maps.
type Store struct {
	mu         sync.RWMutex
	history    map[string][]models.Snapshot
	baselines  map[string]models.Snapshot
	analyses   map[string]models.Analysis
	settings   models.Settings
	historyCap int
	source     BaselineSource
}

// DefaultHistoryCap bounds each symbol's history window. At a 5-minute poll
// interval this covers roughly four trading hours.
const DefaultHistoryCap = 50

// New creates a Store with the given history cap and baseline source
func New(historyCap int, source BaselineSource) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if source == nil {
		source = SyntheticBaselineSource{}
	}

	return &Store{
		history:    make(map[string][]models.Snapshot),
		baselines:  make(map[string]models.Snapshot),
		analyses:   make(map[string]models.Analysis),
		settings:   models.DefaultSettings(),
		historyCap: historyCap,
		source:     source,
	}
}

// EnsureBaseline returns the symbol's baseline snapshot, seeding it from the
// baseline source on first touch. Once set, a baseline is never overwritten
// for the lifetime of the process.
func (s *Store) EnsureBaseline(symbol string, now float64) models.Snapshot {
	s.mu.RLock()
	baseline, exists := s.baselines[symbol]
	s.mu.RUnlock()

	if exists {
		return baseline
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock
	if baseline, exists := s.baselines[symbol]; exists {
		return baseline
	}

	baseline = s.source.Baseline(symbol, now)
	s.baselines[symbol] = baseline
	return baseline
}

// Baseline returns the recorded baseline for a symbol, if any
func (s *Store) Baseline(symbol string) (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	baseline, ok := s.baselines[symbol]
	return baseline, ok
}

// Append adds a snapshot to the symbol's history. A symbol with no prior
// history is seeded with its baseline snapshot as entry zero first, so the
// oldest retained entry is the baseline until the cap pushes it out. After
// the append the history is trimmed to the most recent historyCap entries.
func (s *Store) Append(symbol string, snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.history[symbol]
	if !exists || len(h) == 0 {
		baseline, ok := s.baselines[symbol]
		if !ok {
			baseline = s.source.Baseline(symbol, snap.Timestamp)
			s.baselines[symbol] = baseline
		}
		h = append(h, baseline)
	}

	h = append(h, snap)
	if len(h) > s.historyCap {
		h = h[len(h)-s.historyCap:]
	}
	s.history[symbol] = h
}

// History returns a copy of the symbol's history window, oldest first
func (s *Store) History(symbol string) []models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[symbol]
	if len(h) == 0 {
		return nil
	}

	out := make([]models.Snapshot, len(h))
	copy(out, h)
	return out
}

// Latest returns the newest snapshot in the symbol's history
func (s *Store) Latest(symbol string) (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[symbol]
	if len(h) == 0 {
		return models.Snapshot{}, false
	}
	return h[len(h)-1], true
}

// SetAnalysis replaces the cached analysis for the record's symbol
func (s *Store) SetAnalysis(a models.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[a.Symbol] = a
}

// Analysis returns the cached analysis for a symbol
func (s *Store) Analysis(symbol string) (models.Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[symbol]
	return a, ok
}

// Analyses returns a copy of all cached analyses, in no particular order
func (s *Store) Analyses() []models.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		out = append(out, a)
	}
	return out
}

// AnalysisCount returns the number of symbols with a cached analysis
func (s *Store) AnalysisCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.analyses)
}

// LastUpdated returns the newest LastUpdated timestamp across all cached
// analyses, or 0 when none exist
func (s *Store) LastUpdated() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max float64
	for _, a := range s.analyses {
		if a.LastUpdated > max {
			max = a.LastUpdated
		}
	}
	return max
}

// Settings returns the current thresholds
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

// UpdateSettings replaces the thresholds wholesale. Values are not
// range-checked; the caller owns what it sends.
func (s *Store) UpdateSettings(next models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = next
}

// SymbolCount returns the number of symbols with history
func (s *Store) SymbolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.history)
}
