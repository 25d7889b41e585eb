package store

import (
	"github.com/marketlens/oi-tracker/internal/models"
)

// BaselineSource supplies a symbol's prior-session reference snapshot the
// first time the symbol is ingested. Implementations backed by a persisted
// end-of-day store can be plugged in here; the synthetic source below is
// the default until one exists.
type BaselineSource interface {
	Baseline(symbol string, now float64) models.Snapshot
}

// SyntheticBaselineSource fabricates a fixed placeholder baseline: a
// non-degenerate denominator for every percentage computation on first run,
// not a representation of real prior-session data. It is never refreshed
// during a run.
type SyntheticBaselineSource struct{}

// Baseline returns the placeholder prior-session snapshot for a symbol
func (SyntheticBaselineSource) Baseline(symbol string, now float64) models.Snapshot {
	return models.Snapshot{
		Symbol:          symbol,
		ExpiryDate:      "N/A",
		TotalOI:         100000,
		CallOI:          50000,
		PutOI:           50000,
		FuturesVolume:   500000,
		UnderlyingValue: 100.0,
		Timestamp:       now - 86400,
	}
}
