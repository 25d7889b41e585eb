package metrics

import (
	"math"

	"github.com/marketlens/oi-tracker/internal/models"
)

// lookbackWindow is the intraday trend window in seconds
const lookbackWindow = 3600.0

// Compute derives the Analysis record for one symbol from the current
// snapshot, the prior-session baseline, and the bounded history window
// (oldest first, current snapshot already appended as the last entry).
//
// Pure and deterministic: no I/O, no clock reads, never fails. Every
// division is zero-guarded and reports 0 instead. All percentages and the
// put/call ratio are rounded to two decimals; the rounding is part of the
// wire contract.
func Compute(current, baseline models.Snapshot, history []models.Snapshot) models.Analysis {
	lastHour := 0.0
	if idx, ok := nearestIndex(history, current.Timestamp-lookbackWindow); ok {
		lastHour = ChangePct(float64(current.TotalOI), float64(history[idx].TotalOI))
	}

	live := 0.0
	if len(history) >= 2 {
		previous := history[len(history)-2]
		live = ChangePct(float64(current.TotalOI), float64(previous.TotalOI))
	}

	// PCR requires both sides strictly positive, unlike the one-sided
	// change guards. Asymmetric on purpose.
	pcr := 0.0
	if current.PutOI > 0 && current.CallOI > 0 {
		pcr = round2(float64(current.PutOI) / float64(current.CallOI))
	}

	return models.Analysis{
		Symbol:              current.Symbol,
		OIChangePct:         ChangePct(float64(current.TotalOI), float64(baseline.TotalOI)),
		PriceChangePct:      ChangePct(current.UnderlyingValue, baseline.UnderlyingValue),
		VolumeChangePct:     ChangePct(float64(current.FuturesVolume), float64(baseline.FuturesVolume)),
		OIChangeLastHourPct: lastHour,
		PCRNow:              pcr,
		LastUpdated:         current.Timestamp,
		LiveOIChangePct:     live,
	}
}

// ChangePct returns the percentage change from past to current, rounded to
// two decimals. A past value that is not strictly positive reports 0 rather
// than an undefined ratio.
func ChangePct(current, past float64) float64 {
	if past <= 0 {
		return 0
	}
	return round2((current - past) / past * 100)
}

// nearestIndex returns the index of the history entry whose timestamp is
// closest in absolute distance to target. Ties resolve to the earliest
// index. ok is false when history is empty.
func nearestIndex(history []models.Snapshot, target float64) (int, bool) {
	if len(history) == 0 {
		return 0, false
	}

	best := 0
	bestDist := math.Abs(history[0].Timestamp - target)
	for i := 1; i < len(history); i++ {
		if d := math.Abs(history[i].Timestamp - target); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
