package nse

import (
	"fmt"
	"time"

	"github.com/marketlens/oi-tracker/internal/models"
)

// BuildSnapshot aggregates a raw option chain into a Snapshot for the
// nearest expiry. The nearest expiry is the first element of the payload's
// expiryDates list, taken verbatim; NSE returns the list in chronological
// order and parsing the exchange's date format buys nothing.
func BuildSnapshot(symbol string, chain *OptionChain, capturedAt time.Time) (models.Snapshot, error) {
	if chain == nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w: empty chain", symbol, models.ErrMalformedPayload)
	}
	if len(chain.Records.ExpiryDates) == 0 {
		return models.Snapshot{}, fmt.Errorf("%s: %w", symbol, models.ErrNoExpiries)
	}
	nearest := chain.Records.ExpiryDates[0]

	var callOI, putOI, volume int64
	for _, row := range chain.Filtered.Data {
		if row.ExpiryDate != nearest {
			continue
		}
		if row.CE != nil {
			callOI += int64(row.CE.OpenInterest)
			volume += int64(row.CE.TotalTradedVolume)
		}
		if row.PE != nil {
			putOI += int64(row.PE.OpenInterest)
			volume += int64(row.PE.TotalTradedVolume)
		}
	}

	snap := models.Snapshot{
		Symbol:          symbol,
		ExpiryDate:      nearest,
		TotalOI:         callOI + putOI,
		CallOI:          callOI,
		PutOI:           putOI,
		FuturesVolume:   volume,
		UnderlyingValue: chain.Records.UnderlyingValue,
		Timestamp:       float64(capturedAt.UnixMilli()) / 1000.0,
	}
	if err := snap.Validate(); err != nil {
		return models.Snapshot{}, fmt.Errorf("snapshot for %s: %w", symbol, err)
	}
	return snap, nil
}
