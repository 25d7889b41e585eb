package nse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/oi-tracker/internal/models"
)

func leg(oi, volume float64) *OptionLeg {
	return &OptionLeg{OpenInterest: oi, TotalTradedVolume: volume}
}

func TestBuildSnapshot_AggregatesNearestExpiryOnly(t *testing.T) {
	chain := &OptionChain{
		Records: ChainRecords{
			ExpiryDates:     []string{"28-Aug-2025", "25-Sep-2025"},
			UnderlyingValue: 2980.4,
		},
		Filtered: ChainFiltered{Data: []StrikeRow{
			{ExpiryDate: "28-Aug-2025", CE: leg(1200, 540), PE: leg(800, 310)},
			{ExpiryDate: "28-Aug-2025", CE: leg(300, 60), PE: leg(450, 95)},
			{ExpiryDate: "25-Sep-2025", CE: leg(9999, 9999), PE: leg(9999, 9999)},
		}},
	}

	capturedAt := time.Unix(1756100000, 0)
	snap, err := BuildSnapshot("RELIANCE", chain, capturedAt)
	require.NoError(t, err)

	assert.Equal(t, "RELIANCE", snap.Symbol)
	assert.Equal(t, "28-Aug-2025", snap.ExpiryDate)
	assert.Equal(t, int64(1500), snap.CallOI)
	assert.Equal(t, int64(1250), snap.PutOI)
	assert.Equal(t, int64(2750), snap.TotalOI)
	assert.Equal(t, int64(1005), snap.FuturesVolume)
	assert.Equal(t, 2980.4, snap.UnderlyingValue)
	assert.Equal(t, 1756100000.0, snap.Timestamp)
}

func TestBuildSnapshot_MissingLegsCountZero(t *testing.T) {
	chain := &OptionChain{
		Records: ChainRecords{ExpiryDates: []string{"28-Aug-2025"}, UnderlyingValue: 100.0},
		Filtered: ChainFiltered{Data: []StrikeRow{
			{ExpiryDate: "28-Aug-2025", CE: leg(700, 120)},
			{ExpiryDate: "28-Aug-2025", PE: leg(300, 45)},
			{ExpiryDate: "28-Aug-2025"},
		}},
	}

	snap, err := BuildSnapshot("INFY", chain, time.Unix(1756100000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(700), snap.CallOI)
	assert.Equal(t, int64(300), snap.PutOI)
	assert.Equal(t, int64(1000), snap.TotalOI)
	assert.Equal(t, int64(165), snap.FuturesVolume)
}

func TestBuildSnapshot_EmptyChainAllowed(t *testing.T) {
	chain := &OptionChain{
		Records: ChainRecords{ExpiryDates: []string{"28-Aug-2025"}, UnderlyingValue: 55.5},
	}

	snap, err := BuildSnapshot("TCS", chain, time.Unix(1756100000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.TotalOI)
	assert.Equal(t, int64(0), snap.FuturesVolume)
	assert.Equal(t, "28-Aug-2025", snap.ExpiryDate)
}

func TestBuildSnapshot_NoExpiries(t *testing.T) {
	chain := &OptionChain{Records: ChainRecords{ExpiryDates: nil}}

	_, err := BuildSnapshot("TCS", chain, time.Now())
	assert.True(t, errors.Is(err, models.ErrNoExpiries))
}

func TestBuildSnapshot_NilChain(t *testing.T) {
	_, err := BuildSnapshot("TCS", nil, time.Now())
	assert.True(t, errors.Is(err, models.ErrMalformedPayload))
}

func TestBuildSnapshot_SubSecondTimestamps(t *testing.T) {
	chain := &OptionChain{
		Records: ChainRecords{ExpiryDates: []string{"28-Aug-2025"}, UnderlyingValue: 10.0},
	}

	capturedAt := time.Unix(1756100000, 250_000_000)
	snap, err := BuildSnapshot("NIFTY", chain, capturedAt)
	require.NoError(t, err)
	assert.Equal(t, 1756100000.25, snap.Timestamp)
}
