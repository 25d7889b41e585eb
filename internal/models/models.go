package models

// Snapshot is one aggregated option-chain reading for one symbol: the summed
// call/put open interest and traded volume for the nearest expiry, plus the
// underlying spot price at capture time.
type Snapshot struct {
	Symbol          string  `json:"symbol"`
	ExpiryDate      string  `json:"expiry_date"`
	TotalOI         int64   `json:"total_oi"`
	CallOI          int64   `json:"call_oi"`
	PutOI           int64   `json:"put_oi"`
	FuturesVolume   int64   `json:"futures_volume"`
	UnderlyingValue float64 `json:"underlying_value"`
	Timestamp       float64 `json:"timestamp"` // Unix seconds
}

// Validate validates a Snapshot
func (s *Snapshot) Validate() error {
	if s.Symbol == "" {
		return ErrInvalidSymbol
	}
	if s.CallOI < 0 || s.PutOI < 0 || s.TotalOI < 0 {
		return ErrInvalidOI
	}
	if s.TotalOI != s.CallOI+s.PutOI {
		return ErrOIMismatch
	}
	if s.FuturesVolume < 0 {
		return ErrInvalidVolume
	}
	if s.UnderlyingValue < 0 {
		return ErrInvalidPrice
	}
	if s.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Analysis holds the derived per-symbol metrics, recomputed wholesale on
// every ingestion cycle. All percentage and ratio fields are rounded to two
// decimal places.
type Analysis struct {
	Symbol              string  `json:"symbol"`
	OIChangePct         float64 `json:"oi_change_pct"`
	PriceChangePct      float64 `json:"price_change_pct"`
	VolumeChangePct     float64 `json:"volume_change_pct"`
	OIChangeLastHourPct float64 `json:"oi_change_last_hour_pct"`
	PCRNow              float64 `json:"pcr_now"`
	LastUpdated         float64 `json:"last_updated"`
	LiveOIChangePct     float64 `json:"live_oi_change_pct"`
}

// StockDetail is the drill-down view for a single symbol. The put/call
// change percentages are computed against the baseline at request time.
type StockDetail struct {
	Symbol             string  `json:"symbol"`
	LastSessionTotalOI int64   `json:"last_session_total_oi"`
	CurrentTotalOI     int64   `json:"current_total_oi"`
	OIChangePct        float64 `json:"oi_change_pct"`
	PutOIChangePct     float64 `json:"put_oi_change_pct"`
	CallOIChangePct    float64 `json:"call_oi_change_pct"`
	PCRNow             float64 `json:"pcr_now"`
	LastUpdated        float64 `json:"last_updated"`
}

// Settings holds the two user-tunable thresholds. VariableA gates inclusion
// in the dashboard list, VariableB gates live alerts. Updates replace the
// whole object; values are not range-checked.
type Settings struct {
	VariableA float64 `json:"variable_a"`
	VariableB float64 `json:"variable_b"`
}

// DefaultSettings returns the thresholds used until the first settings update
func DefaultSettings() Settings {
	return Settings{
		VariableA: 3.0,
		VariableB: 1.0,
	}
}

// LiveAlert is pushed to stream subscribers when a symbol's tick-over-tick
// OI change crosses the VariableB threshold.
type LiveAlert struct {
	ID              string  `json:"id"`
	Symbol          string  `json:"symbol"`
	LiveOIChangePct float64 `json:"live_oi_change_pct"`
	TotalOI         int64   `json:"total_oi"`
	PCRNow          float64 `json:"pcr_now"`
	Threshold       float64 `json:"threshold"`
	Timestamp       float64 `json:"timestamp"`
}

// Validate validates a LiveAlert
func (a *LiveAlert) Validate() error {
	if a.ID == "" {
		return ErrInvalidAlertID
	}
	if a.Symbol == "" {
		return ErrInvalidSymbol
	}
	if a.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// StatusReport is the operator-facing processing status payload
type StatusReport struct {
	Status               string  `json:"status"`
	LastProcessedCount   int     `json:"last_processed_count"`
	LastUpdatedTimestamp float64 `json:"last_updated_timestamp"`
	VariableA            float64 `json:"variable_a"`
	VariableB            float64 `json:"variable_b"`
	Note                 string  `json:"note"`
}

// TriggerResult reports the outcome of a manually triggered ingestion cycle
type TriggerResult struct {
	Status          string  `json:"status"`
	Message         string  `json:"message"`
	ProcessedStocks int     `json:"processed_stocks"`
	Timestamp       float64 `json:"timestamp"`
}
