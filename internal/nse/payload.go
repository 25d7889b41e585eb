package nse

// OptionChain is the upstream option-chain response, reduced to the fields
// the tracker consumes. The upstream payload carries far more (greeks,
// bid/ask depth, per-strike chains for every expiry); anything not listed
// here is ignored on decode.
type OptionChain struct {
	Records  ChainRecords  `json:"records"`
	Filtered ChainFiltered `json:"filtered"`
}

// ChainRecords holds the chain-wide fields: the ordered expiry labels and
// the underlying spot price.
type ChainRecords struct {
	ExpiryDates     []string `json:"expiryDates"`
	UnderlyingValue float64  `json:"underlyingValue"`
	Timestamp       string   `json:"timestamp"`
}

// ChainFiltered holds the per-strike rows the upstream has pre-filtered to
// the near expiries.
type ChainFiltered struct {
	Data []StrikeRow `json:"data"`
}

// StrikeRow is one strike's row for one expiry. Either leg may be absent.
type StrikeRow struct {
	StrikePrice float64    `json:"strikePrice"`
	ExpiryDate  string     `json:"expiryDate"`
	CE          *OptionLeg `json:"CE,omitempty"`
	PE          *OptionLeg `json:"PE,omitempty"`
}

// OptionLeg is one side (call or put) of a strike row. Missing numeric
// fields decode to zero, which is the aggregation's default.
type OptionLeg struct {
	OpenInterest      float64 `json:"openInterest"`
	ChangeInOI        float64 `json:"changeinOpenInterest"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	LastPrice         float64 `json:"lastPrice"`
}
