package models

import "errors"

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidOI        = errors.New("invalid open interest")
	ErrOIMismatch       = errors.New("total OI does not equal call OI plus put OI")
	ErrInvalidVolume    = errors.New("invalid volume")
	ErrInvalidAlertID   = errors.New("invalid alert ID")
	ErrNoExpiries       = errors.New("option chain lists no expiry dates")
	ErrMalformedPayload = errors.New("malformed option chain payload")
	ErrUpstreamStatus   = errors.New("unexpected upstream response status")
	ErrSymbolNotFound   = errors.New("symbol not found")
)
