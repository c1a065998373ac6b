package provider

import (
	"bytes"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSymbolNotFound is returned when the provider reports an error for a
// specific sub-query (unknown symbol, delisted instrument). It rejects the
// instrument, never the batch.
var ErrSymbolNotFound = errors.New("provider: symbol not found")

// Number is a float64 that tolerates the provider's habit of encoding
// numerics as strings ("123.45"), bare numbers, null, or "" interchangeably.
// Absent and unparsable values decode to zero; optional fields use *Number so
// nil still means "provider omitted the field".
type Number float64

// UnmarshalJSON decodes quoted or bare numerics through decimal to avoid
// locale/precision surprises in monetary fields.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.EqualFold(b, []byte("n/a")) {
		*n = 0
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(d.InexactFloat64())
	return nil
}

// Float returns the underlying float64.
func (n Number) Float() float64 { return float64(n) }

// FloatPtr returns the pointed-to value as a *float64, nil preserved.
func (n *Number) FloatPtr() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// Quote is the provider's quote payload for one instrument.
type Quote struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Exchange      string `json:"exchange"`
	MICCode       string `json:"mic_code"`
	Currency      string `json:"currency"`
	Close         Number `json:"close"`
	Change        Number `json:"change"`
	PercentChange Number `json:"percent_change"`
	Volume        Number `json:"volume"`
	AverageVolume Number `json:"average_volume"`
	MarketCap     Number `json:"market_capitalization"`
}

// Statistics is the provider's fundamentals/statistics payload. Ratio fields
// are pointers: funds routinely lack them and the scorer must see the
// difference between missing and zero.
type Statistics struct {
	Currency       string  `json:"currency"`
	NetAssets      Number  `json:"net_assets"`
	MarketCap      Number  `json:"market_capitalization"`
	ReturnOnEquity *Number `json:"return_on_equity"`
	DebtToEquity   *Number `json:"total_debt_to_equity"`
	PERatio        *Number `json:"pe_ratio"`
	PBRatio        *Number `json:"pb_ratio"`
}

// Candle is one bar of a daily time series; only volume is consumed here.
type Candle struct {
	Datetime string `json:"datetime"`
	Volume   Number `json:"volume"`
}

// TimeSeries is the provider's daily time-series payload.
type TimeSeries struct {
	Values []Candle `json:"values"`
}

// AverageVolume computes the mean daily volume over up to n most recent bars.
// Returns 0 when the series is empty.
func (ts *TimeSeries) AverageVolume(n int) float64 {
	if ts == nil || len(ts.Values) == 0 || n <= 0 {
		return 0
	}
	if n > len(ts.Values) {
		n = len(ts.Values)
	}
	var sum float64
	for _, c := range ts.Values[:n] {
		sum += c.Volume.Float()
	}
	return sum / float64(n)
}

// ExchangeRate is the provider's FX rate payload.
type ExchangeRate struct {
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

// errorResponse is the provider's per-request and per-sub-query error shape.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
