package model

// Region is a fixed geographic bucket for threshold policy resolution.
type Region string

const (
	RegionUS      Region = "US"
	RegionEurope  Region = "EUROPE"
	RegionAsia    Region = "ASIA"
	RegionLatam   Region = "LATAM"
	RegionAfrica  Region = "AFRICA"
	RegionOceania Region = "OCEANIA"
	RegionUnknown Region = "UNKNOWN"
)

// Instrument is one security being evaluated by the screener.
// Venue, Region and RequestSymbol are derived by refdata.Resolve; price and
// volume are filled from provider quotes during the pre-filter phase.
// An Instrument is never mutated after it has been written to a snapshot.
type Instrument struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Country       string  `json:"country,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	Venue         string  `json:"venue"`
	Region        Region  `json:"region"`
	Currency      string  `json:"currency"`
	Sector        string  `json:"sector,omitempty"`
	AssetClass    string  `json:"asset_class,omitempty"`
	RequestSymbol string  `json:"-"`
	Price         float64 `json:"price"`
	RawVolume     float64 `json:"raw_volume"`
}

// VolumeSource identifies which fallback step produced the effective volume.
type VolumeSource string

const (
	VolumeSourceAverage    VolumeSource = "average_volume"
	VolumeSourceTimeSeries VolumeSource = "time_series"
	VolumeSourceDiscounted VolumeSource = "single_day_discounted"
	VolumeSourceNone       VolumeSource = "none"
)

// AUMSource identifies which fallback step produced the USD AUM figure.
type AUMSource string

const (
	AUMSourceNetAssets AUMSource = "net_assets"
	AUMSourceMarketCap AUMSource = "market_cap"
	AUMSourceSecondary AUMSource = "secondary_net_assets"
	AUMSourceNone      AUMSource = "none"
)

// LiquidityMetrics holds the USD-normalized liquidity figures derived for an
// instrument. ADVUSD and AUMUSD are always >= 0 and never NaN; absent inputs
// coerce to zero.
type LiquidityMetrics struct {
	EffectiveVolume float64      `json:"effective_volume"`
	VolumeSource    VolumeSource `json:"volume_source"`
	ADVUSD          float64      `json:"adv_usd"`
	AUMUSD          float64      `json:"aum_usd"`
	AUMSource       AUMSource    `json:"aum_source"`
	FxRate          float64      `json:"fx_rate"`
}

// Check names a specific screening check an instrument can fail.
type Check string

const (
	CheckAUM            Check = "aum"
	CheckLiquidity      Check = "liquidity"
	CheckSymbolNotFound Check = "symbolNotFound"
)

// FilterStatus is the outcome of threshold classification.
type FilterStatus string

const (
	StatusRetained FilterStatus = "retained"
	StatusRejected FilterStatus = "rejected"
)

// FilterResult records the classification outcome and, when rejected, the
// specific failed checks for diagnostics.
type FilterResult struct {
	Status       FilterStatus `json:"status"`
	FailedChecks []Check      `json:"failed_checks,omitempty"`
}

// Rejected reports whether the result is a rejection.
func (r FilterResult) Rejected() bool { return r.Status == StatusRejected }

// Failed reports whether the given check is among the failed ones.
func (r FilterResult) Failed(c Check) bool {
	for _, fc := range r.FailedChecks {
		if fc == c {
			return true
		}
	}
	return false
}

// Threshold holds minimum AUM and ADV requirements in USD.
type Threshold struct {
	MinAUM float64 `json:"min_aum"`
	MinADV float64 `json:"min_adv"`
}

// Fundamentals holds the supplementary ratios fetched during enrichment.
// Pointers distinguish "provider omitted the field" from a true zero.
type Fundamentals struct {
	ReturnOnEquity    *float64 `json:"return_on_equity,omitempty"`
	DebtToEquity      *float64 `json:"debt_to_equity,omitempty"`
	PERatio           *float64 `json:"pe_ratio,omitempty"`
	PBRatio           *float64 `json:"pb_ratio,omitempty"`
	NetAssets         *float64 `json:"net_assets,omitempty"`
	NetAssetsCurrency string   `json:"net_assets_currency,omitempty"`
}

// QualityScore is a normalized 0-100 fundamental quality score with letter
// grade. Score is nil when no usable inputs were available.
type QualityScore struct {
	Score *int   `json:"score"`
	Grade string `json:"grade,omitempty"`
}

// ScreenedInstrument is an instrument together with everything the pipeline
// derived for it.
type ScreenedInstrument struct {
	Instrument   Instrument       `json:"instrument"`
	Metrics      LiquidityMetrics `json:"metrics"`
	Result       FilterResult     `json:"result"`
	Fundamentals *Fundamentals    `json:"fundamentals,omitempty"`
	Quality      *QualityScore    `json:"quality,omitempty"`
}
