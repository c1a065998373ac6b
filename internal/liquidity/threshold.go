package liquidity

import (
	"strings"

	"github.com/Checker-Finance/screener/pkg/model"
)

// Policy is the screening threshold policy: region defaults, per-venue
// overrides, and the zero-AUM fallback floor.
type Policy struct {
	ByRegion map[model.Region]model.Threshold
	ByVenue  map[string]model.Threshold

	// FallbackADVFloor admits instruments whose AUM the provider omitted
	// entirely (reported as zero) as long as traded dollar volume clears
	// this floor. Some fund structures simply never report AUM; treating
	// zero as an automatic failure would systematically exclude
	// otherwise-liquid instruments.
	FallbackADVFloor float64
}

// DefaultPolicy returns the screening thresholds in USD. Venue overrides beat
// region defaults.
func DefaultPolicy(fallbackADVFloor float64) Policy {
	return Policy{
		ByRegion: map[model.Region]model.Threshold{
			model.RegionUS:      {MinAUM: 500_000_000, MinADV: 10_000_000},
			model.RegionEurope:  {MinAUM: 200_000_000, MinADV: 2_000_000},
			model.RegionAsia:    {MinAUM: 150_000_000, MinADV: 1_500_000},
			model.RegionLatam:   {MinAUM: 50_000_000, MinADV: 500_000},
			model.RegionAfrica:  {MinAUM: 25_000_000, MinADV: 250_000},
			model.RegionOceania: {MinAUM: 100_000_000, MinADV: 1_000_000},
			model.RegionUnknown: {MinAUM: 500_000_000, MinADV: 10_000_000},
		},
		ByVenue: map[string]model.Threshold{
			// LSE lists many small UCITS share classes; volume matters
			// more than fund size there.
			"XLON": {MinAUM: 100_000_000, MinADV: 2_000_000},
			// B3 ETFs are few and dominated by local flows.
			"BVMF": {MinAUM: 25_000_000, MinADV: 400_000},
		},
		FallbackADVFloor: fallbackADVFloor,
	}
}

// Effective resolves the threshold for a venue/region pair: the
// venue-specific entry when present, else the region default.
func (p Policy) Effective(venue string, region model.Region) model.Threshold {
	if t, ok := p.ByVenue[strings.ToUpper(venue)]; ok {
		return t
	}
	if t, ok := p.ByRegion[region]; ok {
		return t
	}
	return p.ByRegion[model.RegionUnknown]
}

// Classify applies the effective threshold to an instrument's liquidity
// metrics. Retained iff both the AUM and ADV checks pass; rejections carry
// the specific failed checks for diagnostics.
func Classify(inst model.Instrument, metrics model.LiquidityMetrics, policy Policy) model.FilterResult {
	threshold := policy.Effective(inst.Venue, inst.Region)

	passAUM := metrics.AUMUSD >= threshold.MinAUM ||
		(metrics.AUMUSD == 0 && metrics.ADVUSD >= policy.FallbackADVFloor)
	passADV := metrics.ADVUSD >= threshold.MinADV

	if passAUM && passADV {
		return model.FilterResult{Status: model.StatusRetained}
	}

	var failed []model.Check
	if !passAUM {
		failed = append(failed, model.CheckAUM)
	}
	if !passADV {
		failed = append(failed, model.CheckLiquidity)
	}
	return model.FilterResult{Status: model.StatusRejected, FailedChecks: failed}
}

// RejectNotFound classifies an instrument whose quote lookup itself failed.
// Metric computation is bypassed entirely.
func RejectNotFound() model.FilterResult {
	return model.FilterResult{
		Status:       model.StatusRejected,
		FailedChecks: []model.Check{model.CheckSymbolNotFound},
	}
}
