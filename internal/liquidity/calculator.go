package liquidity

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/fx"
	"github.com/Checker-Finance/screener/internal/provider"
	"github.com/Checker-Finance/screener/internal/refdata"
	"github.com/Checker-Finance/screener/pkg/model"
)

// CalculatorConfig carries the tunable constants of the ADV computation.
// SingleDayDiscount is an empirical haircut applied when only a single day of
// volume is available; it has no stated derivation and is therefore
// configuration rather than a hard-coded law.
type CalculatorConfig struct {
	SingleDayDiscount float64
	TimeSeriesWindow  int
}

// DefaultCalculatorConfig returns the constants carried over from the
// previous generation of refresh scripts.
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		SingleDayDiscount: 0.8,
		TimeSeriesWindow:  30,
	}
}

// Calculator derives USD liquidity metrics for instruments.
type Calculator struct {
	logger *zap.Logger
	conv   *fx.Converter
	cfg    CalculatorConfig
}

// NewCalculator constructs a Calculator.
func NewCalculator(logger *zap.Logger, conv *fx.Converter, cfg CalculatorConfig) *Calculator {
	if cfg.SingleDayDiscount <= 0 {
		cfg.SingleDayDiscount = 0.8
	}
	if cfg.TimeSeriesWindow <= 0 {
		cfg.TimeSeriesWindow = 30
	}
	return &Calculator{logger: logger, conv: conv, cfg: cfg}
}

// volumeStrategy is one step of the effective-volume fallback chain. The
// chain is an explicit ordered list on purpose: the order encodes data-quality
// preferences and must not be collapsed.
type volumeStrategy struct {
	source model.VolumeSource
	// reason documents why the step exists; surfaced in debug logs.
	reason string
	value  func() float64
}

// ComputeADV computes USD liquidity metrics for one instrument from its quote
// and optional daily time series and statistics. Absent inputs coerce to
// zero; the results are always finite and non-negative.
func (c *Calculator) ComputeADV(
	ctx context.Context,
	inst model.Instrument,
	quote *provider.Quote,
	series *provider.TimeSeries,
	stats *provider.Statistics,
) model.LiquidityMetrics {
	if quote == nil {
		quote = &provider.Quote{}
	}

	price := quote.Close.Float()
	if price <= 0 {
		price = inst.Price
	}
	fxRate := c.conv.Rate(ctx, inst.Currency)

	strategies := []volumeStrategy{
		{
			source: model.VolumeSourceAverage,
			reason: "provider-reported 30-day average is the cleanest signal",
			value:  func() float64 { return quote.AverageVolume.Float() },
		},
		{
			source: model.VolumeSourceTimeSeries,
			reason: "thin non-primary venues often report zero average volume; derive it locally",
			value: func() float64 {
				if refdata.PrimaryVenue(inst.Venue) {
					return 0
				}
				return series.AverageVolume(c.cfg.TimeSeriesWindow)
			},
		},
		{
			source: model.VolumeSourceDiscounted,
			reason: "last resort: single-day volume, discounted because one day overstates a trend",
			value:  func() float64 { return quote.Volume.Float() * c.cfg.SingleDayDiscount },
		},
	}

	effectiveVolume := 0.0
	volumeSource := model.VolumeSourceNone
	for _, s := range strategies {
		if v := sanitize(s.value()); v > 0 {
			effectiveVolume = v
			volumeSource = s.source
			c.logger.Debug("liquidity.volume_source",
				zap.String("symbol", inst.Symbol),
				zap.String("source", string(s.source)),
				zap.String("reason", s.reason),
				zap.Float64("volume", v))
			break
		}
	}

	aumUSD, aumSource := c.resolveAUM(ctx, inst, quote, stats)

	return model.LiquidityMetrics{
		EffectiveVolume: effectiveVolume,
		VolumeSource:    volumeSource,
		ADVUSD:          sanitize(effectiveVolume * price * fxRate),
		AUMUSD:          aumUSD,
		AUMSource:       aumSource,
		FxRate:          fxRate,
	}
}

// resolveAUM walks the AUM fallback chain. Each step converts through the
// Converter with its own reported currency: fallback sources do not share a
// currency and must never be assumed to.
func (c *Calculator) resolveAUM(
	ctx context.Context,
	inst model.Instrument,
	quote *provider.Quote,
	stats *provider.Statistics,
) (float64, model.AUMSource) {
	if stats != nil && stats.NetAssets.Float() > 0 {
		ccy := stats.Currency
		if ccy == "" {
			ccy = inst.Currency
		}
		return sanitize(c.conv.ToUSD(ctx, stats.NetAssets.Float(), ccy)), model.AUMSourceNetAssets
	}

	if quote.MarketCap.Float() > 0 {
		ccy := quote.Currency
		if ccy == "" {
			ccy = inst.Currency
		}
		return sanitize(c.conv.ToUSD(ctx, quote.MarketCap.Float(), ccy)), model.AUMSourceMarketCap
	}

	return 0, model.AUMSourceNone
}

// ApplySecondaryAUM fills AUM from a secondary source's reported net assets
// when the primary round left it at zero. Used during enrichment, where the
// statistics sub-query may carry figures the quote round lacked.
func (c *Calculator) ApplySecondaryAUM(ctx context.Context, m *model.LiquidityMetrics, netAssets float64, currency string) {
	if m == nil || m.AUMUSD > 0 || netAssets <= 0 {
		return
	}
	m.AUMUSD = sanitize(c.conv.ToUSD(ctx, netAssets, currency))
	m.AUMSource = model.AUMSourceSecondary
}

// sanitize clamps NaN, infinities and negatives to 0 so metrics stay
// comparable against thresholds.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
