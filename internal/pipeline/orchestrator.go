package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/fx"
	"github.com/Checker-Finance/screener/internal/liquidity"
	"github.com/Checker-Finance/screener/internal/metrics"
	"github.com/Checker-Finance/screener/internal/provider"
	"github.com/Checker-Finance/screener/internal/rate"
	"github.com/Checker-Finance/screener/internal/refdata"
	"github.com/Checker-Finance/screener/pkg/model"
)

// Fetcher issues one combined provider request. Satisfied by provider.Client.
type Fetcher interface {
	Batch(ctx context.Context, queries []provider.SubQuery) (provider.BatchResult, error)
}

// Orchestrator drives instruments through the provider in fixed-size batches.
// One combined request resolves a whole batch; a rolling credit budget is
// reserved before every request. Batches run strictly in source order, so
// output order is deterministic for deterministic input.
type Orchestrator struct {
	logger  *zap.Logger
	fetcher Fetcher
	credits *rate.CreditWindow
	conv    *fx.Converter
	calc    *liquidity.Calculator
	policy  liquidity.Policy

	// Bars requested for the time-series volume fallback.
	seriesBars int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	logger *zap.Logger,
	fetcher Fetcher,
	credits *rate.CreditWindow,
	conv *fx.Converter,
	calc *liquidity.Calculator,
	policy liquidity.Policy,
	seriesBars int,
) *Orchestrator {
	if seriesBars <= 0 {
		seriesBars = 30
	}
	return &Orchestrator{
		logger:     logger,
		fetcher:    fetcher,
		credits:    credits,
		conv:       conv,
		calc:       calc,
		policy:     policy,
		seriesBars: seriesBars,
	}
}

func quoteKey(sym string) string  { return "q:" + sym }
func statsKey(sym string) string  { return "s:" + sym }
func seriesKey(sym string) string { return "ts:" + sym }
func fxKey(ccy string) string     { return "fx:" + ccy }

// batches partitions items into fixed-size groups, preserving order.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Prefilter runs the first pipeline phase over the whole universe: quote (and
// where needed, FX and time-series) sub-queries per batch, then liquidity
// computation and threshold classification per instrument.
//
// Per-instrument failures turn into symbolNotFound rejections; a failed batch
// request rejects only the batch's own instruments. Only context cancellation
// aborts the run.
func (o *Orchestrator) Prefilter(ctx context.Context, instruments []model.Instrument, batchSize int) ([]model.ScreenedInstrument, error) {
	out := make([]model.ScreenedInstrument, 0, len(instruments))

	for _, b := range batches(len(instruments), batchSize) {
		group := instruments[b[0]:b[1]]

		queries := o.buildPrefilterQueries(group)
		if err := o.credits.Reserve(ctx, len(queries)); err != nil {
			return nil, err
		}
		metrics.CreditsSpentTotal.Add(float64(len(queries)))

		result, err := o.fetcher.Batch(ctx, queries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transport failure: this batch's instruments are lost for
			// the round, the run continues with the next batch.
			o.logger.Warn("pipeline.batch_transport_failed",
				zap.Int("batch_start", b[0]),
				zap.Int("batch_size", len(group)),
				zap.Error(err))
			metrics.IncError("pipeline", "batch_transport")
			for _, inst := range group {
				out = append(out, model.ScreenedInstrument{
					Instrument: inst,
					Result:     liquidity.RejectNotFound(),
				})
			}
			continue
		}

		o.seedRates(result, queries)

		for _, inst := range group {
			out = append(out, o.classifyOne(ctx, inst, result))
		}
	}

	return out, nil
}

// buildPrefilterQueries assembles the typed sub-query list for one batch:
// one quote per instrument, one FX lookup per distinct unresolved currency,
// and a daily series for non-primary venues to back the volume fallback.
func (o *Orchestrator) buildPrefilterQueries(group []model.Instrument) []provider.SubQuery {
	var queries []provider.SubQuery
	seenFX := map[string]bool{}

	for _, inst := range group {
		queries = append(queries, provider.SubQuery{
			Key:  quoteKey(inst.RequestSymbol),
			Spec: provider.QuoteSpec(inst.RequestSymbol),
		})

		if !refdata.PrimaryVenue(inst.Venue) {
			queries = append(queries, provider.SubQuery{
				Key:  seriesKey(inst.RequestSymbol),
				Spec: provider.TimeSeriesSpec(inst.RequestSymbol, o.seriesBars),
			})
		}

		ccy := strings.ToUpper(strings.TrimSpace(inst.Currency))
		if ccy == "GBX" {
			ccy = "GBP"
		}
		if ccy != "" && ccy != "USD" && !seenFX[ccy] && !o.conv.Known(ccy) {
			seenFX[ccy] = true
			queries = append(queries, provider.SubQuery{
				Key:  fxKey(ccy),
				Spec: provider.ExchangeRateSpec(ccy + "/USD"),
			})
		}
	}
	return queries
}

// seedRates harvests FX sub-query results into the run-wide converter cache.
func (o *Orchestrator) seedRates(result provider.BatchResult, queries []provider.SubQuery) {
	for _, q := range queries {
		if !strings.HasPrefix(q.Key, "fx:") {
			continue
		}
		er, err := result.ExchangeRate(q.Key)
		if err != nil {
			// Leave it to the converter's own lookup/fallback chain.
			o.logger.Warn("pipeline.fx_subquery_failed",
				zap.String("key", q.Key),
				zap.Error(err))
			continue
		}
		o.conv.Seed(strings.TrimPrefix(q.Key, "fx:"), er.Rate)
	}
}

func (o *Orchestrator) classifyOne(ctx context.Context, inst model.Instrument, result provider.BatchResult) model.ScreenedInstrument {
	quote, err := result.Quote(quoteKey(inst.RequestSymbol))
	if err != nil {
		o.logger.Info("pipeline.symbol_not_found",
			zap.String("symbol", inst.Symbol),
			zap.String("request_symbol", inst.RequestSymbol),
			zap.String("venue", inst.Venue),
			zap.Error(err))
		metrics.RejectionsByReason.WithLabelValues(string(model.CheckSymbolNotFound)).Inc()
		metrics.InstrumentsClassified.WithLabelValues(string(model.StatusRejected), string(inst.Region)).Inc()
		return model.ScreenedInstrument{Instrument: inst, Result: liquidity.RejectNotFound()}
	}

	if quote.Close.Float() > 0 {
		inst.Price = quote.Close.Float()
	}
	if quote.Volume.Float() > 0 {
		inst.RawVolume = quote.Volume.Float()
	}

	var series *provider.TimeSeries
	if !refdata.PrimaryVenue(inst.Venue) {
		if ts, tsErr := result.TimeSeries(seriesKey(inst.RequestSymbol)); tsErr == nil {
			series = ts
		}
	}

	m := o.calc.ComputeADV(ctx, inst, quote, series, nil)
	fr := liquidity.Classify(inst, m, o.policy)

	metrics.InstrumentsClassified.WithLabelValues(string(fr.Status), string(inst.Region)).Inc()
	for _, c := range fr.FailedChecks {
		metrics.RejectionsByReason.WithLabelValues(string(c)).Inc()
	}

	return model.ScreenedInstrument{Instrument: inst, Metrics: m, Result: fr}
}

// Enrich runs the second pipeline phase over pre-filter survivors only:
// statistics sub-queries for fundamentals, the secondary AUM fallback, and
// quality scoring. Enrichment failures degrade (nil fundamentals/quality)
// rather than reject: the instrument already earned its place in phase one.
func (o *Orchestrator) Enrich(
	ctx context.Context,
	retained []model.ScreenedInstrument,
	batchSize int,
	score func(roe, de *float64) model.QualityScore,
) ([]model.ScreenedInstrument, error) {
	out := make([]model.ScreenedInstrument, 0, len(retained))

	for _, b := range batches(len(retained), batchSize) {
		group := retained[b[0]:b[1]]

		queries := make([]provider.SubQuery, 0, len(group))
		for _, si := range group {
			queries = append(queries, provider.SubQuery{
				Key:  statsKey(si.Instrument.RequestSymbol),
				Spec: provider.StatisticsSpec(si.Instrument.RequestSymbol),
			})
		}

		if err := o.credits.Reserve(ctx, len(queries)); err != nil {
			return nil, err
		}
		metrics.CreditsSpentTotal.Add(float64(len(queries)))

		result, err := o.fetcher.Batch(ctx, queries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("pipeline.enrich_batch_failed",
				zap.Int("batch_start", b[0]),
				zap.Error(err))
			metrics.IncError("pipeline", "enrich_transport")
			out = append(out, group...)
			continue
		}

		for _, si := range group {
			out = append(out, o.enrichOne(ctx, si, result, score))
		}
	}

	return out, nil
}

func (o *Orchestrator) enrichOne(
	ctx context.Context,
	si model.ScreenedInstrument,
	result provider.BatchResult,
	score func(roe, de *float64) model.QualityScore,
) model.ScreenedInstrument {
	stats, err := result.Statistics(statsKey(si.Instrument.RequestSymbol))
	if err != nil {
		o.logger.Debug("pipeline.statistics_missing",
			zap.String("symbol", si.Instrument.Symbol),
			zap.Error(err))
		return si
	}

	f := &model.Fundamentals{
		ReturnOnEquity:    stats.ReturnOnEquity.FloatPtr(),
		DebtToEquity:      stats.DebtToEquity.FloatPtr(),
		PERatio:           stats.PERatio.FloatPtr(),
		PBRatio:           stats.PBRatio.FloatPtr(),
		NetAssetsCurrency: stats.Currency,
	}
	if na := stats.NetAssets.Float(); na > 0 {
		f.NetAssets = &na
	}
	si.Fundamentals = f

	ccy := stats.Currency
	if ccy == "" {
		ccy = si.Instrument.Currency
	}
	o.calc.ApplySecondaryAUM(ctx, &si.Metrics, stats.NetAssets.Float(), ccy)

	q := score(f.ReturnOnEquity, f.DebtToEquity)
	si.Quality = &q

	return si
}
