package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/fx"
	"github.com/Checker-Finance/screener/internal/liquidity"
	"github.com/Checker-Finance/screener/internal/provider"
	"github.com/Checker-Finance/screener/internal/rate"
	"github.com/Checker-Finance/screener/pkg/model"
)

// fakeFetcher replays canned per-key payloads and records issued batches.
type fakeFetcher struct {
	responses map[string]provider.BatchItem
	batches   [][]provider.SubQuery
	failAll   error
}

func (f *fakeFetcher) Batch(_ context.Context, queries []provider.SubQuery) (provider.BatchResult, error) {
	f.batches = append(f.batches, queries)
	if f.failAll != nil {
		return provider.BatchResult{}, f.failAll
	}
	items := make(map[string]provider.BatchItem, len(queries))
	for _, q := range queries {
		if item, ok := f.responses[q.Key]; ok {
			items[q.Key] = item
		}
		// Keys without canned responses are simply absent, which the
		// merge layer treats as symbol-not-found.
	}
	return provider.NewBatchResult(items), nil
}

func ok(payload string) provider.BatchItem {
	return provider.BatchItem{Status: "success", Response: json.RawMessage(payload)}
}

func failItem(msg string) provider.BatchItem {
	return provider.BatchItem{Status: "error", Response: json.RawMessage(fmt.Sprintf(`{"code":400,"message":%q,"status":"error"}`, msg))}
}

func quotePayload(symbol string, close, volume, avgVolume float64, currency string) string {
	return fmt.Sprintf(`{"symbol":%q,"currency":%q,"close":"%v","volume":"%v","average_volume":"%v"}`,
		symbol, currency, close, volume, avgVolume)
}

func newTestOrchestrator(f Fetcher, budget int) (*Orchestrator, *fx.Converter, *rate.CreditWindow) {
	logger := zap.NewNop()
	conv := fx.NewConverter(logger, nil)
	calc := liquidity.NewCalculator(logger, conv, liquidity.DefaultCalculatorConfig())
	credits := rate.NewCreditWindow(rate.CreditConfig{Budget: budget, Window: time.Minute})
	policy := liquidity.Policy{
		ByRegion: map[model.Region]model.Threshold{
			model.RegionUS:      {MinAUM: 0, MinADV: 1_000_000},
			model.RegionEurope:  {MinAUM: 0, MinADV: 2_000_000},
			model.RegionUnknown: {MinAUM: 0, MinADV: 1_000_000},
		},
		FallbackADVFloor: 1_000_000,
	}
	return NewOrchestrator(logger, f, credits, conv, calc, policy, 30), conv, credits
}

func usInstrument(symbol string) model.Instrument {
	return model.Instrument{
		Symbol: symbol, Venue: "XNAS", Region: model.RegionUS,
		Currency: "USD", RequestSymbol: symbol,
	}
}

// ─── Partial failure isolation ───────────────────────────────────────────────

func TestPrefilter_PartialFailureIsolated(t *testing.T) {
	symbols := []string{"AAA", "BBB", "BAD", "DDD", "EEE"}
	f := &fakeFetcher{responses: map[string]provider.BatchItem{}}
	for _, s := range symbols {
		if s == "BAD" {
			f.responses["q:"+s] = failItem("symbol not found")
			continue
		}
		f.responses["q:"+s] = ok(quotePayload(s, 100, 0, 500_000, "USD"))
	}

	orch, _, _ := newTestOrchestrator(f, 100)

	instruments := make([]model.Instrument, 0, len(symbols))
	for _, s := range symbols {
		instruments = append(instruments, usInstrument(s))
	}

	out, err := orch.Prefilter(context.Background(), instruments, 5)
	require.NoError(t, err)
	require.Len(t, out, 5)

	classified := 0
	for _, si := range out {
		if si.Instrument.Symbol == "BAD" {
			assert.Equal(t, model.StatusRejected, si.Result.Status)
			assert.True(t, si.Result.Failed(model.CheckSymbolNotFound))
			continue
		}
		classified++
		assert.Equal(t, model.StatusRetained, si.Result.Status, si.Instrument.Symbol)
	}
	assert.Equal(t, 4, classified, "one bad symbol must not abort the batch")
}

// ─── Batch transport failure ─────────────────────────────────────────────────

func TestPrefilter_TransportFailureRejectsOnlyThatBatch(t *testing.T) {
	f := &fakeFetcher{failAll: errors.New("connection reset")}
	orch, _, _ := newTestOrchestrator(f, 100)

	out, err := orch.Prefilter(context.Background(), []model.Instrument{usInstrument("AAA"), usInstrument("BBB")}, 2)
	require.NoError(t, err, "a transport failure must not abort the run")
	require.Len(t, out, 2)
	for _, si := range out {
		assert.Equal(t, model.StatusRejected, si.Result.Status)
	}
}

// ─── Batching and ordering ───────────────────────────────────────────────────

func TestPrefilter_BatchSizeAndOrderPreserved(t *testing.T) {
	var symbols []string
	f := &fakeFetcher{responses: map[string]provider.BatchItem{}}
	var instruments []model.Instrument
	for i := 0; i < 7; i++ {
		s := fmt.Sprintf("SYM%d", i)
		symbols = append(symbols, s)
		f.responses["q:"+s] = ok(quotePayload(s, 10, 0, 1_000_000, "USD"))
		instruments = append(instruments, usInstrument(s))
	}

	orch, _, _ := newTestOrchestrator(f, 100)
	out, err := orch.Prefilter(context.Background(), instruments, 3)
	require.NoError(t, err)

	assert.Len(t, f.batches, 3, "7 instruments at size 3 means 3 batches")
	require.Len(t, out, 7)
	for i, si := range out {
		assert.Equal(t, symbols[i], si.Instrument.Symbol, "output order must follow source order")
	}
}

// ─── FX sub-queries ──────────────────────────────────────────────────────────

func TestPrefilter_FXSubQuerySeedsConverter(t *testing.T) {
	f := &fakeFetcher{responses: map[string]provider.BatchItem{
		"q:ABC:XPAR":  ok(quotePayload("ABC", 50, 0, 200_000, "EUR")),
		"ts:ABC:XPAR": ok(`{"values":[]}`),
		"fx:EUR":      ok(`{"symbol":"EUR/USD","rate":1.1}`),
	}}
	orch, conv, _ := newTestOrchestrator(f, 100)

	inst := model.Instrument{
		Symbol: "ABC", Venue: "XPAR", Region: model.RegionEurope,
		Currency: "EUR", RequestSymbol: "ABC:XPAR",
	}

	out, err := orch.Prefilter(context.Background(), []model.Instrument{inst}, 8)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.True(t, conv.Known("EUR"))
	assert.InDelta(t, 200_000*50*1.1, out[0].Metrics.ADVUSD, 1e-3)
	assert.Equal(t, model.StatusRetained, out[0].Result.Status)
}

func TestPrefilter_FXQueryDedupedPerBatch(t *testing.T) {
	f := &fakeFetcher{responses: map[string]provider.BatchItem{
		"q:A:XPAR": ok(quotePayload("A", 10, 0, 1000, "EUR")),
		"q:B:XPAR": ok(quotePayload("B", 10, 0, 1000, "EUR")),
		"fx:EUR":   ok(`{"symbol":"EUR/USD","rate":1.1}`),
	}}
	orch, _, _ := newTestOrchestrator(f, 100)

	mk := func(sym string) model.Instrument {
		return model.Instrument{Symbol: sym, Venue: "XPAR", Region: model.RegionEurope, Currency: "EUR", RequestSymbol: sym + ":XPAR"}
	}

	_, err := orch.Prefilter(context.Background(), []model.Instrument{mk("A"), mk("B")}, 8)
	require.NoError(t, err)

	require.Len(t, f.batches, 1)
	fxCount := 0
	for _, q := range f.batches[0] {
		if q.Spec.Endpoint == provider.EndpointExchangeRate {
			fxCount++
		}
	}
	assert.Equal(t, 1, fxCount, "one FX sub-query per distinct currency per batch")
}

// ─── Credit budget enforcement ───────────────────────────────────────────────

func TestPrefilter_CreditBudgetDelays(t *testing.T) {
	f := &fakeFetcher{responses: map[string]provider.BatchItem{}}
	var instruments []model.Instrument
	for i := 0; i < 6; i++ {
		s := fmt.Sprintf("SYM%d", i)
		f.responses["q:"+s] = ok(quotePayload(s, 10, 0, 1_000_000, "USD"))
		instruments = append(instruments, usInstrument(s))
	}

	orch, _, credits := newTestOrchestrator(f, 4)

	// Deterministic clock: sleeping rolls the window instead of blocking.
	clock := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	var sleeps []time.Duration
	credits.SetClock(func() time.Time { return clock }, func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		clock = clock.Add(d)
		return nil
	})

	// Batch size 3 costs 3 credits per request against a budget of 4: the
	// second batch cannot fit in the first window.
	out, err := orch.Prefilter(context.Background(), instruments, 3)
	require.NoError(t, err)
	assert.Len(t, out, 6)
	assert.NotEmpty(t, sleeps, "exceeding the window budget must delay, not burst")
}

// ─── Enrichment ──────────────────────────────────────────────────────────────

func TestEnrich_ScoresAndSecondaryAUM(t *testing.T) {
	f := &fakeFetcher{responses: map[string]provider.BatchItem{
		"s:AAA": ok(`{"currency":"USD","net_assets":"250000000","return_on_equity":"25","total_debt_to_equity":"0.4"}`),
		"s:BBB": failItem("no statistics"),
	}}
	orch, _, _ := newTestOrchestrator(f, 100)

	retained := []model.ScreenedInstrument{
		{Instrument: usInstrument("AAA"), Result: model.FilterResult{Status: model.StatusRetained}},
		{Instrument: usInstrument("BBB"), Result: model.FilterResult{Status: model.StatusRetained}},
	}

	out, err := orch.Enrich(context.Background(), retained, 25, func(roe, de *float64) model.QualityScore {
		require.NotNil(t, roe)
		require.NotNil(t, de)
		score := 100
		return model.QualityScore{Score: &score, Grade: "A"}
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	aaa := out[0]
	require.NotNil(t, aaa.Fundamentals)
	assert.InDelta(t, 25, *aaa.Fundamentals.ReturnOnEquity, 1e-9)
	assert.Equal(t, model.AUMSourceSecondary, aaa.Metrics.AUMSource)
	assert.InDelta(t, 250_000_000, aaa.Metrics.AUMUSD, 1)
	require.NotNil(t, aaa.Quality)
	assert.Equal(t, "A", aaa.Quality.Grade)

	// Statistics failure degrades, never rejects a survivor.
	bbb := out[1]
	assert.Nil(t, bbb.Fundamentals)
	assert.Nil(t, bbb.Quality)
	assert.Equal(t, model.StatusRetained, bbb.Result.Status)
}
