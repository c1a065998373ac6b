package fx

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/metrics"
)

// RateSource fetches an FX conversion rate for a pair like "EUR/USD".
// Implemented by provider.Client.
type RateSource interface {
	FetchExchangeRate(ctx context.Context, pair string) (float64, error)
}

// Converter normalizes monetary amounts into USD. Rates are cached for the
// remainder of the run and never invalidated mid-run, so every instrument in
// one run sees the same rate for a given currency.
//
// The cache is owned by the Converter instance, not a package global:
// concurrent pipeline runs each construct their own Converter and cannot
// cross-contaminate.
type Converter struct {
	logger *zap.Logger
	source RateSource

	mu    sync.RWMutex
	rates map[string]float64 // currency → units of USD per 1 unit
}

// NewConverter constructs a Converter backed by the given rate source.
func NewConverter(logger *zap.Logger, source RateSource) *Converter {
	return &Converter{
		logger: logger,
		source: source,
		rates:  make(map[string]float64),
	}
}

// Seed stores a known <currency>/USD rate, typically harvested from a batch
// FX sub-query so later per-instrument conversions need no network call.
func (c *Converter) Seed(currency string, rate float64) {
	if rate <= 0 {
		return
	}
	c.mu.Lock()
	c.rates[normalize(currency)] = rate
	c.mu.Unlock()
}

// Known reports whether a <currency>/USD rate is already cached. USD needs no
// rate; GBX resolves through GBP.
func (c *Converter) Known(currency string) bool {
	ccy := normalize(currency)
	if ccy == "" || ccy == "USD" {
		return true
	}
	if ccy == "GBX" {
		ccy = "GBP"
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rates[ccy]
	return ok
}

// ToUSD converts amount from currency into USD.
//
// USD and zero amounts pass through untouched. GBX (pence sterling) resolves
// through the GBP rate divided by 100. Anything else resolves via the cache,
// then a direct <CCY>/USD lookup, then the inverse USD/<CCY> pair inverted.
// If every lookup fails the amount is passed through at rate 1 and a warning
// is logged: a degraded approximation, preferred over dropping the instrument.
func (c *Converter) ToUSD(ctx context.Context, amount float64, currency string) float64 {
	if amount == 0 {
		return 0
	}
	return amount * c.Rate(ctx, currency)
}

// Rate resolves the <currency>/USD conversion factor.
func (c *Converter) Rate(ctx context.Context, currency string) float64 {
	ccy := normalize(currency)
	if ccy == "" || ccy == "USD" {
		return 1
	}
	if ccy == "GBX" {
		return c.Rate(ctx, "GBP") / 100
	}

	c.mu.RLock()
	rate, ok := c.rates[ccy]
	c.mu.RUnlock()
	if ok {
		metrics.FxCacheAccess.WithLabelValues("hit").Inc()
		return rate
	}
	metrics.FxCacheAccess.WithLabelValues("miss").Inc()

	rate = c.lookup(ctx, ccy)
	c.mu.Lock()
	c.rates[ccy] = rate
	c.mu.Unlock()
	return rate
}

func (c *Converter) lookup(ctx context.Context, ccy string) float64 {
	if c.source != nil {
		rate, err := c.source.FetchExchangeRate(ctx, ccy+"/USD")
		if err == nil && rate > 0 {
			return rate
		}

		inverse, invErr := c.source.FetchExchangeRate(ctx, "USD/"+ccy)
		if invErr == nil && inverse > 0 {
			return 1 / inverse
		}

		c.logger.Warn("fx.rate_resolution_failed",
			zap.String("currency", ccy),
			zap.NamedError("direct_error", err),
			zap.NamedError("inverse_error", invErr))
	} else {
		c.logger.Warn("fx.rate_resolution_failed",
			zap.String("currency", ccy),
			zap.String("reason", "no rate source configured"))
	}

	metrics.IncError("fx", "rate_resolution_failed")
	// Degraded mode: identity rate keeps the instrument in play with its
	// local-currency figure standing in for USD.
	return 1
}

func normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
