package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/internal/httpclient"
	"github.com/Checker-Finance/screener/internal/metrics"
)

// Endpoint names understood by the provider's batch API.
const (
	EndpointQuote        = "quote"
	EndpointStatistics   = "statistics"
	EndpointTimeSeries   = "time_series"
	EndpointExchangeRate = "exchange_rate"
)

// RequestSpec describes one provider endpoint call.
type RequestSpec struct {
	Endpoint string
	Params   url.Values
}

// SubQuery pairs a caller-chosen correlation key with a request spec. The key
// is how batch responses are merged back onto their originating instruments,
// so callers must keep keys unique within one batch.
type SubQuery struct {
	Key  string
	Spec RequestSpec
}

// QuoteSpec builds a quote request for a provider request symbol.
func QuoteSpec(requestSymbol string) RequestSpec {
	return RequestSpec{Endpoint: EndpointQuote, Params: url.Values{"symbol": {requestSymbol}}}
}

// StatisticsSpec builds a statistics request for a provider request symbol.
func StatisticsSpec(requestSymbol string) RequestSpec {
	return RequestSpec{Endpoint: EndpointStatistics, Params: url.Values{"symbol": {requestSymbol}}}
}

// TimeSeriesSpec builds a daily time-series request covering the trailing
// outputSize bars.
func TimeSeriesSpec(requestSymbol string, outputSize int) RequestSpec {
	return RequestSpec{Endpoint: EndpointTimeSeries, Params: url.Values{
		"symbol":     {requestSymbol},
		"interval":   {"1day"},
		"outputsize": {fmt.Sprintf("%d", outputSize)},
	}}
}

// ExchangeRateSpec builds an FX rate request for a pair like "EUR/USD".
func ExchangeRateSpec(pair string) RequestSpec {
	return RequestSpec{Endpoint: EndpointExchangeRate, Params: url.Values{"symbol": {pair}}}
}

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the batched market-data provider. One combined request
// resolves a whole batch of sub-queries; this is what keeps credit consumption
// proportional to instruments rather than round-trips.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	cfg    Config
}

// NewClient constructs a provider HTTP client.
func NewClient(logger *zap.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	exec := httpclient.New(logger, httpClient, 2, "marketdata", func(status int, body []byte) error {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("marketdata.client_error",
			zap.Int("status", status),
			zap.Int("code", errResp.Code),
			zap.String("message", errResp.Message))

		msg := errResp.Message
		if msg == "" {
			msg = string(body)
		}
		return fmt.Errorf("provider returned %d: %s", status, msg)
	})
	return &Client{logger: logger, exec: exec, cfg: cfg}
}

// batchRequestItem is one entry of the combined batch payload.
type batchRequestItem struct {
	URL string `json:"url"`
}

// BatchItem is one entry of the combined batch response.
type BatchItem struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type batchEnvelope struct {
	Code   int                  `json:"code"`
	Status string               `json:"status"`
	Data   map[string]BatchItem `json:"data"`
}

// BatchResult holds per-key outcomes of one combined request.
type BatchResult struct {
	items map[string]BatchItem
}

// NewBatchResult wraps raw per-key payloads into a BatchResult. Useful for
// fakes standing in for the live provider.
func NewBatchResult(items map[string]BatchItem) BatchResult {
	return BatchResult{items: items}
}

// Err returns the sub-query outcome for key: nil on success,
// ErrSymbolNotFound (wrapped with the provider message) when the provider
// reported an error, and a lookup error when the key is absent entirely.
func (r BatchResult) Err(key string) error {
	item, ok := r.items[key]
	if !ok {
		return fmt.Errorf("%w: no response for key %q", ErrSymbolNotFound, key)
	}
	if strings.EqualFold(item.Status, "error") {
		var errResp errorResponse
		_ = json.Unmarshal(item.Response, &errResp)
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, errResp.Message)
	}
	return nil
}

func (r BatchResult) decode(key string, out any) error {
	if err := r.Err(key); err != nil {
		return err
	}
	if err := json.Unmarshal(r.items[key].Response, out); err != nil {
		return fmt.Errorf("decode sub-query %q: %w", key, err)
	}
	return nil
}

// Quote decodes the quote response stored under key.
func (r BatchResult) Quote(key string) (*Quote, error) {
	var q Quote
	if err := r.decode(key, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Statistics decodes the statistics response stored under key.
func (r BatchResult) Statistics(key string) (*Statistics, error) {
	var s Statistics
	if err := r.decode(key, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TimeSeries decodes the time-series response stored under key.
func (r BatchResult) TimeSeries(key string) (*TimeSeries, error) {
	var ts TimeSeries
	if err := r.decode(key, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// ExchangeRate decodes the FX rate response stored under key.
func (r BatchResult) ExchangeRate(key string) (*ExchangeRate, error) {
	var er ExchangeRate
	if err := r.decode(key, &er); err != nil {
		return nil, err
	}
	return &er, nil
}

// Batch issues one combined request resolving every sub-query in queries.
// A transport-level failure fails the whole batch; per-sub-query provider
// errors surface through BatchResult.Err.
func (c *Client) Batch(ctx context.Context, queries []SubQuery) (BatchResult, error) {
	payload := make(map[string]batchRequestItem, len(queries))
	for _, q := range queries {
		payload[q.Key] = batchRequestItem{URL: c.specURL(q.Spec)}
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return BatchResult{}, fmt.Errorf("marshal batch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/batch", bytes.NewReader(bodyBytes))
	if err != nil {
		return BatchResult{}, err
	}
	c.setHeaders(req)

	start := time.Now()
	var env batchEnvelope
	if err := c.exec.DoJSON(ctx, req, &env); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("batch", "error").Inc()
		return BatchResult{}, fmt.Errorf("batch request: %w", err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues("batch", "ok").Inc()
	metrics.ObserveDuration(metrics.ProviderRequestDuration, start, "batch")

	return BatchResult{items: env.Data}, nil
}

// FetchExchangeRate fetches a single FX rate outside a batch. Used by the
// currency converter on a cache miss mid-run.
func (c *Client) FetchExchangeRate(ctx context.Context, pair string) (float64, error) {
	spec := ExchangeRateSpec(pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.specURL(spec), nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)

	var er ExchangeRate
	if err := c.exec.DoJSON(ctx, req, &er); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(EndpointExchangeRate, "error").Inc()
		return 0, fmt.Errorf("exchange rate %s: %w", pair, err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(EndpointExchangeRate, "ok").Inc()

	if er.Rate <= 0 {
		return 0, fmt.Errorf("exchange rate %s: non-positive rate %v", pair, er.Rate)
	}
	return er.Rate, nil
}

func (c *Client) specURL(spec RequestSpec) string {
	return "/" + spec.Endpoint + "?" + spec.Params.Encode()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "apikey "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
