package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Checker-Finance/screener/pkg/model"
)

// ─── NormalizeSymbol ──────────────────────────────────────────────────────────

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain US symbol", "AAPL", "AAPL"},
		{"london suffix", "VOD.L", "VOD"},
		{"paris suffix", "AIR.PA", "AIR"},
		{"xetra suffix", "SAP.DE", "SAP"},
		{"lowercase input", "vod.l", "VOD"},
		{"whitespace trimmed", "  SPY  ", "SPY"},
		{"numeric suffix", "0700.HK", "0700"},
		{"no suffix to strip", "BRK", "BRK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.input))
		})
	}
}

// ─── Request symbol construction ─────────────────────────────────────────────

func TestResolve_RequestSymbol(t *testing.T) {
	tests := []struct {
		name     string
		inst     model.Instrument
		expected string
	}{
		{
			name:     "major US venue omits qualifier",
			inst:     model.Instrument{Symbol: "SPY", Exchange: "NYSE ARCA"},
			expected: "SPY",
		},
		{
			name:     "nasdaq omits qualifier",
			inst:     model.Instrument{Symbol: "QQQ", Exchange: "NASDAQ"},
			expected: "QQQ",
		},
		{
			name:     "foreign venue appends MIC",
			inst:     model.Instrument{Symbol: "AIR.PA", Exchange: "EURONEXT PARIS"},
			expected: "AIR:XPAR",
		},
		{
			name:     "explicit venue wins over exchange name",
			inst:     model.Instrument{Symbol: "VOD.L", Venue: "XLON", Exchange: "whatever"},
			expected: "VOD:XLON",
		},
		{
			name:     "unknown venue falls back to bare symbol",
			inst:     model.Instrument{Symbol: "ABC", Exchange: "Some Obscure Market"},
			expected: "ABC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.inst).RequestSymbol)
		})
	}
}

// ─── Region resolution order ─────────────────────────────────────────────────

func TestResolve_RegionOrder(t *testing.T) {
	tests := []struct {
		name     string
		inst     model.Instrument
		expected model.Region
	}{
		{
			name:     "explicit tag wins over country",
			inst:     model.Instrument{Symbol: "X", Region: model.RegionAsia, Country: "France"},
			expected: model.RegionAsia,
		},
		{
			name:     "country map",
			inst:     model.Instrument{Symbol: "X", Country: "France"},
			expected: model.RegionEurope,
		},
		{
			name:     "country map case insensitive",
			inst:     model.Instrument{Symbol: "X", Country: "jApAn"},
			expected: model.RegionAsia,
		},
		{
			name:     "canada buckets with US policy",
			inst:     model.Instrument{Symbol: "X", Country: "Canada"},
			expected: model.RegionUS,
		},
		{
			name:     "asian MIC heuristic when country missing",
			inst:     model.Instrument{Symbol: "X", Venue: "XHKG"},
			expected: model.RegionAsia,
		},
		{
			name:     "latam MIC heuristic",
			inst:     model.Instrument{Symbol: "X", Venue: "BVMF"},
			expected: model.RegionLatam,
		},
		{
			name:     "X-prefix MIC defaults to europe",
			inst:     model.Instrument{Symbol: "X", Venue: "XWAR"},
			expected: model.RegionEurope,
		},
		{
			name:     "nothing resolvable is UNKNOWN",
			inst:     model.Instrument{Symbol: "X"},
			expected: model.RegionUnknown,
		},
		{
			name:     "unknown country with non-X venue is UNKNOWN",
			inst:     model.Instrument{Symbol: "X", Country: "Atlantis", Venue: "ZZZZ"},
			expected: model.RegionUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.inst).Region)
		})
	}
}

// ─── Venue resolution ────────────────────────────────────────────────────────

func TestResolve_Venue(t *testing.T) {
	tests := []struct {
		name     string
		inst     model.Instrument
		expected string
	}{
		{"name mapping", model.Instrument{Symbol: "X", Exchange: "LSE"}, "XLON"},
		{"mic passthrough", model.Instrument{Symbol: "X", Exchange: "XSTO"}, "XSTO"},
		{"lowercase mic passthrough", model.Instrument{Symbol: "X", Exchange: "xsto"}, "XSTO"},
		{"unmappable name", model.Instrument{Symbol: "X", Exchange: "My Local Bourse"}, ""},
		{"empty exchange", model.Instrument{Symbol: "X"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.inst).Venue)
		})
	}
}

// ─── PrimaryVenue ────────────────────────────────────────────────────────────

func TestPrimaryVenue(t *testing.T) {
	assert.True(t, PrimaryVenue("XNAS"))
	assert.True(t, PrimaryVenue("xnys"))
	assert.True(t, PrimaryVenue("ARCX"))
	assert.False(t, PrimaryVenue("XPAR"))
	assert.False(t, PrimaryVenue("XLON"))
	assert.False(t, PrimaryVenue(""))
}
