package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

// ─── Missing inputs ──────────────────────────────────────────────────────────

func TestScore_BothMissing(t *testing.T) {
	result := Score(nil, nil)
	assert.Nil(t, result.Score)
	assert.Empty(t, result.Grade)
}

// ─── Renormalization over available metrics ──────────────────────────────────

func TestScore_SingleMetricRenormalized(t *testing.T) {
	// Full marks on the only available metric must yield 100, not 25/45.
	result := Score(f(25), nil)
	require.NotNil(t, result.Score)
	assert.Equal(t, 100, *result.Score)
	assert.Equal(t, "A", result.Grade)

	result = Score(nil, f(0.3))
	require.NotNil(t, result.Score)
	assert.Equal(t, 100, *result.Score)
}

func TestScore_BothMetrics(t *testing.T) {
	tests := []struct {
		name  string
		roe   float64
		de    float64
		score int
		grade string
	}{
		{"top marks", 25, 0.4, 100, "A"},                 // (25+20)/45
		{"strong roe heavy debt", 22, 5.0, 56, "C"},      // 25/45
		{"middling both", 12, 1.5, 44, "C"},              // (12+8)/45
		{"weak both", 3, 2.8, 18, "D"},                   // (5+3)/45
		{"negative equity flag", 18, -0.5, 44, "C"},      // 20/45
		{"negative roe zero debt points", -5, 4.0, 0, "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(f(tt.roe), f(tt.de))
			require.NotNil(t, result.Score)
			assert.Equal(t, tt.score, *result.Score)
			assert.Equal(t, tt.grade, result.Grade)
		})
	}
}

// ─── Step boundaries ─────────────────────────────────────────────────────────

func TestROEPoints_Steps(t *testing.T) {
	tests := []struct {
		roe    float64
		points int
	}{
		{25, 25}, {20, 25}, {19.99, 20}, {15, 20}, {14.99, 12},
		{10, 12}, {9.99, 5}, {0.01, 5}, {0, 0}, {-3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.points, roePoints(tt.roe), "roe=%v", tt.roe)
	}
}

func TestDEPoints_Steps(t *testing.T) {
	tests := []struct {
		de     float64
		points int
	}{
		{-0.1, 0}, {0, 20}, {0.5, 20}, {0.51, 15}, {1.0, 15},
		{1.01, 8}, {2.0, 8}, {2.01, 3}, {3.0, 3}, {3.01, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.points, dePoints(tt.de), "de=%v", tt.de)
	}
}

// ─── Grade boundaries ────────────────────────────────────────────────────────

func TestGrade_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{100, "A"}, {80, "A"}, {79, "B"}, {60, "B"},
		{59, "C"}, {40, "C"}, {39, "D"}, {0, "D"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, grade(tt.score), "score=%d", tt.score)
	}
}
