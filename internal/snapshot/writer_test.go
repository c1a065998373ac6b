package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/pkg/model"
)

func sampleReport() *model.Report {
	roe := 22.5
	score := 87
	started := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return &model.Report{
		RunID:            "run-1",
		StartedAt:        started,
		FinishedAt:       started.Add(42 * time.Second),
		ElapsedMS:        42000,
		TotalInstruments: 3,
		RetainedCount:    2,
		RejectedCount:    1,
		RejectionReasons: map[string]int{"liquidity": 1},
		DataQuality:      map[string]float64{"price": 100},
		Retained: []model.ScreenedInstrument{
			{
				Instrument: model.Instrument{
					Symbol: "SPY", Name: "SPDR S&P 500", Venue: "XNYS",
					Region: model.RegionUS, Currency: "USD", AssetClass: "ETF",
					Price: 512.5,
				},
				Metrics: model.LiquidityMetrics{
					ADVUSD: 4.1e10, AUMUSD: 5.2e11,
					VolumeSource: model.VolumeSourceAverage,
					AUMSource:    model.AUMSourceNetAssets,
				},
				Fundamentals: &model.Fundamentals{ReturnOnEquity: &roe},
				Quality:      &model.QualityScore{Score: &score, Grade: "A"},
				Result:       model.FilterResult{Status: model.StatusRetained},
			},
			{
				Instrument: model.Instrument{
					Symbol: "MWRD", Venue: "XPAR", Region: model.RegionEurope,
					Currency: "EUR", Price: 95,
				},
				Metrics: model.LiquidityMetrics{
					ADVUSD: 1.2e7, VolumeSource: model.VolumeSourceTimeSeries,
					AUMSource: model.AUMSourceNone,
				},
				Result: model.FilterResult{Status: model.StatusRetained},
			},
		},
		Rejected: []model.RejectedSummary{
			{Symbol: "THIN", Venue: "XNAS", Reason: "liquidity"},
		},
	}
}

func TestWrite_JSONAndCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(zap.NewNop(), dir)

	require.NoError(t, w.Write("etf-world", sampleReport()))

	data, err := os.ReadFile(filepath.Join(dir, "etf-world.json"))
	require.NoError(t, err)

	var decoded model.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 2, decoded.RetainedCount)
	assert.Len(t, decoded.Retained, 2)
	assert.Equal(t, 1, decoded.RejectionReasons["liquidity"])

	f, err := os.Open(filepath.Join(dir, "etf-world.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per retained instrument")
	assert.Equal(t, csvHeader, rows[0])

	spy := rows[1]
	assert.Equal(t, "SPY", spy[0])
	assert.Equal(t, "XNYS", spy[2])
	assert.Equal(t, "512.5", spy[7])
	assert.Equal(t, "average_volume", spy[10])
	assert.Equal(t, "22.5", spy[12])
	assert.Equal(t, "87", spy[14])
	assert.Equal(t, "A", spy[15])

	// Missing fundamentals and score render as empty cells, not zeros.
	mwrd := rows[2]
	assert.Equal(t, "MWRD", mwrd[0])
	assert.Equal(t, "", mwrd[12])
	assert.Equal(t, "", mwrd[14])
	assert.Equal(t, "", mwrd[15])
}

func TestWrite_ReplacesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(zap.NewNop(), dir)

	first := sampleReport()
	require.NoError(t, w.Write("etf-world", first))

	second := sampleReport()
	second.RunID = "run-2"
	require.NoError(t, w.Write("etf-world", second))

	data, err := os.ReadFile(filepath.Join(dir, "etf-world.json"))
	require.NoError(t, err)
	var decoded model.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-2", decoded.RunID)
}

func TestWrite_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "snapshots")
	w := NewWriter(zap.NewNop(), dir)

	require.NoError(t, w.Write("etf-world", sampleReport()))

	_, err := os.Stat(filepath.Join(dir, "etf-world.json"))
	assert.NoError(t, err)
}

func TestWrite_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(zap.NewNop(), dir)

	require.NoError(t, w.Write("etf-world", sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the json and csv snapshots remain")
}
