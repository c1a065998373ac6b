// Package snapshot writes run results to disk: a JSON document with full run
// metadata and a flat CSV mirror of the retained list for quick inspection.
package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/pkg/model"
)

// Writer persists run reports under a base directory. Filenames carry the
// universe name so successive runs of different universes do not clobber each
// other; each write replaces the previous snapshot for that universe.
type Writer struct {
	logger *zap.Logger
	dir    string
}

// NewWriter constructs a snapshot Writer rooted at dir.
func NewWriter(logger *zap.Logger, dir string) *Writer {
	return &Writer{logger: logger, dir: dir}
}

// Write persists the report as <universe>.json and its retained list as
// <universe>.csv. Both writes are atomic (temp file + rename) so a reader
// never observes a half-written snapshot.
func (w *Writer) Write(universe string, report *model.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", w.dir, err)
	}

	jsonPath := filepath.Join(w.dir, universe+".json")
	if err := w.writeJSON(jsonPath, report); err != nil {
		return err
	}

	csvPath := filepath.Join(w.dir, universe+".csv")
	if err := w.writeCSV(csvPath, report.Retained); err != nil {
		return err
	}

	w.logger.Info("snapshot.written",
		zap.String("json", jsonPath),
		zap.String("csv", csvPath),
		zap.Int("retained", report.RetainedCount),
		zap.Int("rejected", report.RejectedCount))
	return nil
}

func (w *Writer) writeJSON(path string, report *model.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return atomicWrite(path, data)
}

var csvHeader = []string{
	"symbol", "name", "venue", "region", "currency", "sector", "asset_class",
	"price", "adv_usd", "aum_usd", "volume_source", "aum_source",
	"return_on_equity", "debt_to_equity", "quality_score", "grade",
}

func (w *Writer) writeCSV(path string, retained []model.ScreenedInstrument) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, si := range retained {
		if err := cw.Write(csvRow(si)); err != nil {
			tmp.Close()
			return fmt.Errorf("write csv row %s: %w", si.Instrument.Symbol, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

func csvRow(si model.ScreenedInstrument) []string {
	inst := si.Instrument
	m := si.Metrics

	roe, de := "", ""
	if si.Fundamentals != nil {
		roe = floatField(si.Fundamentals.ReturnOnEquity)
		de = floatField(si.Fundamentals.DebtToEquity)
	}
	score, grade := "", ""
	if si.Quality != nil {
		grade = si.Quality.Grade
		if si.Quality.Score != nil {
			score = strconv.Itoa(*si.Quality.Score)
		}
	}

	return []string{
		inst.Symbol, inst.Name, inst.Venue, string(inst.Region), inst.Currency,
		inst.Sector, inst.AssetClass,
		formatFloat(inst.Price), formatFloat(m.ADVUSD), formatFloat(m.AUMUSD),
		string(m.VolumeSource), string(m.AUMSource),
		roe, de, score, grade,
	}
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
