// Package universe loads the instrument list that seeds a screening run.
package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/pkg/model"
)

// Loader reads instrument universes from CSV files. The header row names the
// columns; only symbol is mandatory, everything else defaults to empty and is
// filled in downstream (venue and region resolution, quote currency).
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a universe Loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// column aliases accepted in the header, normalized to lower case.
var columnAliases = map[string]string{
	"symbol":      "symbol",
	"ticker":      "symbol",
	"name":        "name",
	"country":     "country",
	"exchange":    "exchange",
	"mic":         "exchange",
	"mic_code":    "exchange",
	"currency":    "currency",
	"sector":      "sector",
	"asset_class": "asset_class",
	"assetclass":  "asset_class",
	"type":        "asset_class",
}

// Name derives a universe name from its file path: the base name without
// extension. Used to key snapshots, store entries, and run events.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile reads a universe CSV from disk.
func (l *Loader) LoadFile(path string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe %s: %w", path, err)
	}
	defer f.Close()

	instruments, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load universe %s: %w", path, err)
	}

	l.logger.Info("universe.loaded",
		zap.String("path", path),
		zap.Int("instruments", len(instruments)))
	return instruments, nil
}

// Load parses a universe CSV from r. Rows with a blank symbol are skipped,
// duplicate symbols keep the first occurrence.
func (l *Loader) Load(r io.Reader) ([]model.Instrument, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Source files occasionally have ragged optional trailing columns.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := map[string]int{}
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if canonical, ok := columnAliases[name]; ok {
			if _, dup := index[canonical]; !dup {
				index[canonical] = i
			}
		}
	}
	if _, ok := index["symbol"]; !ok {
		return nil, fmt.Errorf("universe header missing symbol column: %v", header)
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var instruments []model.Instrument
	seen := map[string]bool{}
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		symbol := strings.ToUpper(field(record, "symbol"))
		if symbol == "" {
			continue
		}
		if seen[symbol] {
			l.logger.Debug("universe.duplicate_symbol", zap.String("symbol", symbol), zap.Int("line", line))
			continue
		}
		seen[symbol] = true

		instruments = append(instruments, model.Instrument{
			Symbol:     symbol,
			Name:       field(record, "name"),
			Country:    field(record, "country"),
			Exchange:   field(record, "exchange"),
			Currency:   strings.ToUpper(field(record, "currency")),
			Sector:     field(record, "sector"),
			AssetClass: field(record, "asset_class"),
		})
	}

	if len(instruments) == 0 {
		return nil, fmt.Errorf("universe contains no instruments")
	}
	return instruments, nil
}
