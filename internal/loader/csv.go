package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"galileo/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*CSVProvider)(nil)

// CSVProvider serves bars from local CSV files, one file per symbol at
// <dir>/<SYMBOL>.csv with columns symbol, timestamp, open, high, low,
// close, volume. It backs offline runs and deterministic tests.
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a CSVProvider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Name returns "csv".
func (p *CSVProvider) Name() string { return "csv" }

// Fetch reads the symbol's file and returns the bars inside [start, end].
// A missing file or an empty range maps to domain.ErrDataUnavailable.
// Granularity is ignored: a file holds bars at whatever interval it was
// written with.
func (p *CSVProvider) Fetch(_ context.Context, symbol string, start, end time.Time, _ domain.Granularity) ([]domain.Bar, error) {
	path := filepath.Join(p.dir, strings.ToUpper(symbol)+".csv")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrDataUnavailable
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []domain.Bar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var bars []domain.Bar
	for _, b := range rows {
		ts := b.Timestamp
		if ts.Before(start) || ts.After(end) {
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, domain.ErrDataUnavailable
	}
	return bars, nil
}

// WriteSymbolCSV writes bars to the provider's directory in the layout Fetch
// expects. The fetch side's counterpart for preparing offline datasets.
func WriteSymbolCSV(dir, symbol string, bars []domain.Bar) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, strings.ToUpper(symbol)+".csv")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&bars, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
