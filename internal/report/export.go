// Package report persists backtest results as CSV and Parquet tables and
// renders the run summary for the terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/parquet-go/parquet-go"

	"galileo/internal/domain"
	"galileo/internal/perf"
)

// Exporter writes result tables under a single output directory.
type Exporter struct {
	OutDir string
}

// NewExporter creates an Exporter rooted at the given directory.
func NewExporter(outDir string) *Exporter {
	return &Exporter{OutDir: outDir}
}

// ---------------------------------------------------------------------------
// Record types (on-disk schema)
// ---------------------------------------------------------------------------

// PredictionRecord is the flat schema for one prediction row.
type PredictionRecord struct {
	Timestamp      time.Time `csv:"timestamp" parquet:"-"`
	TimestampMs    int64     `csv:"-" parquet:"timestamp,timestamp(millisecond)"`
	Symbol         string    `csv:"symbol" parquet:"symbol"`
	Signal         string    `csv:"signal" parquet:"signal"`
	Confidence     float64   `csv:"confidence" parquet:"confidence"`
	SourceModel    string    `csv:"source_model" parquet:"source_model"`
	ExpectedReturn float64   `csv:"expected_return" parquet:"expected_return"`
}

// TradeRecord is the flat schema for one closed trade row.
type TradeRecord struct {
	Symbol         string    `csv:"symbol" parquet:"symbol"`
	EntryTimestamp time.Time `csv:"entry_timestamp" parquet:"-"`
	ExitTimestamp  time.Time `csv:"exit_timestamp" parquet:"-"`
	EntryMs        int64     `csv:"-" parquet:"entry_timestamp,timestamp(millisecond)"`
	ExitMs         int64     `csv:"-" parquet:"exit_timestamp,timestamp(millisecond)"`
	EntryPrice     float64   `csv:"entry_price" parquet:"entry_price"`
	ExitPrice      float64   `csv:"exit_price" parquet:"exit_price"`
	Direction      string    `csv:"direction" parquet:"direction"`
	SizeFraction   float64   `csv:"size_fraction" parquet:"size_fraction"`
	Units          float64   `csv:"units" parquet:"units"`
	GrossPnL       float64   `csv:"gross_pnl" parquet:"gross_pnl"`
	CommissionPaid float64   `csv:"commission_paid" parquet:"commission_paid"`
	SlippageCost   float64   `csv:"slippage_cost" parquet:"slippage_cost"`
	NetPnL         float64   `csv:"net_pnl" parquet:"net_pnl"`
	HoldingHours   float64   `csv:"holding_hours" parquet:"holding_hours"`
}

// EquityRecord is the flat schema for one equity-curve row.
type EquityRecord struct {
	Timestamp     time.Time `csv:"timestamp" parquet:"-"`
	TimestampMs   int64     `csv:"-" parquet:"timestamp,timestamp(millisecond)"`
	Cash          float64   `csv:"cash" parquet:"cash"`
	PositionValue float64   `csv:"position_value" parquet:"position_value"`
	TotalEquity   float64   `csv:"total_equity" parquet:"total_equity"`
}

func predictionRecords(preds []domain.Prediction) []PredictionRecord {
	records := make([]PredictionRecord, len(preds))
	for i, p := range preds {
		r := PredictionRecord{
			Timestamp:   p.Timestamp,
			TimestampMs: p.Timestamp.UnixMilli(),
			Symbol:      p.Symbol,
			Signal:      p.Signal.String(),
			Confidence:  p.Confidence,
			SourceModel: p.SourceModel,
		}
		if p.ExpectedReturn != nil {
			r.ExpectedReturn = *p.ExpectedReturn
		}
		records[i] = r
	}
	return records
}

func tradeRecords(trades []domain.Trade) []TradeRecord {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Symbol:         t.Symbol,
			EntryTimestamp: t.EntryTimestamp,
			ExitTimestamp:  t.ExitTimestamp,
			EntryMs:        t.EntryTimestamp.UnixMilli(),
			ExitMs:         t.ExitTimestamp.UnixMilli(),
			EntryPrice:     t.EntryPrice,
			ExitPrice:      t.ExitPrice,
			Direction:      t.Direction.String(),
			SizeFraction:   t.SizeFraction,
			Units:          t.Units,
			GrossPnL:       t.GrossPnL,
			CommissionPaid: t.CommissionPaid,
			SlippageCost:   t.SlippageCost,
			NetPnL:         t.NetPnL,
			HoldingHours:   t.HoldingPeriod.Hours(),
		}
	}
	return records
}

func equityRecords(curve []domain.EquityPoint) []EquityRecord {
	records := make([]EquityRecord, len(curve))
	for i, pt := range curve {
		records[i] = EquityRecord{
			Timestamp:     pt.Timestamp,
			TimestampMs:   pt.Timestamp.UnixMilli(),
			Cash:          pt.Cash,
			PositionValue: pt.PositionValue,
			TotalEquity:   pt.TotalEquity,
		}
	}
	return records
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

// WritePredictionsCSV writes predictions.csv under OutDir.
func (e *Exporter) WritePredictionsCSV(preds []domain.Prediction) error {
	records := predictionRecords(preds)
	return e.writeCSV("predictions.csv", &records)
}

// WriteTradesCSV writes trades.csv under OutDir.
func (e *Exporter) WriteTradesCSV(trades []domain.Trade) error {
	records := tradeRecords(trades)
	return e.writeCSV("trades.csv", &records)
}

// WriteEquityCSV writes equity.csv under OutDir.
func (e *Exporter) WriteEquityCSV(curve []domain.EquityPoint) error {
	records := equityRecords(curve)
	return e.writeCSV("equity.csv", &records)
}

func (e *Exporter) writeCSV(name string, records any) error {
	path := filepath.Join(e.OutDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadTradesCSV reads a trades.csv back into records.
func ReadTradesCSV(path string) ([]TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []TradeRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Parquet
// ---------------------------------------------------------------------------

// WriteTradesParquet writes trades.parquet under OutDir.
func (e *Exporter) WriteTradesParquet(trades []domain.Trade) error {
	return writeParquetFile(filepath.Join(e.OutDir, "trades.parquet"), tradeRecords(trades))
}

// WriteEquityParquet writes equity.parquet under OutDir.
func (e *Exporter) WriteEquityParquet(curve []domain.EquityPoint) error {
	return writeParquetFile(filepath.Join(e.OutDir, "equity.parquet"), equityRecords(curve))
}

// ReadTradesParquet reads a trades.parquet back into records.
func ReadTradesParquet(path string) ([]TradeRecord, error) {
	return parquet.ReadFile[TradeRecord](path)
}

// ReadEquityParquet reads an equity.parquet back into records.
func ReadEquityParquet(path string) ([]EquityRecord, error) {
	return parquet.ReadFile[EquityRecord](path)
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Terminal summary
// ---------------------------------------------------------------------------

// WriteAll writes every table in both formats.
func (e *Exporter) WriteAll(preds []domain.Prediction, trades []domain.Trade, curve []domain.EquityPoint) error {
	if err := e.WritePredictionsCSV(preds); err != nil {
		return err
	}
	if err := e.WriteTradesCSV(trades); err != nil {
		return err
	}
	if err := e.WriteEquityCSV(curve); err != nil {
		return err
	}
	if err := e.WriteTradesParquet(trades); err != nil {
		return err
	}
	return e.WriteEquityParquet(curve)
}

// RenderSummary writes a two-column metrics table to w.
func RenderSummary(w io.Writer, symbol string, m perf.Metrics) {
	fmt.Fprintf(w, "Backtest summary for %s\n", symbol)

	table := newMetricsTable(w)
	table.Append([]string{"Initial capital", fmt.Sprintf("%.2f", m.InitialCapital)})
	table.Append([]string{"Final equity", fmt.Sprintf("%.2f", m.FinalEquity)})
	table.Append([]string{"Total return", fmt.Sprintf("%.2f%%", m.TotalReturn*100)})
	table.Append([]string{"Sharpe ratio", fmtRatio(m.SharpeRatio)})
	table.Append([]string{"Sortino ratio", fmtRatio(m.SortinoRatio)})
	table.Append([]string{"Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)})
	table.Append([]string{"Trades", fmt.Sprintf("%d", m.TradeCount)})
	table.Append([]string{"Win rate", fmtPercent(m.WinRate)})
	table.Append([]string{"Profit factor", fmtRatio(m.ProfitFactor)})
	table.Append([]string{"Avg win", fmtMoney(m.AvgWin)})
	table.Append([]string{"Avg loss", fmtMoney(m.AvgLoss)})
	table.Append([]string{"Total commission", fmt.Sprintf("%.2f", m.TotalCommission)})
	table.Append([]string{"Total slippage", fmt.Sprintf("%.2f", m.TotalSlippage)})
	table.Append([]string{"Avg holding", m.AvgHolding.String()})
	table.Render()
}

func newMetricsTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnSeparator("")
	return table
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

func fmtPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func fmtMoney(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
