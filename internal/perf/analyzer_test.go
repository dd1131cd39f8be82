package perf

import (
	"math"
	"testing"
	"time"

	"galileo/internal/domain"
)

func curveOf(equities ...float64) []domain.EquityPoint {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]domain.EquityPoint, len(equities))
	for i, e := range equities {
		pts[i] = domain.EquityPoint{Timestamp: ts, Cash: e, TotalEquity: e}
		ts = ts.AddDate(0, 0, 1)
	}
	return pts
}

func tradeWithPnL(net float64, holding time.Duration) domain.Trade {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return domain.Trade{
		Symbol:         "TEST",
		EntryTimestamp: entry,
		ExitTimestamp:  entry.Add(holding),
		NetPnL:         net,
		GrossPnL:       net,
		HoldingPeriod:  holding,
	}
}

func TestAnalyzeEmptyInputs(t *testing.T) {
	m := Analyze(100_000, nil, nil)

	if m.FinalEquity != 100_000 || m.TotalReturn != 0 {
		t.Errorf("empty run: FinalEquity=%v TotalReturn=%v", m.FinalEquity, m.TotalReturn)
	}
	if m.SharpeRatio != nil || m.SortinoRatio != nil || m.WinRate != nil || m.ProfitFactor != nil {
		t.Error("undefined ratios must be nil on an empty run")
	}
	if m.MaxDrawdown != 0 || m.TradeCount != 0 {
		t.Errorf("MaxDrawdown=%v TradeCount=%d, want zeros", m.MaxDrawdown, m.TradeCount)
	}
}

func TestTotalReturn(t *testing.T) {
	m := Analyze(100_000, nil, curveOf(100_000, 105_000, 112_000))
	if math.Abs(m.TotalReturn-0.12) > 1e-9 {
		t.Errorf("TotalReturn = %v, want 0.12", m.TotalReturn)
	}
	if m.FinalEquity != 112_000 {
		t.Errorf("FinalEquity = %v, want 112000", m.FinalEquity)
	}
}

func TestMaxDrawdownSinglePass(t *testing.T) {
	// Peak 120 → trough 90 is a 25% drawdown; the later recovery to 130 and
	// dip to 117 (10%) must not override it.
	m := Analyze(100, nil, curveOf(100, 120, 90, 130, 117))
	if math.Abs(m.MaxDrawdown-0.25) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0.25", m.MaxDrawdown)
	}
}

func TestMaxDrawdownZeroWhenMonotone(t *testing.T) {
	m := Analyze(100, nil, curveOf(100, 101, 105, 110))
	if m.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", m.MaxDrawdown)
	}
}

func TestSharpeNilOnZeroVariance(t *testing.T) {
	// Constant equity: every return is zero, dispersion is zero.
	m := Analyze(100, nil, curveOf(100, 100, 100, 100))
	if m.SharpeRatio != nil {
		t.Errorf("SharpeRatio = %v, want nil for zero variance", *m.SharpeRatio)
	}
	if m.SortinoRatio != nil {
		t.Errorf("SortinoRatio = %v, want nil with no downside", *m.SortinoRatio)
	}
}

func TestSharpePositiveForSteadyGains(t *testing.T) {
	m := Analyze(100, nil, curveOf(100, 101, 103, 104, 107, 108))
	if m.SharpeRatio == nil {
		t.Fatal("SharpeRatio nil for a varying curve")
	}
	if *m.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %v, want > 0", *m.SharpeRatio)
	}
	if math.IsNaN(*m.SharpeRatio) || math.IsInf(*m.SharpeRatio, 0) {
		t.Errorf("SharpeRatio = %v, want finite", *m.SharpeRatio)
	}
}

func TestSortinoUsesOnlyDownside(t *testing.T) {
	// A curve that only ever rises has zero downside deviation, so Sortino
	// is undefined even though Sharpe is not.
	up := Analyze(100, nil, curveOf(100, 110, 111, 121, 122))
	if up.SortinoRatio != nil {
		t.Errorf("SortinoRatio = %v, want nil without any negative step", *up.SortinoRatio)
	}
	if up.SharpeRatio == nil {
		t.Error("SharpeRatio nil for a varying curve")
	}

	down := Analyze(100, nil, curveOf(100, 99, 112, 111, 124))
	if down.SortinoRatio == nil {
		t.Fatal("SortinoRatio nil for a curve with negative steps")
	}
	if math.IsNaN(*down.SortinoRatio) || math.IsInf(*down.SortinoRatio, 0) {
		t.Errorf("SortinoRatio = %v, want finite", *down.SortinoRatio)
	}
}

func TestTradeAggregates(t *testing.T) {
	trades := []domain.Trade{
		tradeWithPnL(100, 24*time.Hour),
		tradeWithPnL(300, 48*time.Hour),
		tradeWithPnL(-100, 72*time.Hour),
		tradeWithPnL(-100, 24*time.Hour),
	}
	m := Analyze(100_000, trades, nil)

	if m.TradeCount != 4 || m.WinCount != 2 || m.LossCount != 2 {
		t.Fatalf("counts = %d/%d/%d, want 4/2/2", m.TradeCount, m.WinCount, m.LossCount)
	}
	if m.WinRate == nil || math.Abs(*m.WinRate-0.5) > 1e-9 {
		t.Errorf("WinRate = %v, want 0.5", m.WinRate)
	}
	if m.AvgWin == nil || math.Abs(*m.AvgWin-200) > 1e-9 {
		t.Errorf("AvgWin = %v, want 200", m.AvgWin)
	}
	if m.AvgLoss == nil || math.Abs(*m.AvgLoss-100) > 1e-9 {
		t.Errorf("AvgLoss = %v, want 100", m.AvgLoss)
	}
	if m.ProfitFactor == nil || math.Abs(*m.ProfitFactor-2.0) > 1e-9 {
		t.Errorf("ProfitFactor = %v, want 2.0", m.ProfitFactor)
	}
	if m.AvgHolding != 42*time.Hour {
		t.Errorf("AvgHolding = %v, want 42h", m.AvgHolding)
	}
}

func TestProfitFactorNilWithoutLosses(t *testing.T) {
	trades := []domain.Trade{tradeWithPnL(100, time.Hour), tradeWithPnL(50, time.Hour)}
	m := Analyze(100_000, trades, nil)

	if m.ProfitFactor != nil {
		t.Errorf("ProfitFactor = %v, want nil with no losing trades", *m.ProfitFactor)
	}
	if m.AvgLoss != nil {
		t.Errorf("AvgLoss = %v, want nil", *m.AvgLoss)
	}
	if m.WinRate == nil || *m.WinRate != 1.0 {
		t.Errorf("WinRate = %v, want 1.0", m.WinRate)
	}
}

func TestBreakevenTradeIsNeitherWinNorLoss(t *testing.T) {
	trades := []domain.Trade{tradeWithPnL(0, time.Hour), tradeWithPnL(10, time.Hour)}
	m := Analyze(100_000, trades, nil)

	if m.WinCount != 1 || m.LossCount != 0 {
		t.Errorf("counts = %d/%d, want 1 win, 0 losses", m.WinCount, m.LossCount)
	}
	if m.WinRate == nil || math.Abs(*m.WinRate-0.5) > 1e-9 {
		t.Errorf("WinRate = %v, want 0.5 of all trades", m.WinRate)
	}
}
