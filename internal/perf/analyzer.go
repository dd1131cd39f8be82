// Package perf computes summary statistics over a finished simulation run:
// returns, risk-adjusted ratios, drawdown, and per-trade aggregates.
package perf

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"galileo/internal/domain"
)

// annualization factor for daily returns.
const tradingDaysPerYear = 252

// Metrics is the full performance summary of one run. Ratios that are
// mathematically undefined for the input (too few points, zero variance, no
// losing trades) are nil rather than NaN or Inf.
type Metrics struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"` // fraction, e.g. 0.12 for +12%

	SharpeRatio  *float64 `json:"sharpe_ratio,omitempty"`
	SortinoRatio *float64 `json:"sortino_ratio,omitempty"`
	MaxDrawdown  float64  `json:"max_drawdown"` // fraction of peak, ≥ 0

	TradeCount   int      `json:"trade_count"`
	WinCount     int      `json:"win_count"`
	LossCount    int      `json:"loss_count"`
	WinRate      *float64 `json:"win_rate,omitempty"`
	ProfitFactor *float64 `json:"profit_factor,omitempty"`
	AvgWin       *float64 `json:"avg_win,omitempty"`
	AvgLoss      *float64 `json:"avg_loss,omitempty"`

	TotalCommission float64       `json:"total_commission"`
	TotalSlippage   float64       `json:"total_slippage"`
	AvgHolding      time.Duration `json:"avg_holding"`
}

// Analyze computes Metrics from a trade ledger and equity curve. Both may be
// empty; every derived figure degrades to its zero value or nil.
func Analyze(initialCapital float64, trades []domain.Trade, curve []domain.EquityPoint) Metrics {
	m := Metrics{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].TotalEquity
	}
	if initialCapital > 0 {
		m.TotalReturn = m.FinalEquity/initialCapital - 1
	}

	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio, m.SortinoRatio = riskRatios(stepReturns(curve))
	analyzeTrades(&m, trades)
	return m
}

// ---------------------------------------------------------------------------
// Return-based statistics
// ---------------------------------------------------------------------------

// stepReturns converts the equity curve into simple per-step returns.
func stepReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev <= 0 {
			continue
		}
		rets = append(rets, curve[i].TotalEquity/prev-1)
	}
	return rets
}

// riskRatios computes annualized Sharpe and Sortino ratios from per-step
// returns. Either ratio is nil when its denominator is zero or there are too
// few observations to estimate dispersion.
func riskRatios(rets []float64) (sharpe, sortino *float64) {
	if len(rets) < 2 {
		return nil, nil
	}

	mean, err := stats.Mean(rets)
	if err != nil {
		return nil, nil
	}
	sd, err := stats.StandardDeviationSample(rets)
	if err == nil && sd > 0 {
		v := mean / sd * math.Sqrt(tradingDaysPerYear)
		sharpe = &v
	}

	// Downside deviation uses only negative returns, against a zero target.
	sumSq := 0.0
	for _, r := range rets {
		if r < 0 {
			sumSq += r * r
		}
	}
	dd := math.Sqrt(sumSq / float64(len(rets)))
	if dd > 0 {
		v := mean / dd * math.Sqrt(tradingDaysPerYear)
		sortino = &v
	}
	return sharpe, sortino
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// fraction of the peak, in a single pass.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, pt := range curve {
		if pt.TotalEquity > peak {
			peak = pt.TotalEquity
		}
		if peak > 0 {
			if dd := (peak - pt.TotalEquity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ---------------------------------------------------------------------------
// Trade-based statistics
// ---------------------------------------------------------------------------

func analyzeTrades(m *Metrics, trades []domain.Trade) {
	m.TradeCount = len(trades)
	if len(trades) == 0 {
		return
	}

	var winSum, lossSum float64
	var holding time.Duration
	for _, tr := range trades {
		m.TotalCommission += tr.CommissionPaid
		m.TotalSlippage += tr.SlippageCost
		holding += tr.HoldingPeriod
		switch {
		case tr.NetPnL > 0:
			m.WinCount++
			winSum += tr.NetPnL
		case tr.NetPnL < 0:
			m.LossCount++
			lossSum += -tr.NetPnL
		}
	}
	m.AvgHolding = holding / time.Duration(len(trades))

	wr := float64(m.WinCount) / float64(len(trades))
	m.WinRate = &wr

	if m.WinCount > 0 {
		v := winSum / float64(m.WinCount)
		m.AvgWin = &v
	}
	if m.LossCount > 0 {
		v := lossSum / float64(m.LossCount)
		m.AvgLoss = &v
	}
	// Profit factor is undefined without any losing trade.
	if lossSum > 0 {
		v := winSum / lossSum
		m.ProfitFactor = &v
	}
}
