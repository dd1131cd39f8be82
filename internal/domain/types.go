// Package domain defines the core data types shared across the backtesting
// engine: OHLCV bars and series, predictions, positions, trades, and equity
// points, plus the typed errors every component reports failures with.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// Bars and series
// ---------------------------------------------------------------------------

// Granularity identifies the bar interval of a series.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
	GranularityHourly Granularity = "hourly"
)

// Bar is a single immutable OHLCV record.
//
// Invariants: Low ≤ Open,Close ≤ High and Volume ≥ 0. The validator enforces
// these on load; downstream components may assume them.
type Bar struct {
	Symbol    string    `json:"symbol" csv:"symbol"`
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    int64     `json:"volume" csv:"volume"`
}

// Series is an ordered sequence of bars for a single symbol, unique and
// strictly increasing by timestamp.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Bars) }

// Closes returns the close prices of all bars, in order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Slice returns the half-open sub-series [i, j). The returned series shares
// the underlying bar storage; callers must treat bars as read-only.
func (s *Series) Slice(i, j int) *Series {
	return &Series{Symbol: s.Symbol, Bars: s.Bars[i:j]}
}

// IndexAtOrAfter returns the index of the first bar whose timestamp is at or
// after t, or Len() if no such bar exists.
func (s *Series) IndexAtOrAfter(t time.Time) int {
	return sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Timestamp.Before(t)
	})
}

// SortedByTimestamp reports whether bar timestamps are strictly increasing.
func (s *Series) SortedByTimestamp() bool {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Timestamp.After(s.Bars[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Signals and predictions
// ---------------------------------------------------------------------------

// Signal is the directional stance of a prediction. Exactly three variants
// exist so ensemble logic can be exhaustive.
type Signal int

const (
	SignalFlat Signal = iota
	SignalLong
	SignalShort
)

// String returns the lowercase name of the signal.
func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	default:
		return "flat"
	}
}

// ParseSignal converts a string into a Signal. Unknown values are an error.
func ParseSignal(v string) (Signal, error) {
	switch v {
	case "long":
		return SignalLong, nil
	case "short":
		return SignalShort, nil
	case "flat":
		return SignalFlat, nil
	}
	return SignalFlat, fmt.Errorf("unknown signal %q", v)
}

// Direction returns +1 for long, -1 for short, 0 for flat.
func (s Signal) Direction() float64 {
	switch s {
	case SignalLong:
		return 1
	case SignalShort:
		return -1
	default:
		return 0
	}
}

// Prediction is one directional call emitted by the prediction engine. It is
// never mutated after creation.
type Prediction struct {
	Timestamp      time.Time `json:"timestamp" csv:"timestamp"`
	Symbol         string    `json:"symbol" csv:"symbol"`
	Signal         Signal    `json:"signal" csv:"-"`
	Confidence     float64   `json:"confidence" csv:"confidence"`
	SourceModel    string    `json:"source_model" csv:"source_model"`
	ExpectedReturn *float64  `json:"expected_return,omitempty" csv:"-"`
}

// ---------------------------------------------------------------------------
// Positions, trades, equity
// ---------------------------------------------------------------------------

// Position is the simulator's single open holding. It is mutable only inside
// one simulation run; once closed it is converted into an immutable Trade.
type Position struct {
	EntryTimestamp time.Time
	EntryPrice     float64 // fill price, slippage included
	Direction      Signal
	SizeFraction   float64 // fraction of capital committed at entry
	Units          float64 // shares or units held
	Open           bool
}

// MarketValue returns the signed mark-to-market value of the position at the
// given price. Short positions gain value as the price falls.
func (p *Position) MarketValue(price float64) float64 {
	if !p.Open {
		return 0
	}
	if p.Direction == SignalShort {
		return p.Units * (2*p.EntryPrice - price)
	}
	return p.Units * price
}

// Trade is one closed round trip, immutable once created.
type Trade struct {
	Symbol         string        `json:"symbol" csv:"symbol"`
	EntryTimestamp time.Time     `json:"entry_timestamp" csv:"entry_timestamp"`
	ExitTimestamp  time.Time     `json:"exit_timestamp" csv:"exit_timestamp"`
	EntryPrice     float64       `json:"entry_price" csv:"entry_price"`
	ExitPrice      float64       `json:"exit_price" csv:"exit_price"`
	Direction      Signal        `json:"direction" csv:"-"`
	SizeFraction   float64       `json:"size_fraction" csv:"size_fraction"`
	Units          float64       `json:"units" csv:"units"`
	GrossPnL       float64       `json:"gross_pnl" csv:"gross_pnl"`
	CommissionPaid float64       `json:"commission_paid" csv:"commission_paid"`
	SlippageCost   float64       `json:"slippage_cost" csv:"slippage_cost"`
	NetPnL         float64       `json:"net_pnl" csv:"net_pnl"`
	HoldingPeriod  time.Duration `json:"holding_period" csv:"-"`
}

// EquityPoint is one snapshot of account state, appended every simulation
// step. The ordered sequence of points is the equity curve.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp" csv:"timestamp"`
	Cash          float64   `json:"cash" csv:"cash"`
	PositionValue float64   `json:"position_value" csv:"position_value"`
	TotalEquity   float64   `json:"total_equity" csv:"total_equity"`
}
