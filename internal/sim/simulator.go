// Package sim implements the trading simulator: a deterministic,
// single-threaded state machine that consumes predictions in timestamp
// order, manages a single logical position, applies commission and slippage,
// and records the trade ledger and equity curve.
package sim

import (
	"log/slog"
	"time"

	"galileo/internal/domain"
)

// Config holds the capital, cost, and threshold parameters of one run.
type Config struct {
	InitialCapital           float64
	CommissionRate           float64
	SlippageRate             float64
	MaxPositionSize          float64
	EntryConfidenceThreshold float64
	ExitConfidenceThreshold  float64
}

// Simulator owns all mutable state of one simulation run. A run is stateless
// with respect to any previous run; construct a fresh Simulator per
// backtest.
type Simulator struct {
	cfg  Config
	cash float64

	position      *domain.Position
	entrySymbol   string
	entryRawPrice float64 // decision price before slippage
	entryCommPaid float64
	entrySlipCost float64

	trades    []domain.Trade
	curve     []domain.EquityPoint
	lastTime  time.Time
	lastPrice float64

	log *slog.Logger
}

// New creates a Simulator with the given configuration.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:  cfg,
		cash: cfg.InitialCapital,
		log:  slog.Default().With("component", "sim"),
	}
}

// ExecuteSignal processes one prediction against the bar price at its
// timestamp. Predictions must arrive in strictly increasing timestamp
// order; anything else is an upstream defect and fails loudly. It returns
// the Trade realized by this step, if any.
func (s *Simulator) ExecuteSignal(p domain.Prediction, price float64) (*domain.Trade, error) {
	if err := s.advanceClock(p.Timestamp); err != nil {
		return nil, err
	}
	s.lastPrice = price

	var closed *domain.Trade

	switch {
	case p.Signal == domain.SignalFlat:
		if s.positionOpen() && p.Confidence >= s.cfg.ExitConfidenceThreshold {
			closed = s.closePosition(p.Timestamp, price)
		}

	case s.positionOpen() && p.Signal != s.position.Direction:
		// Reversal: close the old position, then evaluate a new entry from
		// the same prediction.
		closed = s.closePosition(p.Timestamp, price)
		if p.Confidence >= s.cfg.EntryConfidenceThreshold {
			if err := s.openPosition(p, price); err != nil {
				return closed, err
			}
		}

	case s.positionOpen():
		// Signal agrees with the open position: hold, no pyramiding.

	case p.Confidence >= s.cfg.EntryConfidenceThreshold:
		if err := s.openPosition(p, price); err != nil {
			return nil, err
		}
	}

	s.appendEquityPoint(p.Timestamp, price)
	return closed, nil
}

// MarkToMarket records account state at a bar with no prediction. It
// updates unrealized equity without creating a trade.
func (s *Simulator) MarkToMarket(t time.Time, price float64) error {
	if err := s.advanceClock(t); err != nil {
		return err
	}
	s.lastPrice = price
	s.appendEquityPoint(t, price)
	return nil
}

// CloseAll closes any open position at the given timestamp and price so the
// ledger is complete at the end of a range. Calling it with no open
// position is a no-op.
func (s *Simulator) CloseAll(t time.Time, price float64) ([]domain.Trade, error) {
	if !s.positionOpen() {
		return nil, nil
	}
	if err := s.advanceClock(t); err != nil {
		return nil, err
	}
	s.lastPrice = price

	closed := s.closePosition(t, price)
	s.appendEquityPoint(t, price)
	return []domain.Trade{*closed}, nil
}

// Trades returns the realized trade ledger in close order.
func (s *Simulator) Trades() []domain.Trade { return s.trades }

// EquityCurve returns one point per processed simulation step.
func (s *Simulator) EquityCurve() []domain.EquityPoint { return s.curve }

// Cash returns uninvested capital.
func (s *Simulator) Cash() float64 { return s.cash }

// Equity returns cash plus the open position marked at the last seen price.
func (s *Simulator) Equity() float64 {
	if !s.positionOpen() {
		return s.cash
	}
	return s.cash + s.position.MarketValue(s.lastPrice)
}

// PositionOpen reports whether a position is currently held.
func (s *Simulator) PositionOpen() bool { return s.positionOpen() }

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (s *Simulator) positionOpen() bool {
	return s.position != nil && s.position.Open
}

// advanceClock enforces strictly increasing processing time.
func (s *Simulator) advanceClock(t time.Time) error {
	if !s.lastTime.IsZero() && !t.After(s.lastTime) {
		return &domain.OutOfOrderSignalError{Last: s.lastTime, Got: t}
	}
	s.lastTime = t
	return nil
}

// openPosition sizes and opens a new position at the prediction's price.
// The fill price moves against the trade by the slippage rate; commission
// is charged on the filled notional.
func (s *Simulator) openPosition(p domain.Prediction, price float64) error {
	frac := sizeFraction(p.Confidence, s.cfg.MaxPositionSize)
	notional := frac * s.cash

	fill := price * (1 + s.cfg.SlippageRate)
	if p.Signal == domain.SignalShort {
		fill = price * (1 - s.cfg.SlippageRate)
	}

	units := notional / fill
	commission := s.cfg.CommissionRate * notional
	required := notional + commission

	if required > s.cash {
		// Never clamp: an oversized request means the sizing formula is
		// broken, and a clamped backtest would quietly report wrong numbers.
		return &domain.InsufficientCapitalError{Required: required, Available: s.cash}
	}

	s.cash -= required
	s.position = &domain.Position{
		EntryTimestamp: p.Timestamp,
		EntryPrice:     fill,
		Direction:      p.Signal,
		SizeFraction:   frac,
		Units:          units,
		Open:           true,
	}
	s.entrySymbol = p.Symbol
	s.entryRawPrice = price
	s.entryCommPaid = commission
	s.entrySlipCost = units * price * s.cfg.SlippageRate

	s.log.Debug("position opened",
		"timestamp", p.Timestamp, "direction", p.Signal.String(),
		"size_fraction", frac, "units", units, "fill", fill)
	return nil
}

// closePosition realizes the open position at the given raw price and
// appends an immutable Trade. Trade prices are the raw decision prices;
// slippage appears as an explicit cost, so net pnl equals the exact cash
// delta of the round trip.
func (s *Simulator) closePosition(t time.Time, price float64) *domain.Trade {
	pos := s.position

	exitFill := price * (1 - s.cfg.SlippageRate)
	if pos.Direction == domain.SignalShort {
		exitFill = price * (1 + s.cfg.SlippageRate)
	}

	proceeds := pos.Units * exitFill
	if pos.Direction == domain.SignalShort {
		proceeds = pos.Units * (2*pos.EntryPrice - exitFill)
	}

	exitCommission := s.cfg.CommissionRate * pos.Units * exitFill
	exitSlip := pos.Units * price * s.cfg.SlippageRate

	s.cash += proceeds - exitCommission

	gross := (price - s.entryRawPrice) * pos.Direction.Direction() * pos.Units
	commTotal := s.entryCommPaid + exitCommission
	slipTotal := s.entrySlipCost + exitSlip

	trade := domain.Trade{
		Symbol:         s.entrySymbol,
		EntryTimestamp: pos.EntryTimestamp,
		ExitTimestamp:  t,
		EntryPrice:     s.entryRawPrice,
		ExitPrice:      price,
		Direction:      pos.Direction,
		SizeFraction:   pos.SizeFraction,
		Units:          pos.Units,
		GrossPnL:       gross,
		CommissionPaid: commTotal,
		SlippageCost:   slipTotal,
		NetPnL:         gross - commTotal - slipTotal,
		HoldingPeriod:  t.Sub(pos.EntryTimestamp),
	}

	pos.Open = false
	s.position = nil
	s.trades = append(s.trades, trade)

	s.log.Debug("position closed",
		"entry", trade.EntryTimestamp, "exit", t,
		"gross_pnl", trade.GrossPnL, "net_pnl", trade.NetPnL)
	return &s.trades[len(s.trades)-1]
}

// appendEquityPoint records cash, open position value, and total equity.
// The identity cash + position value == total equity holds exactly at every
// step.
func (s *Simulator) appendEquityPoint(t time.Time, price float64) {
	posValue := 0.0
	if s.positionOpen() {
		posValue = s.position.MarketValue(price)
	}
	s.curve = append(s.curve, domain.EquityPoint{
		Timestamp:     t,
		Cash:          s.cash,
		PositionValue: posValue,
		TotalEquity:   s.cash + posValue,
	})
}
