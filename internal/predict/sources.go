package predict

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"galileo/internal/domain"
)

// Compile-time interface checks.
var _ SignalSource = (*SMACrossSource)(nil)
var _ SignalSource = (*MeanReversionSource)(nil)

// ---------------------------------------------------------------------------
// SMACrossSource
// ---------------------------------------------------------------------------

// SMACrossSource signals long when the short-period moving average of closes
// sits above the long-period one, short when below. Confidence grows with
// the relative divergence of the two averages.
type SMACrossSource struct {
	ShortPeriod int
	LongPeriod  int

	// Sensitivity scales relative SMA divergence into confidence; with the
	// default 20, a 5% divergence maps to full confidence.
	Sensitivity float64
}

// NewSMACrossSource creates an SMACrossSource with the given periods.
func NewSMACrossSource(short, long int) *SMACrossSource {
	return &SMACrossSource{ShortPeriod: short, LongPeriod: long, Sensitivity: 20}
}

// Name returns "sma-cross".
func (s *SMACrossSource) Name() string { return "sma-cross" }

// Predict computes both moving averages over the visible bars.
func (s *SMACrossSource) Predict(bars []domain.Bar) (domain.Signal, float64, error) {
	if len(bars) < s.LongPeriod {
		return domain.SignalFlat, 0, fmt.Errorf("sma-cross: need %d bars, have %d", s.LongPeriod, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	shortSMA, err := stats.Mean(closes[len(closes)-s.ShortPeriod:])
	if err != nil {
		return domain.SignalFlat, 0, err
	}
	longSMA, err := stats.Mean(closes[len(closes)-s.LongPeriod:])
	if err != nil {
		return domain.SignalFlat, 0, err
	}
	if longSMA == 0 {
		return domain.SignalFlat, 0, nil
	}

	divergence := (shortSMA - longSMA) / longSMA
	confidence := math.Min(1, math.Abs(divergence)*s.Sensitivity)

	switch {
	case divergence > 0:
		return domain.SignalLong, confidence, nil
	case divergence < 0:
		return domain.SignalShort, confidence, nil
	default:
		return domain.SignalFlat, 0, nil
	}
}

// ---------------------------------------------------------------------------
// MeanReversionSource
// ---------------------------------------------------------------------------

// MeanReversionSource bets against stretched moves: when the last close sits
// more than EntryZ standard deviations above the trailing mean it signals
// short, and long when below. Confidence grows with the z-score.
type MeanReversionSource struct {
	Window int
	EntryZ float64
}

// NewMeanReversionSource creates a MeanReversionSource over the given
// trailing window.
func NewMeanReversionSource(window int) *MeanReversionSource {
	return &MeanReversionSource{Window: window, EntryZ: 1.0}
}

// Name returns "mean-reversion".
func (s *MeanReversionSource) Name() string { return "mean-reversion" }

// Predict computes the z-score of the last close against the trailing
// window.
func (s *MeanReversionSource) Predict(bars []domain.Bar) (domain.Signal, float64, error) {
	if len(bars) < s.Window {
		return domain.SignalFlat, 0, fmt.Errorf("mean-reversion: need %d bars, have %d", s.Window, len(bars))
	}

	window := make([]float64, s.Window)
	for i, b := range bars[len(bars)-s.Window:] {
		window[i] = b.Close
	}

	mean, err := stats.Mean(window)
	if err != nil {
		return domain.SignalFlat, 0, err
	}
	sd, err := stats.StandardDeviation(window)
	if err != nil {
		return domain.SignalFlat, 0, err
	}
	if sd == 0 {
		// Zero-variance window: nothing is stretched.
		return domain.SignalFlat, 0, nil
	}

	z := (window[len(window)-1] - mean) / sd
	if math.Abs(z) < s.EntryZ {
		return domain.SignalFlat, 0, nil
	}

	confidence := math.Min(1, math.Abs(z)/3)
	if z > 0 {
		return domain.SignalShort, confidence, nil
	}
	return domain.SignalLong, confidence, nil
}
