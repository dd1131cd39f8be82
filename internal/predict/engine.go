// Package predict implements the walk-forward prediction engine. It slices
// history so that no signal source ever sees a bar at or after the timestamp
// it is predicting for, and combines multiple sources into one ensemble
// signal.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"galileo/internal/domain"
	"galileo/internal/util"
)

// SignalSource is the opaque prediction collaborator. Predict must be a pure
// function of the visible bars; the engine hands it nothing else.
type SignalSource interface {
	// Name identifies the source in emitted predictions.
	Name() string

	// Predict returns a directional signal and a confidence in [0,1]
	// computed from the visible bars only.
	Predict(bars []domain.Bar) (domain.Signal, float64, error)
}

// Frequency is the prediction cadence.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency validates a cadence string.
func ParseFrequency(v string) (Frequency, error) {
	switch Frequency(v) {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(v), nil
	}
	return "", fmt.Errorf("unknown prediction frequency %q", v)
}

// Engine runs walk-forward prediction over a validated series.
type Engine struct {
	// MinBars is the minimum visible-slice length required before a
	// timestamp is evaluated; shorter slices are skipped, not errors.
	MinBars int

	// ConfidenceThreshold is the minimum absolute ensemble score required
	// for a directional signal; below it the combined signal is flat. A
	// score exactly on the threshold counts as crossing.
	ConfidenceThreshold float64

	// Weights are the per-source ensemble weights, parallel to the sources
	// passed to WalkForward. Empty means equal weights. They are normalized
	// to sum to 1 before combining.
	Weights []float64

	log *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(minBars int, confidenceThreshold float64, weights []float64) *Engine {
	return &Engine{
		MinBars:             minBars,
		ConfidenceThreshold: confidenceThreshold,
		Weights:             weights,
		log:                 slog.Default().With("component", "predict"),
	}
}

// WalkForward emits one prediction per surviving evaluation timestamp, in
// increasing timestamp order. For each timestamp t the visible slice is the
// half-open window [t-lookback, t): the bar at t and everything after it is
// never exposed to any source.
//
// A source that fails for one timestamp contributes flat with confidence 0
// for that step and is logged; the run continues.
func (e *Engine) WalkForward(
	ctx context.Context,
	series *domain.Series,
	start, end time.Time,
	freq Frequency,
	lookback int,
	sources []SignalSource,
) ([]domain.Prediction, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("walk-forward over %s: no signal sources configured", series.Symbol)
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("walk-forward over %s: lookback must be positive, got %d", series.Symbol, lookback)
	}

	weights, err := e.normalizedWeights(len(sources))
	if err != nil {
		return nil, err
	}

	grid := evaluationGrid(series, start, end, freq)

	var predictions []domain.Prediction
	for _, idx := range grid {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lo := idx - lookback
		if lo < 0 {
			lo = 0
		}
		visible := series.Bars[lo:idx]
		if len(visible) < e.MinBars {
			continue
		}

		bar := series.Bars[idx]
		votes := make([]vote, len(sources))
		for i, src := range sources {
			sig, conf, err := src.Predict(visible)
			if err != nil {
				e.log.Warn("signal source failed, treating as flat",
					"source", src.Name(), "timestamp", bar.Timestamp, "err", err)
				sig, conf = domain.SignalFlat, 0
			}
			votes[i] = vote{signal: sig, confidence: clamp01(conf)}
		}

		var p domain.Prediction
		if len(sources) == 1 {
			p = domain.Prediction{
				Timestamp:   bar.Timestamp,
				Symbol:      series.Symbol,
				Signal:      votes[0].signal,
				Confidence:  votes[0].confidence,
				SourceModel: sources[0].Name(),
			}
		} else {
			sig, conf := e.combine(votes, weights)
			p = domain.Prediction{
				Timestamp:   bar.Timestamp,
				Symbol:      series.Symbol,
				Signal:      sig,
				Confidence:  conf,
				SourceModel: ensembleName(sources),
			}
		}
		predictions = append(predictions, p)
	}

	return predictions, nil
}

type vote struct {
	signal     domain.Signal
	confidence float64
}

// combine folds the per-source votes into one signal via weighted vote. The
// score is Σ weight·confidence·direction; agreeing sources add, disagreeing
// sources subtract. With normalized weights and confidences in [0,1] the
// absolute score is already in [0,1] and becomes the combined confidence.
func (e *Engine) combine(votes []vote, weights []float64) (domain.Signal, float64) {
	score := 0.0
	for i, v := range votes {
		score += weights[i] * v.confidence * v.signal.Direction()
	}

	conf := clamp01(math.Abs(score))
	switch {
	case score >= e.ConfidenceThreshold:
		return domain.SignalLong, conf
	case -score >= e.ConfidenceThreshold:
		return domain.SignalShort, conf
	default:
		return domain.SignalFlat, conf
	}
}

func (e *Engine) normalizedWeights(n int) ([]float64, error) {
	weights := e.Weights
	if len(weights) == 0 {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != n {
		return nil, fmt.Errorf("ensemble weights: got %d weights for %d sources", len(weights), n)
	}

	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("ensemble weights: negative weight %v", w)
		}
		sum += w
	}
	if sum == 0 {
		return nil, fmt.Errorf("ensemble weights: weights sum to zero")
	}

	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized, nil
}

// evaluationGrid returns the indices of series bars that serve as evaluation
// timestamps: every in-range bar for daily cadence, the first in-range bar
// of each week or month otherwise. Duplicates are impossible by construction
// since the grid is enumerated from the validated series.
func evaluationGrid(series *domain.Series, start, end time.Time, freq Frequency) []int {
	var grid []int
	var last time.Time
	for i, b := range series.Bars {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		switch freq {
		case FrequencyWeekly:
			if len(grid) > 0 && util.SameWeek(last, b.Timestamp) {
				continue
			}
		case FrequencyMonthly:
			if len(grid) > 0 && util.SameMonth(last, b.Timestamp) {
				continue
			}
		}
		grid = append(grid, i)
		last = b.Timestamp
	}
	return grid
}

func ensembleName(sources []SignalSource) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return "ensemble(" + strings.Join(names, ",") + ")"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
