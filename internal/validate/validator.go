// Package validate inspects a loaded price series for integrity problems:
// ordering defects, impossible OHLC values, calendar gaps, and return
// outliers. Hard issues block a series from use; warnings are surfaced only.
package validate

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"galileo/internal/domain"
	"galileo/internal/util"
)

// Validator checks bar series against the engine's integrity rules.
type Validator struct {
	// GapToleranceDays is the number of missing trading days between two
	// consecutive bars tolerated before a gap warning is raised.
	GapToleranceDays int

	// OutlierThreshold is the number of trailing-return standard deviations
	// beyond which a single-bar return is flagged.
	OutlierThreshold float64

	// MinReturns is the minimum trailing-return sample size before outlier
	// checks engage.
	MinReturns int
}

// New creates a Validator with the given thresholds.
func New(gapToleranceDays int, outlierThreshold float64, minReturns int) *Validator {
	return &Validator{
		GapToleranceDays: gapToleranceDays,
		OutlierThreshold: outlierThreshold,
		MinReturns:       minReturns,
	}
}

// Validate runs every check against the series and returns an itemized
// report. Checks run in a fixed order; each produces a distinct issue kind.
func (v *Validator) Validate(series *domain.Series) domain.ValidationReport {
	report := domain.ValidationReport{IsValid: true}

	v.checkMonotonicity(series, &report)
	v.checkOHLC(series, &report)
	v.checkGaps(series, &report)
	v.checkOutliers(series, &report)
	v.checkNonPositive(series, &report)

	report.IsValid = len(report.Issues) == 0
	return report
}

// checkMonotonicity flags any timestamp that does not strictly increase.
// Duplicates and decreases are both hard issues.
func (v *Validator) checkMonotonicity(series *domain.Series, report *domain.ValidationReport) {
	for i := 1; i < len(series.Bars); i++ {
		prev, cur := series.Bars[i-1].Timestamp, series.Bars[i].Timestamp
		if !cur.After(prev) {
			report.Issues = append(report.Issues, domain.Issue{
				Kind:     domain.IssueMonotonicity,
				BarIndex: i,
				Detail:   fmt.Sprintf("timestamp %s does not follow %s", cur, prev),
			})
		}
	}
}

// checkOHLC verifies low ≤ open,close ≤ high for every bar.
func (v *Validator) checkOHLC(series *domain.Series, report *domain.ValidationReport) {
	for i, b := range series.Bars {
		if b.Low > b.Open || b.Low > b.Close || b.Open > b.High || b.Close > b.High || b.Low > b.High {
			report.Issues = append(report.Issues, domain.Issue{
				Kind:     domain.IssueOHLC,
				BarIndex: i,
				Detail:   fmt.Sprintf("inconsistent OHLC o=%g h=%g l=%g c=%g", b.Open, b.High, b.Low, b.Close),
			})
		}
	}
}

// checkGaps warns when more than GapToleranceDays expected trading days are
// missing between consecutive bars. Markets have holidays, so a gap is never
// a hard failure.
func (v *Validator) checkGaps(series *domain.Series, report *domain.ValidationReport) {
	for i := 1; i < len(series.Bars); i++ {
		prev, cur := series.Bars[i-1].Timestamp, series.Bars[i].Timestamp
		if !cur.After(prev) {
			continue // already reported by monotonicity
		}
		missing := util.TradingDaysBetween(prev, cur)
		if missing > v.GapToleranceDays {
			report.Warnings = append(report.Warnings, domain.Issue{
				Kind:     domain.IssueGap,
				BarIndex: i,
				Detail:   fmt.Sprintf("%d missing trading days before %s", missing, cur.Format("2006-01-02")),
			})
		}
	}
}

// checkOutliers warns when a bar's close-to-close return deviates from the
// trailing return distribution by more than OutlierThreshold standard
// deviations. Real crashes and splits produce large moves, so this is a
// warning, never a hard failure.
func (v *Validator) checkOutliers(series *domain.Series, report *domain.ValidationReport) {
	bars := series.Bars
	if len(bars) < 2 {
		return
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		if prevClose <= 0 {
			continue // reported by the non-positive check
		}
		r := bars[i].Close/prevClose - 1

		if len(returns) >= v.MinReturns {
			mean, merr := stats.Mean(returns)
			sd, serr := stats.StandardDeviation(returns)
			if merr == nil && serr == nil && sd > 0 {
				if math.Abs(r-mean) > v.OutlierThreshold*sd {
					report.Warnings = append(report.Warnings, domain.Issue{
						Kind:     domain.IssueOutlier,
						BarIndex: i,
						Detail:   fmt.Sprintf("return %.4f deviates more than %.1f sigma from trailing mean", r, v.OutlierThreshold),
					})
				}
			}
		}

		returns = append(returns, r)
	}
}

// checkNonPositive flags non-positive prices and negative volumes as hard
// issues. A zero-volume bar is legal (halted sessions); negative volume is
// not.
func (v *Validator) checkNonPositive(series *domain.Series, report *domain.ValidationReport) {
	for i, b := range series.Bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			report.Issues = append(report.Issues, domain.Issue{
				Kind:     domain.IssueNonPositive,
				BarIndex: i,
				Detail:   fmt.Sprintf("non-positive price o=%g h=%g l=%g c=%g", b.Open, b.High, b.Low, b.Close),
			})
			continue
		}
		if b.Volume < 0 {
			report.Issues = append(report.Issues, domain.Issue{
				Kind:     domain.IssueNonPositive,
				BarIndex: i,
				Detail:   fmt.Sprintf("negative volume %d", b.Volume),
			})
		}
	}
}
