package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDataUnavailable is returned when the external provider has no data for
// a requested symbol and date range.
var ErrDataUnavailable = errors.New("data unavailable")

// DataQualityError reports a series that failed hard validation after the
// provider retry. It carries the full validation report so callers can show
// exactly what was wrong.
type DataQualityError struct {
	Symbol string
	Report ValidationReport
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality failure for %s: %d hard issues", e.Symbol, len(e.Report.Issues))
}

// InsufficientCapitalError indicates the sizing formula requested more
// capital than the account holds. This is a defect, never clamped.
type InsufficientCapitalError struct {
	Required  float64
	Available float64
}

func (e *InsufficientCapitalError) Error() string {
	return fmt.Sprintf("insufficient capital: need %.2f, have %.2f", e.Required, e.Available)
}

// OutOfOrderSignalError indicates a prediction was fed to the simulator with
// a timestamp not after the previously processed one.
type OutOfOrderSignalError struct {
	Last time.Time
	Got  time.Time
}

func (e *OutOfOrderSignalError) Error() string {
	return fmt.Sprintf("out-of-order signal: got %s after processing %s",
		e.Got.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}

// ---------------------------------------------------------------------------
// Validation report
// ---------------------------------------------------------------------------

// IssueKind identifies a class of validation problem.
type IssueKind string

const (
	IssueMonotonicity IssueKind = "monotonicity"
	IssueOHLC         IssueKind = "ohlc"
	IssueGap          IssueKind = "gap"
	IssueOutlier      IssueKind = "outlier"
	IssueNonPositive  IssueKind = "nonpositive"
)

// Issue is one itemized validation finding.
type Issue struct {
	Kind     IssueKind
	BarIndex int
	Detail   string
}

// ValidationReport is the outcome of validating a series. Hard issues set
// IsValid to false and block the series from use; warnings do not.
type ValidationReport struct {
	IsValid  bool
	Issues   []Issue // hard issues, in check order
	Warnings []Issue // non-blocking findings, in check order
}
