package domain

import (
	"errors"
	"testing"
	"time"
)

func testSeries(closes ...float64) *Series {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Symbol:    "TEST",
			Timestamp: base.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return &Series{Symbol: "TEST", Bars: bars}
}

func TestSignalString(t *testing.T) {
	cases := []struct {
		sig  Signal
		want string
	}{
		{SignalLong, "long"},
		{SignalShort, "short"},
		{SignalFlat, "flat"},
	}
	for _, c := range cases {
		if got := c.sig.String(); got != c.want {
			t.Errorf("Signal(%d).String() = %q, want %q", c.sig, got, c.want)
		}
	}
}

func TestParseSignalRoundTrip(t *testing.T) {
	for _, sig := range []Signal{SignalFlat, SignalLong, SignalShort} {
		got, err := ParseSignal(sig.String())
		if err != nil {
			t.Fatalf("ParseSignal(%q): %v", sig.String(), err)
		}
		if got != sig {
			t.Errorf("ParseSignal(%q) = %v, want %v", sig.String(), got, sig)
		}
	}
	if _, err := ParseSignal("sideways"); err == nil {
		t.Error("ParseSignal accepted unknown value")
	}
}

func TestSignalDirection(t *testing.T) {
	if SignalLong.Direction() != 1 || SignalShort.Direction() != -1 || SignalFlat.Direction() != 0 {
		t.Error("Direction() returned unexpected values")
	}
}

func TestSeriesIndexAtOrAfter(t *testing.T) {
	s := testSeries(10, 11, 12, 13)

	// Exact timestamp of bar 2.
	if idx := s.IndexAtOrAfter(s.Bars[2].Timestamp); idx != 2 {
		t.Errorf("IndexAtOrAfter(bar 2 ts) = %d, want 2", idx)
	}
	// Before the first bar.
	if idx := s.IndexAtOrAfter(s.Bars[0].Timestamp.Add(-time.Hour)); idx != 0 {
		t.Errorf("IndexAtOrAfter(before start) = %d, want 0", idx)
	}
	// After the last bar.
	if idx := s.IndexAtOrAfter(s.Bars[3].Timestamp.Add(time.Hour)); idx != s.Len() {
		t.Errorf("IndexAtOrAfter(after end) = %d, want %d", idx, s.Len())
	}
}

func TestSeriesSortedByTimestamp(t *testing.T) {
	s := testSeries(10, 11, 12)
	if !s.SortedByTimestamp() {
		t.Error("SortedByTimestamp() = false for ordered series")
	}

	// Duplicate timestamp breaks ordering.
	s.Bars[2].Timestamp = s.Bars[1].Timestamp
	if s.SortedByTimestamp() {
		t.Error("SortedByTimestamp() = true with duplicate timestamp")
	}
}

func TestPositionMarketValue(t *testing.T) {
	long := &Position{EntryPrice: 100, Direction: SignalLong, Units: 10, Open: true}
	if got := long.MarketValue(110); got != 1100 {
		t.Errorf("long MarketValue(110) = %v, want 1100", got)
	}

	short := &Position{EntryPrice: 100, Direction: SignalShort, Units: 10, Open: true}
	// Short gains as price falls: 10 * (200 - 90) = 1100.
	if got := short.MarketValue(90); got != 1100 {
		t.Errorf("short MarketValue(90) = %v, want 1100", got)
	}

	closed := &Position{EntryPrice: 100, Units: 10, Open: false}
	if got := closed.MarketValue(110); got != 0 {
		t.Errorf("closed MarketValue = %v, want 0", got)
	}
}

func TestTypedErrors(t *testing.T) {
	var dq *DataQualityError
	err := error(&DataQualityError{Symbol: "AAPL"})
	if !errors.As(err, &dq) {
		t.Error("errors.As failed for DataQualityError")
	}

	oo := &OutOfOrderSignalError{
		Last: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Got:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if oo.Error() == "" {
		t.Error("OutOfOrderSignalError.Error() is empty")
	}

	ic := &InsufficientCapitalError{Required: 2000, Available: 1000}
	if ic.Error() == "" {
		t.Error("InsufficientCapitalError.Error() is empty")
	}
}
