package util

import "time"

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// not modeled here; gap detection treats missing holidays as tolerable via
// its configured tolerance instead.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// TradingDaysBetween counts weekdays strictly between a and b (exclusive on
// both ends). It returns 0 when b is not after a.
func TradingDaysBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	count := 0
	for d := a.AddDate(0, 0, 1); d.Before(b); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			count++
		}
	}
	return count
}

// SameWeek reports whether a and b fall in the same ISO week.
func SameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
