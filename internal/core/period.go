package core

import (
	"fmt"
	"time"
)

// Period is the half-open range [Start, End) covering one calendar month.
type Period struct {
	Start time.Time
	End   time.Time
}

// ResolvePeriod returns the calendar month `month` (0-11) of `year` in loc.
// Out-of-range months roll over the calendar (12 of 2024 is January 2025),
// so every input resolves. A nil loc means UTC.
func ResolvePeriod(month, year int, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	// time.Date normalizes month overflow in both directions.
	start := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	end := time.Date(year, time.Month(month+2), 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: end}
}

// Contains reports whether t lies in [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// YearMonth identifies a calendar month. Month is zero based (January = 0).
type YearMonth struct {
	Year  int
	Month int
}

// NewYearMonth normalizes month into 0-11, carrying into the year.
func NewYearMonth(year, month int) YearMonth {
	total := year*12 + month
	y := total / 12
	m := total % 12
	if m < 0 {
		m += 12
		y--
	}
	return YearMonth{Year: y, Month: m}
}

// YearMonthOf returns the month containing t, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month()) - 1}
}

// Shift moves delta months forward (or backward when negative).
func (ym YearMonth) Shift(delta int) YearMonth {
	return NewYearMonth(ym.Year, ym.Month+delta)
}

func (ym YearMonth) Period(loc *time.Location) Period {
	return ResolvePeriod(ym.Month, ym.Year, loc)
}

// String renders the month as YYYY-MM with a one based month.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month+1)
}
