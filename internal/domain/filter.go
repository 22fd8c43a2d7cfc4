package domain

import (
	"strings"
	"time"
)

// Every stage below returns a new slice holding the kept rows in their
// original order; the input table is never modified.

// FilterMinBrightness keeps rows rated at least minRating (inclusive).
func FilterMinBrightness(table []Submission, minRating int) []Submission {
	return keep(table, func(s *Submission) bool {
		return s.BrightnessRating >= minRating
	})
}

// FilterConstellation keeps rows where substr occurs, case-insensitively, in
// any of the row's constellations. An empty substr disables the stage.
func FilterConstellation(table []Submission, substr string) []Submission {
	if substr == "" {
		return keep(table, func(*Submission) bool { return true })
	}
	needle := strings.ToLower(substr)
	return keep(table, func(s *Submission) bool {
		for _, name := range s.Constellations() {
			if strings.Contains(strings.ToLower(name), needle) {
				return true
			}
		}
		return false
	})
}

// FilterDateRange keeps rows whose timestamp falls within the whole UTC days
// [start, end], both inclusive. A zero start or end leaves that side open.
// Only the calendar date of each bound is used, read in the bound's own zone.
func FilterDateRange(table []Submission, start, end time.Time) []Submission {
	lo, hi := DayBounds(start, end)
	return keep(table, func(s *Submission) bool {
		ts := s.Timestamp.UTC()
		if !lo.IsZero() && ts.Before(lo) {
			return false
		}
		if !hi.IsZero() && ts.After(hi) {
			return false
		}
		return true
	})
}

// DayBounds resolves two calendar dates to the UTC instants
// [start of start day, end of end day]. Zero inputs stay zero.
func DayBounds(start, end time.Time) (time.Time, time.Time) {
	var lo, hi time.Time
	if !start.IsZero() {
		lo = StartOfDay(start)
	}
	if !end.IsZero() {
		hi = StartOfDay(end).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return lo, hi
}

// StartOfDay returns midnight UTC of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FilterRadius keeps rows whose great-circle distance from center is at
// most radiusKm.
func FilterRadius(table []Submission, center Point, radiusKm float64) []Submission {
	return keep(table, func(s *Submission) bool {
		return HaversineKm(center, s.Point()) <= radiusKm
	})
}

// Query bundles the attribute and date filters applied to the full table.
type Query struct {
	MinBrightness int
	Constellation string
	Start         time.Time
	End           time.Time
}

// Apply runs the brightness, constellation, and date stages in that order.
func (q Query) Apply(table []Submission) []Submission {
	out := FilterMinBrightness(table, q.MinBrightness)
	out = FilterConstellation(out, q.Constellation)
	return FilterDateRange(out, q.Start, q.End)
}

// Area is a circular region around Center.
type Area struct {
	Center   Point   `json:"center"`
	RadiusKm float64 `json:"radius_km"`
}

// Apply keeps rows inside the area.
func (a Area) Apply(table []Submission) []Submission {
	return FilterRadius(table, a.Center, a.RadiusKm)
}

// Span returns the calendar days of the earliest and latest rows. The table
// must already be sorted by timestamp. ok is false for an empty table.
func Span(table []Submission) (first, last time.Time, ok bool) {
	if len(table) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return StartOfDay(table[0].Timestamp.UTC()), StartOfDay(table[len(table)-1].Timestamp.UTC()), true
}

// Recent returns up to n rows, newest first.
func Recent(table []Submission, n int) []Submission {
	if n <= 0 {
		return []Submission{}
	}
	if n > len(table) {
		n = len(table)
	}
	out := make([]Submission, 0, n)
	for i := len(table) - 1; i >= len(table)-n; i-- {
		out = append(out, table[i])
	}
	return out
}

func keep(table []Submission, pred func(*Submission) bool) []Submission {
	out := make([]Submission, 0, len(table))
	for i := range table {
		if pred(&table[i]) {
			out = append(out, table[i])
		}
	}
	return out
}
