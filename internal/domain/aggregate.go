package domain

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// Granularity is the width of an aggregation bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts day/week/month (any case) and the short forms D/W/M.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "d", "daily":
		return Day, nil
	case "week", "w", "weekly":
		return Week, nil
	case "month", "m", "monthly":
		return Month, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// Truncate returns the start of the bucket containing t, in UTC. Weeks start
// on Monday; months on the 1st.
func (g Granularity) Truncate(t time.Time) time.Time {
	day := StartOfDay(t.UTC())
	switch g {
	case Week:
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Bucket is one point of a brightness time series.
type Bucket struct {
	Start          time.Time `json:"bucket_start"`
	MeanBrightness float64   `json:"mean_brightness"`
	Count          int       `json:"count"`
}

// Timeseries returns the mean brightness per bucket, ordered by bucket start.
// Buckets without records are omitted rather than zero-filled, so consumers
// must expect gaps on the time axis. The sequence is computed when ranged
// over and may be ranged over any number of times.
func Timeseries(table []Submission, g Granularity) iter.Seq[Bucket] {
	return func(yield func(Bucket) bool) {
		if len(table) == 0 {
			return
		}
		type acc struct {
			sum   int
			count int
		}
		groups := make(map[time.Time]*acc)
		for i := range table {
			key := g.Truncate(table[i].Timestamp)
			a, ok := groups[key]
			if !ok {
				a = &acc{}
				groups[key] = a
			}
			a.sum += table[i].BrightnessRating
			a.count++
		}

		starts := make([]time.Time, 0, len(groups))
		for k := range groups {
			starts = append(starts, k)
		}
		slices.SortFunc(starts, time.Time.Compare)

		for _, start := range starts {
			a := groups[start]
			b := Bucket{Start: start, MeanBrightness: float64(a.sum) / float64(a.count), Count: a.count}
			if !yield(b) {
				return
			}
		}
	}
}
