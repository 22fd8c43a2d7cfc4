package domain

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fieldMap names the source keys that feed each canonical field.
type fieldMap struct {
	latitude   string
	longitude  string
	timestamp  string
	brightness string
	hasNames   bool
}

var (
	localFields  = fieldMap{latitude: "latitude", longitude: "longitude", timestamp: "timestamp", brightness: "brightness_rating", hasNames: true}
	remoteFields = fieldMap{latitude: "lat", longitude: "long", timestamp: "created_at", brightness: "brightness_level"}
)

// timestampLayouts are tried in order. Layouts without a zone are parsed as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts a raw store record into a canonical Submission.
// Local-file records use the canonical snake_case keys; remote-table rows use
// lat, long, created_at, and brightness_level and never carry constellations.
func Normalize(raw RawRecord) (Submission, error) {
	fm := localFields
	if raw.Source == SourceRemote {
		fm = remoteFields
	}

	malformed := func(field string, err error) error {
		return &MalformedRecordError{Source: raw.Source, Index: raw.Index, Field: field, Err: err}
	}

	lat, err := toFloat(raw.Fields[fm.latitude])
	if err == nil {
		err = inRange(lat, -90, 90)
	}
	if err != nil {
		return Submission{}, malformed(fm.latitude, err)
	}
	lon, err := toFloat(raw.Fields[fm.longitude])
	if err == nil {
		err = inRange(lon, -180, 180)
	}
	if err != nil {
		return Submission{}, malformed(fm.longitude, err)
	}
	brightness, err := toInt(raw.Fields[fm.brightness])
	if err == nil {
		err = inRange(brightness, MinBrightness, MaxBrightness)
	}
	if err != nil {
		return Submission{}, malformed(fm.brightness, err)
	}
	ts, err := toTimestamp(raw.Fields[fm.timestamp])
	if err != nil {
		return Submission{}, malformed(fm.timestamp, err)
	}

	sub := Submission{
		ID:                 toString(raw.Fields["id"]),
		PhotoURL:           toString(raw.Fields["photo_url"]),
		Latitude:           lat,
		Longitude:          lon,
		Timestamp:          ts,
		BrightnessRating:   brightness,
		ConstellationNames: []string{},
	}
	if fm.hasNames {
		sub.ConstellationName = toString(raw.Fields["constellation_name"])
		names, err := toStrings(raw.Fields["constellation_names"])
		if err != nil {
			return Submission{}, malformed("constellation_names", err)
		}
		sub.ConstellationNames = names
	}
	return sub, nil
}

// NormalizeAll normalizes every record and returns the table sorted by
// timestamp ascending, ties broken by id. The first malformed record fails
// the whole load: skipping it would skew aggregates without a trace.
func NormalizeAll(raws []RawRecord) ([]Submission, error) {
	table := make([]Submission, 0, len(raws))
	for _, raw := range raws {
		sub, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		table = append(table, sub)
	}
	SortByTimestamp(table)
	return table, nil
}

// SortByTimestamp orders the table by timestamp ascending, then by id.
func SortByTimestamp(table []Submission) {
	slices.SortStableFunc(table, func(a, b Submission) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// ParseTimestamp parses an ISO-8601-like string into a UTC instant. Strings
// without zone information are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func inRange[T int | float64](v, lo, hi T) error {
	if v < lo || v > hi {
		return fmt.Errorf("value %v outside [%v, %v]", v, lo, hi)
	}
	return nil
}

func toTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return ParseTimestamp(t)
	case nil:
		return time.Time{}, errors.New("missing value")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}

// toInt accepts integral values only; 3.5 is not a brightness rating.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integral value %v", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int cannot hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows int", f)
	}
	return int(f), nil
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case [16]byte:
		return uuid.UUID(s).String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func toStrings(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return slices.Clone(list), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported list element type %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported list type %T", v)
	}
}
