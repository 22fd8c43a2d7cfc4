package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

const (
	dateLayout      = "2006-01-02"
	defaultRadiusMi = 500.0
	defaultRecentN  = 10
	maxRecentN      = 100

	// maxRadius is larger than any great-circle distance in km or miles.
	maxRadius = 25000.0
)

var errBadRequest = errors.New("bad request")

// paramError reports an unusable query parameter.
type paramError struct {
	param  string
	reason string
}

func (e *paramError) Error() string { return fmt.Sprintf("%s: %s", e.param, e.reason) }

func (e *paramError) Is(target error) bool { return target == errBadRequest }

// parseQuery reads the attribute and date filters. Every parameter is
// optional; absent ones disable their stage.
func parseQuery(v url.Values) (domain.Query, error) {
	var q domain.Query

	if s := v.Get("min_brightness"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > domain.MaxBrightness {
			return q, &paramError{"min_brightness", "must be an integer between 0 and 5"}
		}
		q.MinBrightness = n
	}
	q.Constellation = strings.TrimSpace(v.Get("constellation"))

	var err error
	if q.Start, err = parseDate(v, "start"); err != nil {
		return q, err
	}
	if q.End, err = parseDate(v, "end"); err != nil {
		return q, err
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return q, &paramError{"start", "must not be after end"}
	}
	return q, nil
}

func parseDate(v url.Values, key string) (time.Time, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &paramError{key, "must be a YYYY-MM-DD date"}
	}
	return t, nil
}

// parseArea reads the center and radius. Without lat and lon the center is
// the table's centroid; without a radius it is 500 miles.
func parseArea(v url.Values, table []domain.Submission) (domain.Area, error) {
	var area domain.Area

	latS, lonS := v.Get("lat"), v.Get("lon")
	switch {
	case latS == "" && lonS == "":
		area.Center = domain.Centroid(table)
	case latS == "" || lonS == "":
		return area, &paramError{"lat", "lat and lon must be given together"}
	default:
		lat, err := parseFloat(latS, -90, 90)
		if err != nil {
			return area, &paramError{"lat", err.Error()}
		}
		lon, err := parseFloat(lonS, -180, 180)
		if err != nil {
			return area, &paramError{"lon", err.Error()}
		}
		area.Center = domain.Point{Lat: lat, Lon: lon}
	}

	kmS, miS := v.Get("radius_km"), v.Get("radius_mi")
	switch {
	case kmS != "" && miS != "":
		return area, &paramError{"radius_km", "give radius_km or radius_mi, not both"}
	case kmS != "":
		km, err := parseFloat(kmS, 0, maxRadius)
		if err != nil {
			return area, &paramError{"radius_km", err.Error()}
		}
		area.RadiusKm = km
	case miS != "":
		mi, err := parseFloat(miS, 0, maxRadius)
		if err != nil {
			return area, &paramError{"radius_mi", err.Error()}
		}
		area.RadiusKm = domain.MilesToKm(mi)
	default:
		area.RadiusKm = domain.MilesToKm(defaultRadiusMi)
	}
	return area, nil
}

func parseFloat(s string, lo, hi float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	if f < lo || f > hi {
		return 0, fmt.Errorf("must be between %g and %g", lo, hi)
	}
	return f, nil
}

func parseRecentN(v url.Values) (int, error) {
	s := v.Get("n")
	if s == "" {
		return defaultRecentN, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxRecentN {
		return 0, &paramError{"n", fmt.Sprintf("must be an integer between 1 and %d", maxRecentN)}
	}
	return n, nil
}
