package domain

import "time"

// Source identifies which store variant produced a raw record.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// RawRecord is one unprocessed record as returned by a store variant.
// Fields holds the decoded JSON object (local file) or the row keyed by
// column name (remote table). Index is the record's position in the source.
type RawRecord struct {
	Source Source
	Index  int
	Fields map[string]any
}

// Submission is the canonical, normalized night-sky observation.
type Submission struct {
	ID                 string    `json:"id"`
	PhotoURL           string    `json:"photo_url"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Timestamp          time.Time `json:"timestamp"`
	BrightnessRating   int       `json:"brightness_rating"`
	ConstellationName  string    `json:"constellation_name"`
	ConstellationNames []string  `json:"constellation_names"`
}

// Constellations returns the effective constellation list: ConstellationNames
// when non-empty, otherwise the legacy single name when set.
func (s Submission) Constellations() []string {
	if len(s.ConstellationNames) > 0 {
		return s.ConstellationNames
	}
	if s.ConstellationName != "" {
		return []string{s.ConstellationName}
	}
	return nil
}

// Point returns the submission's location.
func (s Submission) Point() Point {
	return Point{Lat: s.Latitude, Lon: s.Longitude}
}

// Brightness rating bounds (inclusive).
const (
	MinBrightness = 1
	MaxBrightness = 5
)
