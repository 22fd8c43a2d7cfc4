// Command genmock writes a deterministic local-store JSON file of night-sky
// submissions for development and tests. Records deliberately mix timestamp
// formats and the legacy single constellation_name key so the output
// exercises normalization the way real submissions do. The generated file is
// read back through the domain package before it is reported.
//
// Usage:
//
//	go run ./cmd/genmock -out data/submissions.json -n 500 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// site is an observing location with a typical sky quality.
type site struct {
	name       string
	lat, lon   float64
	brightness int // mean rating, 1 (city) to 5 (dark site)
}

var sites = []site{
	{"Denver", 39.74, -104.99, 2},
	{"Boulder", 40.01, -105.27, 3},
	{"Rocky Mountain NP", 40.34, -105.68, 5},
	{"Great Sand Dunes", 37.73, -105.51, 5},
	{"Phoenix", 33.45, -112.07, 1},
	{"Flagstaff", 35.20, -111.65, 4},
	{"London", 51.51, -0.13, 1},
	{"Galloway Forest", 55.08, -4.41, 5},
}

var constellations = []string{
	"Orion", "Ursa Major", "Ursa Minor", "Cassiopeia", "Cygnus", "Lyra",
	"Scorpius", "Sagittarius", "Taurus", "Gemini", "Leo", "Andromeda",
}

// timestampFormats are the shapes seen in submitted data.
var timestampFormats = []func(time.Time) string{
	func(t time.Time) string { return t.Format(time.RFC3339) },
	func(t time.Time) string { return t.In(time.FixedZone("MST", -7*3600)).Format(time.RFC3339) },
	func(t time.Time) string { return t.Format("2006-01-02T15:04:05.000000") },
	func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the local-store JSON file")
	n := flag.Int("n", 200, "number of submissions")
	seed := flag.Uint64("seed", 1, "random seed")
	days := flag.Int("days", 365, "spread of timestamps in days from 2024-01-01")
	flag.Parse()

	if *out == "" || *n <= 0 || *days <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out, or non-positive -n/-days")
	}

	records, err := generate(*n, *days, *seed)
	if err != nil {
		return err
	}
	if err := writeJSON(*out, records); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %d records: %s", len(records), *out)

	return printStats(*out)
}

// generate returns n local-store records. The same seed always yields the
// same records.
func generate(n, days int, seed uint64) ([]map[string]any, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x5ca1ab1e))
	var idSeed [32]byte
	for i := range idSeed {
		idSeed[i] = byte(rng.UintN(256))
	}
	idSource := rand.NewChaCha8(idSeed)

	records := make([]map[string]any, 0, n)
	for i := range n {
		s := sites[rng.IntN(len(sites))]

		// Observations happen between 20:00 and 04:00 UTC.
		ts := baseDate.
			AddDate(0, 0, rng.IntN(days)).
			Add(20*time.Hour + time.Duration(rng.IntN(8*3600))*time.Second)

		id, err := domain.NewSubmissionIDFrom(ts, idSource)
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}

		rec := map[string]any{
			"id":                id,
			"photo_url":         fmt.Sprintf("https://photos.example.com/%s.jpg", id),
			"latitude":          jitter(rng, s.lat),
			"longitude":         jitter(rng, s.lon),
			"timestamp":         timestampFormats[rng.IntN(len(timestampFormats))](ts),
			"brightness_rating": clampRating(s.brightness + rng.IntN(3) - 1),
		}

		names := pickNames(rng)
		switch {
		case len(names) == 0:
		case i%7 == 0:
			rec["constellation_name"] = names[0]
		default:
			rec["constellation_names"] = names
		}
		records = append(records, rec)
	}
	return records, nil
}

func jitter(rng *rand.Rand, v float64) float64 {
	const spread = 0.25
	return float64(int((v+(rng.Float64()*2-1)*spread)*1e5)) / 1e5
}

func clampRating(r int) int {
	return min(max(r, domain.MinBrightness), domain.MaxBrightness)
}

func pickNames(rng *rand.Rand) []string {
	k := rng.IntN(4)
	if k == 0 {
		return nil
	}
	perm := rng.Perm(len(constellations))[:k]
	names := make([]string, k)
	for i, p := range perm {
		names[i] = constellations[p]
	}
	return names
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats normalizes the written file and reports what the query views
// would show for it.
func printStats(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	raws := make([]domain.RawRecord, len(entries))
	for i, e := range entries {
		raws[i] = domain.RawRecord{Source: domain.SourceLocal, Index: i, Fields: e}
	}
	table, err := domain.NormalizeAll(raws)
	if err != nil {
		return fmt.Errorf("generated data does not normalize: %w", err)
	}

	byRating := map[int]int{}
	for _, s := range table {
		byRating[s.BrightnessRating]++
	}
	fmt.Println("\nBrightness distribution:")
	for r := domain.MinBrightness; r <= domain.MaxBrightness; r++ {
		fmt.Printf("  %d: %d\n", r, byRating[r])
	}

	if first, last, ok := domain.Span(table); ok {
		fmt.Printf("\nDate span: %s to %s\n", first.Format("2006-01-02"), last.Format("2006-01-02"))
	}

	c := domain.Centroid(table)
	fmt.Printf("Centroid: %.4f, %.4f\n", c.Lat, c.Lon)
	for _, s := range sites[:2] {
		area := domain.FilterRadius(table, domain.Point{Lat: s.lat, Lon: s.lon}, domain.MilesToKm(50))
		fmt.Printf("Within 50 mi of %s: %d\n", s.name, len(area))
	}

	fmt.Println("\nMonthly mean brightness:")
	buckets := slices.Collect(domain.Timeseries(table, domain.Month))
	for _, b := range buckets {
		fmt.Printf("  %s  %.2f  (%d)\n", b.Start.Format("2006-01"), b.MeanBrightness, b.Count)
	}
	return nil
}
