// Command validate checks the integrity of a local submissions file before
// it is served or migrated: every record must normalize, carry in-range
// values, and have a unique id. Unlike a table load, which stops at the
// first malformed record, validate reports every problem it finds.
//
// Usage:
//
//	go run ./cmd/validate -file data/submissions.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/skylore-service/internal/adapter/jsonfile"
	"github.com/couchcryptid/skylore-service/internal/domain"
)

// futureSlack tolerates clock skew on submitting devices.
const futureSlack = 24 * time.Hour

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", os.Getenv("LOCAL_DATA_PATH"), "local submissions JSON file")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*file, os.Stdout))
}

func run(path string, out io.Writer) int {
	fmt.Fprintln(out, "=== SkyLore Submission Integrity Validation ===")
	fmt.Fprintln(out)

	store, err := jsonfile.NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	raws, err := store.FetchAll(context.Background())
	if err != nil {
		fmt.Fprintf(out, "FATAL: load %s: %v\n", path, err)
		return 1
	}

	subs, normalize := validateNormalization(raws)
	phases := []*phase{
		normalize,
		validateRanges(subs),
		validateIdentifiers(subs),
		validateTimestamps(subs, domain.Now()),
		validateConstellations(subs),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d in file, %d normalized\n", len(raws), len(subs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// indexed pairs a normalized submission with its position in the file.
type indexed struct {
	index int
	sub   domain.Submission
}

// validateNormalization normalizes every record independently so all
// malformed records are reported, not just the first.
func validateNormalization(raws []domain.RawRecord) ([]indexed, *phase) {
	p := &phase{name: "Records normalize"}
	subs := make([]indexed, 0, len(raws))
	for _, raw := range raws {
		sub, err := domain.Normalize(raw)
		if err != nil {
			var mre *domain.MalformedRecordError
			if errors.As(err, &mre) {
				p.errorf("record %d: field %q: %v", mre.Index, mre.Field, mre.Err)
			} else {
				p.errorf("record %d: %v", raw.Index, err)
			}
			continue
		}
		subs = append(subs, indexed{index: raw.Index, sub: sub})
	}
	return subs, p
}

func validateRanges(subs []indexed) *phase {
	p := &phase{name: "Submission fields valid"}
	for _, s := range subs {
		in := domain.SubmissionInput{
			Latitude:         domain.Coord(s.sub.Latitude),
			Longitude:        domain.Coord(s.sub.Longitude),
			BrightnessRating: s.sub.BrightnessRating,
			PhotoURL:         s.sub.PhotoURL,
		}
		var ve *domain.ValidationError
		if err := in.Validate(); errors.As(err, &ve) {
			for field, reason := range ve.Fields {
				p.errorf("record %d (%s): %s %s", s.index, s.sub.ID, field, reason)
			}
		}
	}
	return p
}

func validateIdentifiers(subs []indexed) *phase {
	p := &phase{name: "Unique identifiers"}
	seen := make(map[string]int, len(subs))
	for _, s := range subs {
		if s.sub.ID == "" {
			p.errorf("record %d: missing id", s.index)
			continue
		}
		if first, ok := seen[s.sub.ID]; ok {
			p.errorf("record %d: id %s already used by record %d", s.index, s.sub.ID, first)
			continue
		}
		seen[s.sub.ID] = s.index
	}
	return p
}

func validateTimestamps(subs []indexed, now time.Time) *phase {
	p := &phase{name: "Timestamps plausible"}
	for _, s := range subs {
		if s.sub.Timestamp.After(now.Add(futureSlack)) {
			p.errorf("record %d (%s): timestamp %s is in the future", s.index, s.sub.ID, s.sub.Timestamp.Format(time.RFC3339))
		}
	}
	return p
}

func validateConstellations(subs []indexed) *phase {
	p := &phase{name: "Constellation names"}
	for _, s := range subs {
		seen := map[string]bool{}
		for _, name := range s.sub.ConstellationNames {
			trimmed := strings.TrimSpace(name)
			switch {
			case trimmed == "":
				p.errorf("record %d (%s): blank constellation name", s.index, s.sub.ID)
			case seen[strings.ToLower(trimmed)]:
				p.errorf("record %d (%s): constellation %q listed twice", s.index, s.sub.ID, trimmed)
			}
			seen[strings.ToLower(trimmed)] = true
		}
	}
	return p
}
