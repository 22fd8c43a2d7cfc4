// Package csvfile reads bulk submission imports from CSV.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

// NamesSeparator splits multiple constellations in one cell.
const NamesSeparator = ";"

// required columns; everything else is optional.
var required = []string{"latitude", "longitude", "timestamp", "brightness_rating"}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a CSV whose header uses the canonical local-file keys:
// id, photo_url, latitude, longitude, timestamp, brightness_rating,
// constellation_name, and constellation_names (split on ";"). Empty cells
// are left out of the record so Normalize reports them as missing. Row
// indexes count data rows from zero.
func Read(r io.Reader) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("read csv: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("read csv: missing column %q", col)
		}
	}

	var recs []domain.RawRecord
	for index := 0; ; index++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", index, err)
		}

		fields := make(map[string]any, len(colIdx))
		for col := range colIdx {
			v := get(row, colIdx, col)
			if v == "" {
				continue
			}
			if col == "constellation_names" {
				fields[col] = strings.Split(v, NamesSeparator)
				continue
			}
			fields[col] = v
		}
		recs = append(recs, domain.RawRecord{Source: domain.SourceLocal, Index: index, Fields: fields})
	}
	return recs, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
