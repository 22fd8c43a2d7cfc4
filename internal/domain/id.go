package domain

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSubmissionID returns "<base36 unix nanos>-<8 hex>". The time prefix
// keeps IDs roughly ordered; the random suffix separates submissions made
// in the same nanosecond.
func NewSubmissionID(at time.Time) string {
	return formatID(at, uuid.New())
}

// NewSubmissionIDFrom is NewSubmissionID with the suffix drawn from r, for
// reproducible fixtures.
func NewSubmissionIDFrom(at time.Time, r io.Reader) (string, error) {
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", err
	}
	return formatID(at, u), nil
}

func formatID(at time.Time, u uuid.UUID) string {
	suffix := strings.ReplaceAll(u.String(), "-", "")[:8]
	return strconv.FormatInt(at.UnixNano(), 36) + "-" + suffix
}
