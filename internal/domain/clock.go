package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps new submissions. Tests freeze it via SetClock so IDs and
// timestamps come out deterministic.
var clock = clockwork.NewRealClock()

// SetClock replaces the submission clock. Pass nil to restore real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current submission time in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}
