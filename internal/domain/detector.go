package domain

import "context"

// DetectionStatus is the outcome of a constellation detection attempt.
type DetectionStatus int

const (
	// DetectionFailed means the image could not be solved or the service
	// returned an error.
	DetectionFailed DetectionStatus = iota
	// DetectionDetected means the image was solved; Names may still be empty
	// when no constellation lies in the field.
	DetectionDetected
	// DetectionTimedOut means the deadline or poll budget ran out first.
	DetectionTimedOut
)

func (s DetectionStatus) String() string {
	switch s {
	case DetectionDetected:
		return "detected"
	case DetectionTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// Detection is the result of asking the detection service about one image.
type Detection struct {
	Status DetectionStatus
	Names  []string
	Reason error
}

// Detected builds a successful detection.
func Detected(names []string) Detection {
	if names == nil {
		names = []string{}
	}
	return Detection{Status: DetectionDetected, Names: names}
}

// DetectionFailure builds a failed detection.
func DetectionFailure(reason error) Detection {
	return Detection{Status: DetectionFailed, Reason: reason}
}

// DetectionTimeout builds a timed-out detection.
func DetectionTimeout(reason error) Detection {
	return Detection{Status: DetectionTimedOut, Reason: reason}
}

// ConstellationDetector identifies the constellations visible in a photo.
// Implementations never return an error; every failure mode is a Detection
// status so callers can proceed without names.
type ConstellationDetector interface {
	Detect(ctx context.Context, photo Photo) Detection
}

// ApplyDetection attaches detected names to a submission that has none.
// Any outcome other than DetectionDetected leaves the submission unchanged.
func ApplyDetection(sub Submission, d Detection) Submission {
	if d.Status != DetectionDetected || len(sub.ConstellationNames) > 0 {
		return sub
	}
	sub.ConstellationNames = append([]string{}, d.Names...)
	return sub
}
