package domain

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Photo is an uploaded image awaiting storage.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmissionInput holds the user-supplied fields of a new submission.
type SubmissionInput struct {
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	BrightnessRating   int      `json:"brightness_rating"`
	PhotoURL           string   `json:"photo_url"`
	ConstellationNames []string `json:"constellation_names,omitempty"`
	Photo              *Photo   `json:"-"`
}

// Coord returns a pointer to v for the optional coordinate fields.
func Coord(v float64) *float64 { return &v }

// HasPhotoData reports whether image bytes were uploaded with the input.
func (in SubmissionInput) HasPhotoData() bool {
	return in.Photo != nil && len(in.Photo.Data) > 0
}

// Validate checks that both coordinates are present and in bounds, that the
// brightness is in range, and that some photo reference is present. It
// performs no I/O.
func (in SubmissionInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Latitude,
			validation.NotNil.Error("is required"),
			validation.Min(-90.0).Error("must be between -90 and 90"),
			validation.Max(90.0).Error("must be between -90 and 90"),
		),
		validation.Field(&in.Longitude,
			validation.NotNil.Error("is required"),
			validation.Min(-180.0).Error("must be between -180 and 180"),
			validation.Max(180.0).Error("must be between -180 and 180"),
		),
		validation.Field(&in.BrightnessRating,
			validation.Required.Error("must be between 1 and 5"),
			validation.Min(MinBrightness).Error("must be between 1 and 5"),
			validation.Max(MaxBrightness).Error("must be between 1 and 5"),
		),
		validation.Field(&in.PhotoURL,
			validation.When(!in.HasPhotoData(), validation.Required.Error("a photo upload or photo_url is required")),
		),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for field, ferr := range fieldErrs {
		ve.Fields[field] = ferr.Error()
	}
	return ve
}
