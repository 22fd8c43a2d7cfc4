package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers branch on. Every typed
// error below matches exactly one of them via errors.Is.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrConfiguration   = errors.New("configuration error")
	ErrDataSource      = errors.New("data source error")
	ErrValidation      = errors.New("validation error")
	ErrWrite           = errors.New("write error")
)

// MalformedRecordError reports a source record field that could not be
// converted into the canonical schema.
type MalformedRecordError struct {
	Source Source
	Index  int
	Field  string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record %d: field %q: %v", e.Source, e.Index, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// DataSourceError wraps any file or network failure raised by a store
// variant so callers never branch on backend-specific errors.
type DataSourceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func (e *DataSourceError) Is(target error) bool { return target == ErrDataSource }

// WriteError reports an append that failed after validation passed.
type WriteError struct {
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write submission %s: %v", e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// ValidationError lists the submission fields that are out of range.
// Fields maps the canonical field name to the reason it was rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %v", e.Fields)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
