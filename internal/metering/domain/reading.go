package metering

import (
	"math"
	"time"
)

// Source records how a reading entered the system.
type Source string

const (
	SourceManual   Source = "manual"
	SourceOCR      Source = "ocr"
	SourceImported Source = "imported"
)

// IsValid reports whether the source tag is known.
func (s Source) IsValid() bool {
	switch s {
	case SourceManual, SourceOCR, SourceImported:
		return true
	default:
		return false
	}
}

// Reading is one observation of a meter's cumulative counter. The
// addressable unit is (MeterID, Date): a later write for the same pair
// overwrites the earlier value.
type Reading struct {
	MeterID    string
	Date       time.Time
	Value      float64
	Source     Source
	Confidence *int
	ImageURL   string
	CreatedAt  time.Time
}

// Validate checks the reading's invariants.
func (r *Reading) Validate() error {
	if r == nil || r.MeterID == "" {
		return ErrMeterNotFound
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return ErrInvalidValue
	}
	if !r.Source.IsValid() {
		return ErrInvalidSource
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 100) {
		return ErrInvalidValue
	}
	return nil
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
