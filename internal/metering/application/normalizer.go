package application

import (
	"math"
	"strconv"
	"strings"
	"time"

	metering "meterdesk/internal/metering/domain"
)

// Clock provides time for defaulting omitted reading dates.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Normalizer converts raw inputs from the three entry paths into
// canonical readings. It never persists anything; callers push the
// result through the duplicate resolver and the repository.
type Normalizer struct {
	clock Clock
}

// NewNormalizer constructs a normalizer.
func NewNormalizer(clock Clock) *Normalizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Normalizer{clock: clock}
}

// Manual builds a reading from a hand-typed value. The date defaults to
// the current calendar date when omitted.
func (n *Normalizer) Manual(meterID, rawValue string, date *time.Time) (metering.Reading, error) {
	value, err := parseDecimal(rawValue)
	if err != nil {
		return metering.Reading{}, err
	}
	reading := metering.Reading{
		MeterID: meterID,
		Date:    n.dateOrToday(date),
		Value:   value,
		Source:  metering.SourceManual,
	}
	if err := reading.Validate(); err != nil {
		return metering.Reading{}, err
	}
	return reading, nil
}

// FromPhoto builds a reading from a single-value OCR result. The date
// defaults to today: the photo shows the counter as it is now.
func (n *Normalizer) FromPhoto(meterID string, value float64, confidence int, date *time.Time, imageURL string) (metering.Reading, error) {
	conf := confidence
	reading := metering.Reading{
		MeterID:    meterID,
		Date:       n.dateOrToday(date),
		Value:      value,
		Source:     metering.SourceOCR,
		Confidence: &conf,
		ImageURL:   imageURL,
	}
	if err := reading.Validate(); err != nil {
		return metering.Reading{}, err
	}
	return reading, nil
}

// FromExtractedRow builds a reading from an already date-stamped row of
// a document extraction.
func (n *Normalizer) FromExtractedRow(meterID string, date time.Time, value float64) (metering.Reading, error) {
	reading := metering.Reading{
		MeterID: meterID,
		Date:    metering.DateOnly(date),
		Value:   value,
		Source:  metering.SourceOCR,
	}
	if err := reading.Validate(); err != nil {
		return metering.Reading{}, err
	}
	return reading, nil
}

// FromImportRow builds a reading from a parsed spreadsheet row.
func (n *Normalizer) FromImportRow(meterID string, date time.Time, value float64) (metering.Reading, error) {
	reading := metering.Reading{
		MeterID: meterID,
		Date:    metering.DateOnly(date),
		Value:   value,
		Source:  metering.SourceImported,
	}
	if err := reading.Validate(); err != nil {
		return metering.Reading{}, err
	}
	return reading, nil
}

func (n *Normalizer) dateOrToday(date *time.Time) time.Time {
	if date != nil && !date.IsZero() {
		return metering.DateOnly(*date)
	}
	return metering.DateOnly(n.clock.Now())
}

// parseDecimal accepts both ',' and '.' as decimal separator for
// hand-typed values. Thousands separators are not expected on manual
// entry; bulk import cells go through the column mapper instead.
func parseDecimal(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, metering.ErrInvalidValue
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, metering.ErrInvalidValue
	}
	return value, nil
}
