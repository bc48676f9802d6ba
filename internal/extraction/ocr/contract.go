// Package ocr is the client for the extraction oracle: the external
// service that reads meter photos and documents and returns structured
// JSON. The oracle's judgment (what counts as a swap, which digits are
// the counter) is trusted; this package only enforces the shape of what
// comes back and sanitizes row-level garbage.
package ocr

import (
	"errors"
	"strconv"
	"time"

	"meterdesk/internal/extraction/swap"
)

var (
	// ErrOracleUnavailable is returned when the oracle errors or
	// returns an unusable structure. Callers offer manual entry as the
	// fallback rather than dead-ending.
	ErrOracleUnavailable = errors.New("ocr: extraction service unavailable")
	// ErrNothingUsable is returned when the oracle found neither a
	// meter number nor any readings.
	ErrNothingUsable = errors.New("ocr: no usable data in document")
	// ErrUnreadable is returned when a photo's counter cannot be read.
	ErrUnreadable = errors.New("ocr: meter display unreadable")
)

// ReadingRow is one raw extracted reading. Value is a pointer so that a
// row missing its value is distinguishable from an explicit zero.
type ReadingRow struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	Note  string   `json:"note,omitempty"`
}

// EraPayload mirrors the oracle's era shape.
type EraPayload struct {
	Label    string       `json:"label"`
	Readings []ReadingRow `json:"readings"`
	SwapNote *string      `json:"swapNote"`
}

// DocumentExtraction is the oracle's response for a document scan.
// MeterSwapDetected is the discriminant: when false, exactly one era
// holds all extracted readings.
type DocumentExtraction struct {
	MeterNumber       *string      `json:"meterNumber"`
	Confidence        int          `json:"confidence"`
	MeterName         *string      `json:"meterName"`
	MeterSwapDetected bool         `json:"meterSwapDetected"`
	Eras              []EraPayload `json:"eras"`
}

// Usable reports whether the extraction carries anything actionable.
func (d DocumentExtraction) Usable() bool {
	if d.MeterNumber != nil && *d.MeterNumber != "" {
		return true
	}
	for _, era := range d.Eras {
		for _, row := range era.Readings {
			if row.Date != "" && row.Value != nil {
				return true
			}
		}
	}
	return false
}

// Sanitize converts the raw payload into clean eras. Rows missing a
// date or value, or carrying an unparseable date, are dropped from
// their era; eras left empty are dropped entirely. This mirrors the
// filter-then-map policy applied to every oracle-sourced row.
func (d DocumentExtraction) Sanitize() []swap.Era {
	eras := make([]swap.Era, 0, len(d.Eras))
	for i, payload := range d.Eras {
		rows := make([]swap.Row, 0, len(payload.Readings))
		for _, raw := range payload.Readings {
			if raw.Date == "" || raw.Value == nil {
				continue
			}
			date, err := time.Parse("2006-01-02", raw.Date)
			if err != nil {
				continue
			}
			rows = append(rows, swap.Row{Date: date.UTC(), Value: *raw.Value, Note: raw.Note})
		}
		if len(rows) == 0 {
			continue
		}
		era := swap.Era{Label: payload.Label, Rows: rows}
		if era.Label == "" {
			era.Label = "Meter " + strconv.Itoa(i+1)
		}
		if payload.SwapNote != nil {
			era.SwapNote = *payload.SwapNote
		}
		eras = append(eras, era)
	}
	return eras
}

// PhotoReading is the oracle's response for a live meter photo.
type PhotoReading struct {
	Value      float64 `json:"value"`
	Confidence int     `json:"confidence"`
}
