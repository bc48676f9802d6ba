package application

import (
	"fmt"
	"time"

	metering "meterdesk/internal/metering/domain"
)

// Action says what persisting a candidate reading will do.
type Action int

const (
	// ActionInsert creates a new reading row.
	ActionInsert Action = iota
	// ActionOverwrite replaces the value of an existing same-date row.
	ActionOverwrite
)

// Tally accumulates per-row outcomes of a bulk ingestion.
type Tally struct {
	Imported    int
	Overwritten int
	Skipped     int
}

// String renders the tally for logs and API responses.
func (t Tally) String() string {
	return fmt.Sprintf("%d imported, %d overwritten, %d skipped", t.Imported, t.Overwritten, t.Skipped)
}

// Total counts rows that were attempted.
func (t Tally) Total() int { return t.Imported + t.Overwritten + t.Skipped }

// Resolver decides insert-vs-overwrite per calendar date. One meter
// keeps at most one reading per date, so a second row on an occupied
// date replaces the first rather than duplicating it. Observe keeps the
// set current across a batch where the same date repeats.
type Resolver struct {
	dates map[time.Time]struct{}
}

// NewResolver seeds the resolver with the dates already stored for the
// target meter.
func NewResolver(existing []time.Time) *Resolver {
	dates := make(map[time.Time]struct{}, len(existing))
	for _, d := range existing {
		dates[metering.DateOnly(d)] = struct{}{}
	}
	return &Resolver{dates: dates}
}

// Resolve classifies the candidate's date.
func (r *Resolver) Resolve(candidate metering.Reading) Action {
	if _, ok := r.dates[metering.DateOnly(candidate.Date)]; ok {
		return ActionOverwrite
	}
	return ActionInsert
}

// Observe records that the candidate's date is now occupied.
func (r *Resolver) Observe(candidate metering.Reading) {
	r.dates[metering.DateOnly(candidate.Date)] = struct{}{}
}
