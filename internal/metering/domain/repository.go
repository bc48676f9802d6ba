package metering

import (
	"context"
	"time"
)

// MeterRepository persists meters and their lineage links.
type MeterRepository interface {
	Create(ctx context.Context, meter *Meter) error
	Get(ctx context.Context, id string) (*Meter, error)
	ListByUnit(ctx context.Context, unitID string) ([]Meter, error)
	ListByBuilding(ctx context.Context, buildingID string) ([]Meter, error)
	// FindPredecessor returns the meter whose ReplacedBy points at the
	// given meter, or nil when the meter starts its lineage.
	FindPredecessor(ctx context.Context, successorID string) (*Meter, error)
	// LinkSuccessor sets ReplacedBy exactly once; a second link attempt
	// fails with ErrSuccessorAlreadySet.
	LinkSuccessor(ctx context.Context, meterID, successorID string) error
	// Delete removes the meter and cascades its readings.
	Delete(ctx context.Context, id string) error
}

// ReadingRepository persists readings keyed by (meter id, calendar date).
type ReadingRepository interface {
	// Upsert writes a reading and reports whether an existing reading
	// for the same date was overwritten.
	Upsert(ctx context.Context, reading *Reading) (overwritten bool, err error)
	// ListByMeterDesc returns the meter's readings ordered by date
	// descending (most recent first).
	ListByMeterDesc(ctx context.Context, meterID string) ([]Reading, error)
	// ListDates returns the distinct reading dates for a meter.
	ListDates(ctx context.Context, meterID string) ([]time.Time, error)
	DeleteByMeter(ctx context.Context, meterID string) error
}
