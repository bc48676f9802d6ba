package application

import (
	"context"
	"errors"
	"log"

	metering "meterdesk/internal/metering/domain"
)

// MeterService covers meter lifecycle and reading history queries.
type MeterService struct {
	meters   metering.MeterRepository
	readings metering.ReadingRepository
	ids      IDFactory
	clock    Clock
	logger   *log.Logger
}

// NewMeterService constructs a meter service.
func NewMeterService(meters metering.MeterRepository, readings metering.ReadingRepository, logger *log.Logger, opts ...MeterOption) (*MeterService, error) {
	if meters == nil || readings == nil {
		return nil, errors.New("metering: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &MeterService{
		meters:   meters,
		readings: readings,
		ids:      NewID,
		clock:    SystemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// MeterOption customizes the meter service.
type MeterOption func(*MeterService)

// WithMeterIDFactory assigns an id factory.
func WithMeterIDFactory(ids IDFactory) MeterOption {
	return func(s *MeterService) { s.ids = ids }
}

// WithMeterClock assigns a clock.
func WithMeterClock(clock Clock) MeterOption {
	return func(s *MeterService) { s.clock = clock }
}

// Create validates and stores a new meter.
func (s *MeterService) Create(ctx context.Context, meter *metering.Meter) (*metering.Meter, error) {
	if meter == nil {
		return nil, metering.ErrNilMeter
	}
	if meter.ID == "" {
		meter.ID = s.ids()
	}
	now := s.clock.Now()
	meter.CreatedAt = now
	meter.UpdatedAt = now
	if err := meter.Validate(); err != nil {
		return nil, err
	}
	if err := s.meters.Create(ctx, meter); err != nil {
		return nil, err
	}
	return meter, nil
}

// Get loads one meter.
func (s *MeterService) Get(ctx context.Context, id string) (*metering.Meter, error) {
	meter, err := s.meters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, metering.ErrMeterNotFound
	}
	return meter, nil
}

// ListByUnit lists meters attached to a unit.
func (s *MeterService) ListByUnit(ctx context.Context, unitID string) ([]metering.Meter, error) {
	return s.meters.ListByUnit(ctx, unitID)
}

// ListByBuilding lists shared meters attached directly to a building.
func (s *MeterService) ListByBuilding(ctx context.Context, buildingID string) ([]metering.Meter, error) {
	return s.meters.ListByBuilding(ctx, buildingID)
}

// Delete removes a meter and all its readings.
func (s *MeterService) Delete(ctx context.Context, id string) error {
	meter, err := s.meters.Get(ctx, id)
	if err != nil {
		return err
	}
	if meter == nil {
		return metering.ErrMeterNotFound
	}
	if err := s.meters.Delete(ctx, id); err != nil {
		return err
	}
	return s.readings.DeleteByMeter(ctx, id)
}

// History returns a meter's readings newest first with consumption
// deltas attached. With lineage enabled the history walks back through
// predecessors and concatenates every era in the chain.
func (s *MeterService) History(ctx context.Context, meterID string, lineage bool) ([]metering.ConsumptionEntry, error) {
	meter, err := s.meters.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, metering.ErrMeterNotFound
	}
	if !lineage {
		readings, err := s.readings.ListByMeterDesc(ctx, meterID)
		if err != nil {
			return nil, err
		}
		return metering.ConsumptionSeries(readings), nil
	}

	chain, err := metering.WalkLineage(ctx, s.meters, meter)
	if err != nil {
		return nil, err
	}
	histories := make([][]metering.Reading, 0, len(chain))
	for _, m := range chain {
		readings, err := s.readings.ListByMeterDesc(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		histories = append(histories, readings)
	}
	merged := metering.ConcatHistories(histories...)
	return metering.ConsumptionSeries(merged), nil
}

// Lineage returns the full meter chain oldest first.
func (s *MeterService) Lineage(ctx context.Context, meterID string) ([]metering.Meter, error) {
	meter, err := s.meters.Get(ctx, meterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, metering.ErrMeterNotFound
	}
	return metering.WalkLineage(ctx, s.meters, meter)
}
