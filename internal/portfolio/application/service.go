package application

import (
	"context"
	"errors"
	"log"

	"meterdesk/internal/metering/application"
	metering "meterdesk/internal/metering/domain"
	portfolio "meterdesk/internal/portfolio/domain"
)

// Service covers building and unit lifecycle. Deleting an owner cascades
// through its units and meters so no meter is left without an owner.
type Service struct {
	buildings portfolio.BuildingRepository
	units     portfolio.UnitRepository
	meters    *application.MeterService
	ids       application.IDFactory
	clock     application.Clock
	logger    *log.Logger
}

// NewService constructs a portfolio service.
func NewService(buildings portfolio.BuildingRepository, units portfolio.UnitRepository, meters *application.MeterService, logger *log.Logger, opts ...Option) (*Service, error) {
	if buildings == nil || units == nil {
		return nil, errors.New("portfolio: nil repository")
	}
	if meters == nil {
		return nil, errors.New("portfolio: nil meter service")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		buildings: buildings,
		units:     units,
		meters:    meters,
		ids:       application.NewID,
		clock:     application.SystemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Option customizes the portfolio service.
type Option func(*Service)

// WithIDFactory assigns an id factory.
func WithIDFactory(ids application.IDFactory) Option {
	return func(s *Service) { s.ids = ids }
}

// WithClock assigns a clock.
func WithClock(clock application.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// CreateBuilding validates and stores a building.
func (s *Service) CreateBuilding(ctx context.Context, building *portfolio.Building) (*portfolio.Building, error) {
	if building == nil {
		return nil, errors.New("portfolio: nil building")
	}
	if building.ID == "" {
		building.ID = s.ids()
	}
	now := s.clock.Now()
	building.CreatedAt = now
	building.UpdatedAt = now
	if err := building.Validate(); err != nil {
		return nil, err
	}
	if err := s.buildings.Create(ctx, building); err != nil {
		return nil, err
	}
	return building, nil
}

// GetBuilding loads one building.
func (s *Service) GetBuilding(ctx context.Context, id string) (*portfolio.Building, error) {
	building, err := s.buildings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if building == nil {
		return nil, portfolio.ErrBuildingNotFound
	}
	return building, nil
}

// ListBuildings lists an organization's buildings.
func (s *Service) ListBuildings(ctx context.Context, orgID string) ([]portfolio.Building, error) {
	return s.buildings.ListByOrg(ctx, orgID)
}

// DeleteBuilding removes a building with its units, meters and readings.
func (s *Service) DeleteBuilding(ctx context.Context, id string) error {
	building, err := s.buildings.Get(ctx, id)
	if err != nil {
		return err
	}
	if building == nil {
		return portfolio.ErrBuildingNotFound
	}

	units, err := s.units.ListByBuilding(ctx, id)
	if err != nil {
		return err
	}
	for _, unit := range units {
		if err := s.DeleteUnit(ctx, unit.ID); err != nil {
			return err
		}
	}
	if err := s.deleteMetersOf(ctx, s.meters.ListByBuilding, id); err != nil {
		return err
	}
	if err := s.buildings.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("portfolio: deleted building %s with %d units", id, len(units))
	return nil
}

// CreateUnit validates and stores a unit inside an existing building.
func (s *Service) CreateUnit(ctx context.Context, unit *portfolio.Unit) (*portfolio.Unit, error) {
	if unit == nil {
		return nil, errors.New("portfolio: nil unit")
	}
	building, err := s.buildings.Get(ctx, unit.BuildingID)
	if err != nil {
		return nil, err
	}
	if building == nil {
		return nil, portfolio.ErrBuildingNotFound
	}
	if unit.ID == "" {
		unit.ID = s.ids()
	}
	now := s.clock.Now()
	unit.CreatedAt = now
	unit.UpdatedAt = now
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	if err := s.units.Create(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// GetUnit loads one unit.
func (s *Service) GetUnit(ctx context.Context, id string) (*portfolio.Unit, error) {
	unit, err := s.units.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, portfolio.ErrUnitNotFound
	}
	return unit, nil
}

// ListUnits lists a building's units.
func (s *Service) ListUnits(ctx context.Context, buildingID string) ([]portfolio.Unit, error) {
	return s.units.ListByBuilding(ctx, buildingID)
}

// DeleteUnit removes a unit with its meters and readings.
func (s *Service) DeleteUnit(ctx context.Context, id string) error {
	unit, err := s.units.Get(ctx, id)
	if err != nil {
		return err
	}
	if unit == nil {
		return portfolio.ErrUnitNotFound
	}
	if err := s.deleteMetersOf(ctx, s.meters.ListByUnit, id); err != nil {
		return err
	}
	return s.units.Delete(ctx, id)
}

func (s *Service) deleteMetersOf(ctx context.Context, list func(context.Context, string) ([]metering.Meter, error), ownerID string) error {
	meters, err := list(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, meter := range meters {
		if err := s.meters.Delete(ctx, meter.ID); err != nil && !errors.Is(err, metering.ErrMeterNotFound) {
			return err
		}
	}
	return nil
}
