// Package portfolio holds the buildings and units meters belong to.
package portfolio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBuildingNotFound marks a missing building.
	ErrBuildingNotFound = errors.New("portfolio: building not found")
	// ErrUnitNotFound marks a missing unit.
	ErrUnitNotFound = errors.New("portfolio: unit not found")
)

// Building is a managed property. Shared meters (staircase light, common
// heating) attach to the building directly.
type Building struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks building invariants.
func (b Building) Validate() error {
	if b.ID == "" {
		return errors.New("building: empty id")
	}
	if b.OrgID == "" {
		return errors.New("building: empty org id")
	}
	if b.Name == "" {
		return errors.New("building: empty name")
	}
	return nil
}

// Unit is a rentable unit inside a building. Per-unit meters attach here.
type Unit struct {
	ID         string    `json:"id"`
	BuildingID string    `json:"building_id"`
	Number     string    `json:"number"`
	Floor      *int      `json:"floor,omitempty"`
	Area       *float64  `json:"area,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks unit invariants.
func (u Unit) Validate() error {
	if u.ID == "" {
		return errors.New("unit: empty id")
	}
	if u.BuildingID == "" {
		return errors.New("unit: empty building id")
	}
	if u.Number == "" {
		return errors.New("unit: empty unit number")
	}
	return nil
}

// BuildingRepository manages building persistence.
type BuildingRepository interface {
	Create(ctx context.Context, building *Building) error
	Get(ctx context.Context, id string) (*Building, error)
	ListByOrg(ctx context.Context, orgID string) ([]Building, error)
	Delete(ctx context.Context, id string) error
}

// UnitRepository manages unit persistence.
type UnitRepository interface {
	Create(ctx context.Context, unit *Unit) error
	Get(ctx context.Context, id string) (*Unit, error)
	ListByBuilding(ctx context.Context, buildingID string) ([]Unit, error)
	Delete(ctx context.Context, id string) error
}
