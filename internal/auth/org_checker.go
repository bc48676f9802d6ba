package auth

import (
	"context"
	"database/sql"
	"errors"

	portfoliorepo "meterdesk/internal/portfolio/infrastructure/postgres"
)

var (
	// ErrOrgMismatch indicates the resource belongs to a different organization.
	ErrOrgMismatch = errors.New("organization mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// BuildingOrgChecker validates building ownership.
type BuildingOrgChecker interface {
	EnsureBuildingOrg(ctx context.Context, orgID, buildingID string) error
}

// OrgChecker checks building ownership using the portfolio tables.
type OrgChecker struct {
	repo *portfoliorepo.BuildingRepository
}

// NewOrgChecker constructs an OrgChecker.
func NewOrgChecker(db *sql.DB) *OrgChecker {
	if db == nil {
		return nil
	}
	return &OrgChecker{repo: portfoliorepo.NewBuildingRepository(db)}
}

// EnsureBuildingOrg verifies the building belongs to the organization.
func (c *OrgChecker) EnsureBuildingOrg(ctx context.Context, orgID, buildingID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if orgID == "" || buildingID == "" {
		return nil
	}
	building, err := c.repo.Get(ctx, buildingID)
	if err != nil {
		return err
	}
	if building == nil {
		return ErrNotFound
	}
	if building.OrgID != orgID {
		return ErrOrgMismatch
	}
	return nil
}
