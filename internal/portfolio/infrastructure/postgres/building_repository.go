package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	portfolio "meterdesk/internal/portfolio/domain"
)

const defaultBuildingsTable = "buildings"

// BuildingRepository is a Postgres implementation for buildings.
type BuildingRepository struct {
	db    *sql.DB
	table string
}

// NewBuildingRepository constructs a repository.
func NewBuildingRepository(db *sql.DB, opts ...BuildingOption) *BuildingRepository {
	repo := &BuildingRepository{db: db, table: defaultBuildingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BuildingOption configures the repository.
type BuildingOption func(*BuildingRepository)

// WithBuildingsTable overrides the table name.
func WithBuildingsTable(table string) BuildingOption {
	return func(repo *BuildingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a building.
func (r *BuildingRepository) Create(ctx context.Context, building *portfolio.Building) error {
	if r == nil || r.db == nil {
		return errors.New("building repo: nil db")
	}
	if building == nil {
		return errors.New("building repo: nil building")
	}
	if err := building.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, org_id, name, address, city, postal_code, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		building.ID,
		building.OrgID,
		building.Name,
		building.Address,
		building.City,
		building.PostalCode,
		building.CreatedAt,
		building.UpdatedAt,
	)
	return err
}

// Get loads a building by id, nil when absent.
func (r *BuildingRepository) Get(ctx context.Context, id string) (*portfolio.Building, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("building repo: nil db")
	}
	if id == "" {
		return nil, errors.New("building repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, name, address, city, postal_code, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	building, err := scanBuilding(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return building, err
}

// ListByOrg lists an organization's buildings ordered by name.
func (r *BuildingRepository) ListByOrg(ctx context.Context, orgID string) ([]portfolio.Building, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("building repo: nil db")
	}
	if orgID == "" {
		return nil, errors.New("building repo: empty org id")
	}

	query := fmt.Sprintf(`
SELECT id, org_id, name, address, city, postal_code, created_at, updated_at
FROM %s
WHERE org_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portfolio.Building
	for rows.Next() {
		building, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *building)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a building row.
func (r *BuildingRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("building repo: nil db")
	}
	if id == "" {
		return errors.New("building repo: empty id")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return portfolio.ErrBuildingNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuilding(row rowScanner) (*portfolio.Building, error) {
	var building portfolio.Building
	var address, city, postal sql.NullString
	if err := row.Scan(
		&building.ID,
		&building.OrgID,
		&building.Name,
		&address,
		&city,
		&postal,
		&building.CreatedAt,
		&building.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if address.Valid {
		building.Address = address.String
	}
	if city.Valid {
		building.City = city.String
	}
	if postal.Valid {
		building.PostalCode = postal.String
	}
	building.CreatedAt = building.CreatedAt.UTC()
	building.UpdatedAt = building.UpdatedAt.UTC()
	return &building, nil
}
