package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	portfolio "meterdesk/internal/portfolio/domain"
)

const defaultUnitsTable = "units"

// UnitRepository is a Postgres implementation for units.
type UnitRepository struct {
	db    *sql.DB
	table string
}

// NewUnitRepository constructs a repository.
func NewUnitRepository(db *sql.DB, opts ...UnitOption) *UnitRepository {
	repo := &UnitRepository{db: db, table: defaultUnitsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UnitOption configures the repository.
type UnitOption func(*UnitRepository)

// WithUnitsTable overrides the table name.
func WithUnitsTable(table string) UnitOption {
	return func(repo *UnitRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a unit.
func (r *UnitRepository) Create(ctx context.Context, unit *portfolio.Unit) error {
	if r == nil || r.db == nil {
		return errors.New("unit repo: nil db")
	}
	if unit == nil {
		return errors.New("unit repo: nil unit")
	}
	if err := unit.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, building_id, unit_number, floor, area, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		unit.ID,
		unit.BuildingID,
		unit.Number,
		unit.Floor,
		unit.Area,
		unit.CreatedAt,
		unit.UpdatedAt,
	)
	return err
}

// Get loads a unit by id, nil when absent.
func (r *UnitRepository) Get(ctx context.Context, id string) (*portfolio.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("unit repo: nil db")
	}
	if id == "" {
		return nil, errors.New("unit repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, building_id, unit_number, floor, area, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	unit, err := scanUnit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return unit, err
}

// ListByBuilding lists a building's units ordered by unit number.
func (r *UnitRepository) ListByBuilding(ctx context.Context, buildingID string) ([]portfolio.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("unit repo: nil db")
	}
	if buildingID == "" {
		return nil, errors.New("unit repo: empty building id")
	}

	query := fmt.Sprintf(`
SELECT id, building_id, unit_number, floor, area, created_at, updated_at
FROM %s
WHERE building_id = $1
ORDER BY unit_number ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []portfolio.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a unit row.
func (r *UnitRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("unit repo: nil db")
	}
	if id == "" {
		return errors.New("unit repo: empty id")
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
		return portfolio.ErrUnitNotFound
	}
	return nil
}

func scanUnit(row rowScanner) (*portfolio.Unit, error) {
	var unit portfolio.Unit
	var floor sql.NullInt64
	var area sql.NullFloat64
	if err := row.Scan(
		&unit.ID,
		&unit.BuildingID,
		&unit.Number,
		&floor,
		&area,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if floor.Valid {
		value := int(floor.Int64)
		unit.Floor = &value
	}
	if area.Valid {
		value := area.Float64
		unit.Area = &value
	}
	unit.CreatedAt = unit.CreatedAt.UTC()
	unit.UpdatedAt = unit.UpdatedAt.UTC()
	return &unit, nil
}
