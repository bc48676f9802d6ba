package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	metering "meterdesk/internal/metering/domain"
)

const (
	defaultMetersTable   = "meters"
	defaultReadingsTable = "meter_readings"
)

// MeterRepository is a Postgres implementation of metering.MeterRepository.
type MeterRepository struct {
	db            *sql.DB
	table         string
	readingsTable string
}

// NewMeterRepository constructs a repository.
func NewMeterRepository(db *sql.DB, opts ...MeterOption) *MeterRepository {
	repo := &MeterRepository{db: db, table: defaultMetersTable, readingsTable: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MeterOption configures the repository.
type MeterOption func(*MeterRepository)

// WithMetersTable overrides the meters table name.
func WithMetersTable(table string) MeterOption {
	return func(repo *MeterRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithReadingsTable overrides the readings table used by cascade delete.
func WithReadingsTable(table string) MeterOption {
	return func(repo *MeterRepository) {
		if table != "" {
			repo.readingsTable = table
		}
	}
}

const meterColumns = "id, unit_id, building_id, meter_number, kind, installation_date, replaced_by, created_at, updated_at"

// Create inserts a meter.
func (r *MeterRepository) Create(ctx context.Context, meter *metering.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	if meter == nil {
		return metering.ErrNilMeter
	}
	if err := meter.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, $9)`, r.table, meterColumns)

	_, err := r.db.ExecContext(ctx, query,
		meter.ID,
		meter.UnitID,
		meter.BuildingID,
		meter.Number,
		string(meter.Kind),
		meter.InstallationDate,
		meter.ReplacedBy,
		meter.CreatedAt,
		meter.UpdatedAt,
	)
	return err
}

// Get loads a meter by id, nil when absent.
func (r *MeterRepository) Get(ctx context.Context, id string) (*metering.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	if id == "" {
		return nil, errors.New("meter repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1`, meterColumns, r.table)

	meter, err := scanMeter(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return meter, err
}

// ListByUnit lists meters of a unit ordered by number.
func (r *MeterRepository) ListByUnit(ctx context.Context, unitID string) ([]metering.Meter, error) {
	if unitID == "" {
		return nil, errors.New("meter repo: empty unit id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE unit_id = $1
ORDER BY meter_number ASC`, meterColumns, r.table)
	return r.listMeters(ctx, query, unitID)
}

// ListByBuilding lists shared meters attached directly to a building.
func (r *MeterRepository) ListByBuilding(ctx context.Context, buildingID string) ([]metering.Meter, error) {
	if buildingID == "" {
		return nil, errors.New("meter repo: empty building id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE building_id = $1 AND unit_id IS NULL
ORDER BY meter_number ASC`, meterColumns, r.table)
	return r.listMeters(ctx, query, buildingID)
}

// FindPredecessor returns the meter whose replaced_by points at the id.
func (r *MeterRepository) FindPredecessor(ctx context.Context, successorID string) (*metering.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	if successorID == "" {
		return nil, errors.New("meter repo: empty successor id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE replaced_by = $1`, meterColumns, r.table)

	meter, err := scanMeter(r.db.QueryRowContext(ctx, query, successorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return meter, err
}

// LinkSuccessor sets replaced_by exactly once. A meter that already
// points at a successor is not relinked.
func (r *MeterRepository) LinkSuccessor(ctx context.Context, meterID, successorID string) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	if meterID == "" || successorID == "" {
		return errors.New("meter repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET replaced_by = $2, updated_at = NOW()
WHERE id = $1 AND replaced_by IS NULL`, r.table)

	res, err := r.db.ExecContext(ctx, query, meterID, successorID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.Get(ctx, meterID)
		if err != nil {
			return err
		}
		if existing == nil {
			return metering.ErrMeterNotFound
		}
		return metering.ErrSuccessorAlreadySet
	}
	return nil
}

// Delete removes a meter and its readings in one transaction.
func (r *MeterRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	if id == "" {
		return errors.New("meter repo: empty id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE meter_id = $1", r.readingsTable), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return metering.ErrMeterNotFound
	}
	return tx.Commit()
}

func (r *MeterRepository) listMeters(ctx context.Context, query string, args ...any) ([]metering.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []metering.Meter
	for rows.Next() {
		meter, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *meter)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeter(row rowScanner) (*metering.Meter, error) {
	var meter metering.Meter
	var unitID, buildingID, replacedBy sql.NullString
	var installed sql.NullTime
	var kind string
	if err := row.Scan(
		&meter.ID,
		&unitID,
		&buildingID,
		&meter.Number,
		&kind,
		&installed,
		&replacedBy,
		&meter.CreatedAt,
		&meter.UpdatedAt,
	); err != nil {
		return nil, err
	}
	meter.Kind = metering.MeterKind(kind)
	if unitID.Valid {
		meter.UnitID = unitID.String
	}
	if buildingID.Valid {
		meter.BuildingID = buildingID.String
	}
	if replacedBy.Valid {
		meter.ReplacedBy = replacedBy.String
	}
	if installed.Valid {
		utc := installed.Time.UTC()
		meter.InstallationDate = &utc
	}
	meter.CreatedAt = meter.CreatedAt.UTC()
	meter.UpdatedAt = meter.UpdatedAt.UTC()
	return &meter, nil
}
