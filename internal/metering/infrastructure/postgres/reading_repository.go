package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	metering "meterdesk/internal/metering/domain"
)

// ReadingRepository is a Postgres implementation of
// metering.ReadingRepository. One row per meter and calendar date,
// enforced by a unique constraint on (meter_id, reading_date).
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingTable overrides the table name.
func WithReadingTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Upsert writes a reading. A same-date row is replaced and reported as
// an overwrite; xmax is nonzero only for updated rows.
func (r *ReadingRepository) Upsert(ctx context.Context, reading *metering.Reading) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("reading repo: nil db")
	}
	if reading == nil {
		return false, errors.New("reading repo: nil reading")
	}
	if err := reading.Validate(); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (meter_id, reading_date, value, source, confidence, image_url, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
ON CONFLICT (meter_id, reading_date)
DO UPDATE SET value = EXCLUDED.value,
              source = EXCLUDED.source,
              confidence = EXCLUDED.confidence,
              image_url = EXCLUDED.image_url
RETURNING (xmax <> 0)`, r.table)

	var overwritten bool
	err := r.db.QueryRowContext(ctx, query,
		reading.MeterID,
		metering.DateOnly(reading.Date),
		reading.Value,
		string(reading.Source),
		reading.Confidence,
		reading.ImageURL,
	).Scan(&overwritten)
	if err != nil {
		return false, err
	}
	return overwritten, nil
}

// ListByMeterDesc returns readings newest first.
func (r *ReadingRepository) ListByMeterDesc(ctx context.Context, meterID string) ([]metering.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return nil, errors.New("reading repo: empty meter id")
	}

	query := fmt.Sprintf(`
SELECT meter_id, reading_date, value, source, confidence, image_url, created_at
FROM %s
WHERE meter_id = $1
ORDER BY reading_date DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, meterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []metering.Reading
	for rows.Next() {
		var reading metering.Reading
		var source string
		var confidence sql.NullInt64
		var imageURL sql.NullString
		if err := rows.Scan(
			&reading.MeterID,
			&reading.Date,
			&reading.Value,
			&source,
			&confidence,
			&imageURL,
			&reading.CreatedAt,
		); err != nil {
			return nil, err
		}
		reading.Source = metering.Source(source)
		if confidence.Valid {
			value := int(confidence.Int64)
			reading.Confidence = &value
		}
		if imageURL.Valid {
			reading.ImageURL = imageURL.String
		}
		reading.Date = metering.DateOnly(reading.Date)
		reading.CreatedAt = reading.CreatedAt.UTC()
		result = append(result, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListDates returns the distinct reading dates for a meter.
func (r *ReadingRepository) ListDates(ctx context.Context, meterID string) ([]time.Time, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return nil, errors.New("reading repo: empty meter id")
	}

	query := fmt.Sprintf(`
SELECT reading_date
FROM %s
WHERE meter_id = $1
ORDER BY reading_date ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, meterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, metering.DateOnly(date))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dates, nil
}

// DeleteByMeter removes all readings of a meter.
func (r *ReadingRepository) DeleteByMeter(ctx context.Context, meterID string) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if meterID == "" {
		return errors.New("reading repo: empty meter id")
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE meter_id = $1", r.table), meterID)
	return err
}
