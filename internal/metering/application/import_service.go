package application

import (
	"context"
	"errors"
	"log"
	"time"

	"meterdesk/internal/extraction/tabular"
	metering "meterdesk/internal/metering/domain"
	"meterdesk/internal/observability/metrics"
)

// ImportService ingests a batch of dated readings into one meter. Rows
// run sequentially in chronological order; a bad row is skipped and
// tallied, it never aborts the rest of the batch.
type ImportService struct {
	meters     metering.MeterRepository
	readings   metering.ReadingRepository
	normalizer *Normalizer
	logger     *log.Logger
}

// NewImportService constructs an import service.
func NewImportService(meters metering.MeterRepository, readings metering.ReadingRepository, normalizer *Normalizer, logger *log.Logger) (*ImportService, error) {
	if meters == nil || readings == nil {
		return nil, errors.New("import: nil repository")
	}
	if normalizer == nil {
		return nil, errors.New("import: nil normalizer")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ImportService{meters: meters, readings: readings, normalizer: normalizer, logger: logger}, nil
}

// ImportRows persists mapped spreadsheet rows into the meter. The meter
// must exist before any row is written.
func (s *ImportService) ImportRows(ctx context.Context, meterID string, rows []tabular.MappedRow) (Tally, error) {
	candidates := make([]metering.Reading, 0, len(rows))
	for _, row := range rows {
		reading, err := s.normalizer.FromImportRow(meterID, row.Date, row.Value)
		if err != nil {
			// Unparseable rows were already dropped by the mapper;
			// anything left that fails validation is counted, not fatal.
			candidates = append(candidates, metering.Reading{})
			continue
		}
		candidates = append(candidates, reading)
	}
	return s.importBatch(ctx, meterID, candidates)
}

// ImportReadings persists pre-built readings, for callers that already
// normalized their rows (document extraction eras).
func (s *ImportService) ImportReadings(ctx context.Context, meterID string, readings []metering.Reading) (Tally, error) {
	return s.importBatch(ctx, meterID, readings)
}

func (s *ImportService) importBatch(ctx context.Context, meterID string, candidates []metering.Reading) (Tally, error) {
	var tally Tally
	meter, err := s.meters.Get(ctx, meterID)
	if err != nil {
		return tally, err
	}
	if meter == nil {
		return tally, metering.ErrMeterNotFound
	}

	existing, err := s.readings.ListDates(ctx, meterID)
	if err != nil {
		return tally, err
	}
	resolver := NewResolver(existing)

	for _, reading := range candidates {
		if err := reading.Validate(); err != nil {
			tally.Skipped++
			metrics.IncImportRow("skipped")
			continue
		}
		action := resolver.Resolve(reading)
		overwritten, err := s.readings.Upsert(ctx, &reading)
		if err != nil {
			s.logger.Printf("import: meter %s date %s: %v", meterID, reading.Date.Format("2006-01-02"), err)
			tally.Skipped++
			metrics.IncImportRow("skipped")
			continue
		}
		resolver.Observe(reading)
		if overwritten || action == ActionOverwrite {
			tally.Overwritten++
			metrics.IncImportRow("overwritten")
		} else {
			tally.Imported++
			metrics.IncImportRow("imported")
		}
	}
	s.logger.Printf("import: meter %s finished, %s", meterID, tally)
	return tally, nil
}

// IngestOne pushes a single normalized reading through the duplicate
// resolver and reports whether it replaced a same-date value.
func (s *ImportService) IngestOne(ctx context.Context, reading metering.Reading) (bool, error) {
	start := time.Now()
	meter, err := s.meters.Get(ctx, reading.MeterID)
	if err != nil {
		metrics.ObserveIngest(string(reading.Source), start, err)
		return false, err
	}
	if meter == nil {
		metrics.ObserveIngest(string(reading.Source), start, metering.ErrMeterNotFound)
		return false, metering.ErrMeterNotFound
	}
	overwritten, err := s.readings.Upsert(ctx, &reading)
	metrics.ObserveIngest(string(reading.Source), start, err)
	return overwritten, err
}
