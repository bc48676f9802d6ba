package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"meterdesk/internal/extraction/swap"
	metering "meterdesk/internal/metering/domain"
	"meterdesk/internal/observability/metrics"
)

var (
	// ErrTooFewEras means a chain import was asked for a document that
	// only contains one meter era.
	ErrTooFewEras = errors.New("chain: need at least two eras")
	// ErrPartialChain means meters and readings were created but one or
	// more successor links could not be written. Data is kept; the
	// operator repairs links with the lineage tool.
	ErrPartialChain = errors.New("chain: meters created but lineage incomplete")
)

// IDFactory mints entity identifiers.
type IDFactory func() string

// NewID returns a random hex identifier.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

// ChainService turns a multi-era document extraction into a linked
// meter lineage: one meter per era, predecessor pointing at successor,
// readings of each era imported under its own meter.
type ChainService struct {
	meters   metering.MeterRepository
	importer *ImportService
	ids      IDFactory
	clock    Clock
	logger   *log.Logger
}

// NewChainService constructs a chain service.
func NewChainService(meters metering.MeterRepository, importer *ImportService, logger *log.Logger, opts ...ChainOption) (*ChainService, error) {
	if meters == nil {
		return nil, errors.New("chain: nil meter repository")
	}
	if importer == nil {
		return nil, errors.New("chain: nil import service")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &ChainService{
		meters:   meters,
		importer: importer,
		ids:      NewID,
		clock:    SystemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ChainOption customizes the chain service.
type ChainOption func(*ChainService)

// WithIDFactory assigns an id factory.
func WithIDFactory(ids IDFactory) ChainOption {
	return func(s *ChainService) { s.ids = ids }
}

// WithChainClock assigns a clock.
func WithChainClock(clock Clock) ChainOption {
	return func(s *ChainService) { s.clock = clock }
}

// ChainResult reports what a chain import created.
type ChainResult struct {
	MeterIDs []string `json:"meter_ids"`
	Tallies  []Tally  `json:"tallies"`
}

// ImportChain creates one meter per era and links them oldest to
// newest. Eras arrive oldest first. The user-supplied number names the
// newest meter, the one physically installed today; earlier eras get
// derived numbers so the originals stay distinguishable. Meter creation
// failures abort, link failures do not roll anything back.
func (s *ChainService) ImportChain(ctx context.Context, owner metering.OwnerRef, kind metering.MeterKind, currentNumber string, eras []swap.Era) (ChainResult, error) {
	var result ChainResult
	if len(eras) < 2 {
		metrics.IncChainImport("rejected")
		return result, ErrTooFewEras
	}
	if err := owner.Validate(); err != nil {
		return result, err
	}
	if currentNumber == "" {
		return result, metering.ErrMissingMeterNumber
	}

	now := s.clock.Now()
	created := make([]*metering.Meter, 0, len(eras))
	for i, era := range eras {
		number := currentNumber
		if i < len(eras)-1 {
			number = fmt.Sprintf("%s-alt%d", currentNumber, i+1)
		}
		meter := &metering.Meter{
			ID:         s.ids(),
			UnitID:     owner.UnitID,
			BuildingID: owner.BuildingID,
			Number:     number,
			Kind:       kind,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := meter.Validate(); err != nil {
			metrics.IncChainImport("rejected")
			return result, err
		}
		if err := s.meters.Create(ctx, meter); err != nil {
			metrics.IncChainImport("error")
			return result, fmt.Errorf("chain: create meter for era %q: %w", era.Label, err)
		}
		created = append(created, meter)
		result.MeterIDs = append(result.MeterIDs, meter.ID)

		readings := make([]metering.Reading, 0, len(era.Rows))
		for _, row := range era.Rows {
			readings = append(readings, metering.Reading{
				MeterID: meter.ID,
				Date:    metering.DateOnly(row.Date),
				Value:   row.Value,
				Source:  metering.SourceOCR,
			})
		}
		tally, err := s.importer.ImportReadings(ctx, meter.ID, readings)
		if err != nil {
			metrics.IncChainImport("error")
			return result, fmt.Errorf("chain: import era %q: %w", era.Label, err)
		}
		result.Tallies = append(result.Tallies, tally)
	}

	var linkErr error
	for i := 0; i < len(created)-1; i++ {
		if err := s.meters.LinkSuccessor(ctx, created[i].ID, created[i+1].ID); err != nil {
			s.logger.Printf("chain: link %s -> %s: %v", created[i].ID, created[i+1].ID, err)
			linkErr = ErrPartialChain
		}
	}
	if linkErr != nil {
		metrics.IncChainImport("partial")
		return result, linkErr
	}
	metrics.IncChainImport("success")
	return result, nil
}
