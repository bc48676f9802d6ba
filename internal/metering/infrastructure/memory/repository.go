// Package memory holds in-memory repositories for demo/testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	metering "meterdesk/internal/metering/domain"
)

// MeterRepository is an in-memory metering.MeterRepository.
type MeterRepository struct {
	mu   sync.RWMutex
	data map[string]*metering.Meter
}

// NewMeterRepository constructs a repository.
func NewMeterRepository() *MeterRepository {
	return &MeterRepository{data: make(map[string]*metering.Meter)}
}

// Create stores a meter.
func (r *MeterRepository) Create(ctx context.Context, meter *metering.Meter) error {
	_ = ctx
	if meter == nil {
		return metering.ErrNilMeter
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *meter
	r.data[meter.ID] = &cp
	return nil
}

// Get loads a meter, nil when absent.
func (r *MeterRepository) Get(ctx context.Context, id string) (*metering.Meter, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	meter, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	cp := *meter
	return &cp, nil
}

// ListByUnit returns meters attached to a unit, ordered by number.
func (r *MeterRepository) ListByUnit(ctx context.Context, unitID string) ([]metering.Meter, error) {
	_ = ctx
	return r.list(func(m *metering.Meter) bool { return m.UnitID == unitID }), nil
}

// ListByBuilding returns building-level meters, ordered by number.
func (r *MeterRepository) ListByBuilding(ctx context.Context, buildingID string) ([]metering.Meter, error) {
	_ = ctx
	return r.list(func(m *metering.Meter) bool { return m.BuildingID == buildingID && m.UnitID == "" }), nil
}

func (r *MeterRepository) list(keep func(*metering.Meter) bool) []metering.Meter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []metering.Meter
	for _, m := range r.data {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// FindPredecessor returns the meter whose ReplacedBy points at id.
func (r *MeterRepository) FindPredecessor(ctx context.Context, successorID string) (*metering.Meter, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.data {
		if m.ReplacedBy == successorID && successorID != "" {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

// LinkSuccessor sets ReplacedBy exactly once.
func (r *MeterRepository) LinkSuccessor(ctx context.Context, meterID, successorID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	meter, ok := r.data[meterID]
	if !ok {
		return metering.ErrMeterNotFound
	}
	if meter.ReplacedBy != "" {
		return metering.ErrSuccessorAlreadySet
	}
	if _, ok := r.data[successorID]; !ok {
		return metering.ErrMeterNotFound
	}
	meter.ReplacedBy = successorID
	meter.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a meter.
func (r *MeterRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return metering.ErrMeterNotFound
	}
	delete(r.data, id)
	return nil
}

// ReadingRepository is an in-memory metering.ReadingRepository keyed by
// (meter id, calendar date).
type ReadingRepository struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]metering.Reading
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{data: make(map[string]map[time.Time]metering.Reading)}
}

// Upsert writes a reading and reports whether a same-date reading was
// overwritten.
func (r *ReadingRepository) Upsert(ctx context.Context, reading *metering.Reading) (bool, error) {
	_ = ctx
	if err := reading.Validate(); err != nil {
		return false, err
	}
	day := metering.DateOnly(reading.Date)
	r.mu.Lock()
	defer r.mu.Unlock()
	byDate, ok := r.data[reading.MeterID]
	if !ok {
		byDate = make(map[time.Time]metering.Reading)
		r.data[reading.MeterID] = byDate
	}
	_, existed := byDate[day]
	stored := *reading
	stored.Date = day
	byDate[day] = stored
	return existed, nil
}

// ListByMeterDesc returns readings newest first.
func (r *ReadingRepository) ListByMeterDesc(ctx context.Context, meterID string) ([]metering.Reading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDate := r.data[meterID]
	out := make([]metering.Reading, 0, len(byDate))
	for _, reading := range byDate {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// ListDates returns the distinct reading dates for a meter.
func (r *ReadingRepository) ListDates(ctx context.Context, meterID string) ([]time.Time, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDate := r.data[meterID]
	out := make([]time.Time, 0, len(byDate))
	for day := range byDate {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// DeleteByMeter removes all readings of a meter.
func (r *ReadingRepository) DeleteByMeter(ctx context.Context, meterID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, meterID)
	return nil
}
