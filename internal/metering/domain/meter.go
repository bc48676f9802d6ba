package metering

import "time"

// MeterKind enumerates the supported physical meter types.
type MeterKind string

const (
	KindElectricity MeterKind = "electricity"
	KindGas         MeterKind = "gas"
	KindWaterCold   MeterKind = "water_cold"
	KindWaterHot    MeterKind = "water_hot"
	KindHeating     MeterKind = "heating"
)

// IsValid reports whether the kind is part of the enumeration.
func (k MeterKind) IsValid() bool {
	switch k {
	case KindElectricity, KindGas, KindWaterCold, KindWaterHot, KindHeating:
		return true
	default:
		return false
	}
}

// Unit returns the display unit for the kind.
func (k MeterKind) Unit() string {
	switch k {
	case KindElectricity, KindHeating:
		return "kWh"
	case KindGas, KindWaterCold, KindWaterHot:
		return "m³"
	default:
		return ""
	}
}

// OwnerRef points at the entity a meter belongs to. Exactly one of
// UnitID or BuildingID must be set.
type OwnerRef struct {
	UnitID     string
	BuildingID string
}

// Validate checks the one-of-unit-or-building constraint.
func (o OwnerRef) Validate() error {
	if o.UnitID == "" && o.BuildingID == "" {
		return ErrNoOwner
	}
	if o.UnitID != "" && o.BuildingID != "" {
		return ErrAmbiguousOwner
	}
	return nil
}

// Meter represents one physical metering device. A meter whose
// ReplacedBy is set has been swapped out and is logically retired; its
// readings remain queryable.
type Meter struct {
	ID               string
	UnitID           string
	BuildingID       string
	Number           string
	Kind             MeterKind
	InstallationDate *time.Time
	ReplacedBy       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Owner returns the meter's owner reference.
func (m *Meter) Owner() OwnerRef {
	return OwnerRef{UnitID: m.UnitID, BuildingID: m.BuildingID}
}

// IsRetired reports whether the meter has been replaced by a successor.
func (m *Meter) IsRetired() bool {
	return m.ReplacedBy != ""
}

// Validate checks the meter's invariants.
func (m *Meter) Validate() error {
	if m == nil {
		return ErrNilMeter
	}
	if m.Number == "" {
		return ErrMissingMeterNumber
	}
	if !m.Kind.IsValid() {
		return ErrInvalidKind
	}
	return m.Owner().Validate()
}
