package metering

import "errors"

var (
	// ErrInvalidValue is returned when a reading value cannot be parsed to a finite number.
	ErrInvalidValue = errors.New("metering: invalid value")
	// ErrInvalidDate is returned when a reading date is zero or unparseable.
	ErrInvalidDate = errors.New("metering: invalid date")
	// ErrInvalidKind is returned when a meter kind is not in the known enumeration.
	ErrInvalidKind = errors.New("metering: invalid meter kind")
	// ErrInvalidSource is returned when a reading source is unknown.
	ErrInvalidSource = errors.New("metering: invalid reading source")
	// ErrMissingMeterNumber is returned when a meter number is required but absent.
	ErrMissingMeterNumber = errors.New("metering: missing meter number")
	// ErrNoOwner is returned when a meter belongs to neither a unit nor a building.
	ErrNoOwner = errors.New("metering: meter has no owner")
	// ErrAmbiguousOwner is returned when a meter claims both a unit and a building.
	ErrAmbiguousOwner = errors.New("metering: meter owned by both unit and building")
	// ErrMeterNotFound is returned when a meter id does not resolve.
	ErrMeterNotFound = errors.New("metering: meter not found")
	// ErrNilMeter is returned when a nil meter is persisted.
	ErrNilMeter = errors.New("metering: nil meter")
	// ErrSuccessorAlreadySet is returned when linking a meter that already has a successor.
	ErrSuccessorAlreadySet = errors.New("metering: successor already set")
	// ErrLineageCycle is returned when replaced_by references do not terminate.
	ErrLineageCycle = errors.New("metering: lineage cycle")
)
