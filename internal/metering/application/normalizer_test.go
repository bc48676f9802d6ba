package application

import (
	"errors"
	"testing"
	"time"

	metering "meterdesk/internal/metering/domain"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestManualAcceptsCommaDecimal(t *testing.T) {
	normalizer := NewNormalizer(fixedClock{at: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)})

	reading, err := normalizer.Manual("m1", "1234,5", nil)
	if err != nil {
		t.Fatalf("Manual: %v", err)
	}
	if reading.Value != 1234.5 {
		t.Fatalf("value = %v, want 1234.5", reading.Value)
	}
	if reading.Source != metering.SourceManual {
		t.Fatalf("source = %q", reading.Source)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !reading.Date.Equal(want) {
		t.Fatalf("date = %v, want %v", reading.Date, want)
	}
}

func TestManualExplicitDateWins(t *testing.T) {
	normalizer := NewNormalizer(fixedClock{at: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)})

	picked := time.Date(2024, 1, 2, 18, 45, 0, 0, time.UTC)
	reading, err := normalizer.Manual("m1", "42.0", &picked)
	if err != nil {
		t.Fatalf("Manual: %v", err)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !reading.Date.Equal(want) {
		t.Fatalf("date = %v, want %v", reading.Date, want)
	}
}

func TestManualRejectsGarbage(t *testing.T) {
	normalizer := NewNormalizer(nil)

	for _, raw := range []string{"", "   ", "abc", "12..3,4"} {
		if _, err := normalizer.Manual("m1", raw, nil); !errors.Is(err, metering.ErrInvalidValue) {
			t.Fatalf("Manual(%q) err = %v, want ErrInvalidValue", raw, err)
		}
	}
}

func TestFromPhotoCarriesConfidence(t *testing.T) {
	normalizer := NewNormalizer(fixedClock{at: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)})

	reading, err := normalizer.FromPhoto("m1", 4100, 87, nil, "s3://scan/1.jpg")
	if err != nil {
		t.Fatalf("FromPhoto: %v", err)
	}
	if reading.Confidence == nil || *reading.Confidence != 87 {
		t.Fatalf("confidence = %v, want 87", reading.Confidence)
	}
	if reading.Source != metering.SourceOCR {
		t.Fatalf("source = %q", reading.Source)
	}
	if reading.ImageURL != "s3://scan/1.jpg" {
		t.Fatalf("image url = %q", reading.ImageURL)
	}
}

func TestResolverOverwriteOnOccupiedDate(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	resolver := NewResolver([]time.Time{day})

	occupied := metering.Reading{MeterID: "m1", Date: day.Add(13 * time.Hour), Value: 10, Source: metering.SourceManual}
	if got := resolver.Resolve(occupied); got != ActionOverwrite {
		t.Fatalf("occupied date action = %v, want overwrite", got)
	}

	fresh := metering.Reading{MeterID: "m1", Date: day.AddDate(0, 0, 1), Value: 11, Source: metering.SourceManual}
	if got := resolver.Resolve(fresh); got != ActionInsert {
		t.Fatalf("fresh date action = %v, want insert", got)
	}

	resolver.Observe(fresh)
	if got := resolver.Resolve(fresh); got != ActionOverwrite {
		t.Fatalf("observed date action = %v, want overwrite", got)
	}
}
