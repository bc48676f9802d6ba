package metering

import (
	"testing"
	"time"
)

func day(yy, mm, dd int) time.Time {
	return time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
}

func readingsDesc(values ...float64) []Reading {
	out := make([]Reading, 0, len(values))
	for i, v := range values {
		out = append(out, Reading{
			MeterID: "meter-1",
			Date:    day(2024, 12, len(values)-i),
			Value:   v,
			Source:  SourceManual,
		})
	}
	return out
}

func TestConsumptionSeriesPositiveDeltas(t *testing.T) {
	entries := ConsumptionSeries(readingsDesc(100, 80, 60))
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].HasDelta || entries[0].Delta != 20 {
		t.Fatalf("entry 0: expected delta 20, got %+v", entries[0])
	}
	if !entries[0].Display() {
		t.Fatalf("entry 0: expected displayed badge")
	}
	if !entries[1].HasDelta || entries[1].Delta != 20 {
		t.Fatalf("entry 1: expected delta 20, got %+v", entries[1])
	}
	if entries[2].HasDelta {
		t.Fatalf("oldest entry must have no delta")
	}
}

func TestConsumptionSeriesNegativeDeltaHidden(t *testing.T) {
	// Newer value below the older one, as after a meter swap.
	entries := ConsumptionSeries(readingsDesc(30, 500))
	if !entries[0].HasDelta {
		t.Fatalf("expected computed delta")
	}
	if entries[0].Delta != -470 {
		t.Fatalf("expected delta -470, got %v", entries[0].Delta)
	}
	if entries[0].Display() {
		t.Fatalf("negative delta must not be displayed")
	}
}

func TestConsumptionSeriesZeroDeltaHidden(t *testing.T) {
	entries := ConsumptionSeries(readingsDesc(50, 50))
	if entries[0].Delta != 0 || entries[0].Display() {
		t.Fatalf("zero delta must be hidden, got %+v", entries[0])
	}
}

func TestLatestConsumption(t *testing.T) {
	if _, ok := LatestConsumption(readingsDesc(42)); ok {
		t.Fatalf("single reading must have no prior reading")
	}
	delta, ok := LatestConsumption(readingsDesc(120, 100))
	if !ok || delta != 20 {
		t.Fatalf("expected delta 20, got %v ok=%v", delta, ok)
	}
}

func TestConcatHistoriesBoundary(t *testing.T) {
	old := []Reading{
		{MeterID: "m-old", Date: day(2024, 2, 1), Value: 4100},
		{MeterID: "m-old", Date: day(2024, 1, 1), Value: 4000},
	}
	current := []Reading{
		{MeterID: "m-new", Date: day(2024, 4, 1), Value: 400},
		{MeterID: "m-new", Date: day(2024, 3, 1), Value: 238},
	}

	merged := ConcatHistories(old, current)
	if len(merged) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(merged))
	}
	if merged[0].MeterID != "m-new" || merged[3].MeterID != "m-old" {
		t.Fatalf("expected newest era first, got %s..%s", merged[0].MeterID, merged[3].MeterID)
	}

	entries := ConsumptionSeries(merged)
	// Boundary pair: first successor reading minus last predecessor reading.
	boundary := entries[1]
	if boundary.Delta != 238-4100 {
		t.Fatalf("expected boundary delta %v, got %v", 238-4100, boundary.Delta)
	}
	if boundary.Display() {
		t.Fatalf("swap boundary delta must not be displayed")
	}
}
