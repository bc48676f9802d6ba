package swap

import (
	"testing"
	"time"
)

func row(mm int, value float64) Row {
	return Row{Date: time.Date(2024, time.Month(mm), 15, 0, 0, 0, 0, time.UTC), Value: value}
}

func TestDetectMonotonicSingleEra(t *testing.T) {
	rows := []Row{row(1, 100), row(2, 150), row(3, 150), row(4, 220)}

	result := Detect(rows, DefaultHeuristic())
	if result.Detected {
		t.Fatalf("expected no swap detected")
	}
	if len(result.Eras) != 1 {
		t.Fatalf("expected exactly 1 era, got %d", len(result.Eras))
	}
	if len(result.Eras[0].Rows) != len(rows) {
		t.Fatalf("expected all rows in the era, got %d", len(result.Eras[0].Rows))
	}
	for i, r := range result.Eras[0].Rows {
		if r.Value != rows[i].Value {
			t.Fatalf("row order changed at %d: %+v", i, r)
		}
	}
}

func TestDetectSingleDiscontinuity(t *testing.T) {
	rows := []Row{
		row(1, 100), row(2, 800), row(3, 1600), row(4, 2400),
		row(5, 3200), row(6, 4100),
		row(7, 238), // new device
		row(8, 400), row(9, 650), row(10, 900),
	}

	result := Detect(rows, DefaultHeuristic())
	if !result.Detected {
		t.Fatalf("expected swap detected")
	}
	if len(result.Eras) != 2 {
		t.Fatalf("expected 2 eras, got %d", len(result.Eras))
	}
	first, second := result.Eras[0], result.Eras[1]
	if len(first.Rows) != 6 || first.Rows[len(first.Rows)-1].Value != 4100 {
		t.Fatalf("era 1 must end before the drop, got %+v", first.Rows)
	}
	if second.Rows[0].Value != 238 {
		t.Fatalf("era 2 must start at the dropped value, got %+v", second.Rows[0])
	}
	if len(second.Rows) != 4 {
		t.Fatalf("era 2 row count: got %d", len(second.Rows))
	}
}

func TestDetectAnnotationForcesBoundary(t *testing.T) {
	rows := []Row{
		row(1, 100), row(2, 200),
		{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Value: 210, Note: "Zähler getauscht"},
		row(4, 260),
	}

	result := Detect(rows, DefaultHeuristic())
	if !result.Detected || len(result.Eras) != 2 {
		t.Fatalf("expected annotation-driven split, got %+v", result)
	}
	if result.Eras[1].SwapNote != "Zähler getauscht" {
		t.Fatalf("expected swap note carried, got %q", result.Eras[1].SwapNote)
	}
}

func TestDetectSmallDipIsNotASwap(t *testing.T) {
	// A correction from 220 down to 210 stays within the drop ratio.
	rows := []Row{row(1, 100), row(2, 220), row(3, 210), row(4, 260)}

	result := Detect(rows, DefaultHeuristic())
	if result.Detected {
		t.Fatalf("expected small dip tolerated, got %d eras", len(result.Eras))
	}
}

func TestDetectAbsoluteDropThreshold(t *testing.T) {
	rows := []Row{row(1, 10000), row(2, 10400), row(3, 8000)}

	// Ratio alone does not trigger (8000 > 10400*0.5).
	if result := Detect(rows, Heuristic{DropRatio: 0.5}); result.Detected {
		t.Fatalf("ratio-only heuristic must not trigger")
	}
	result := Detect(rows, Heuristic{DropRatio: 0.5, AbsoluteDrop: 2000})
	if !result.Detected || len(result.Eras) != 2 {
		t.Fatalf("absolute threshold must trigger, got %+v", result)
	}
}

func TestDetectSortsUnorderedInput(t *testing.T) {
	rows := []Row{row(3, 300), row(1, 100), row(2, 200)}

	result := Detect(rows, DefaultHeuristic())
	if result.Detected {
		t.Fatalf("expected single era after sorting")
	}
	values := result.Eras[0].Rows
	if values[0].Value != 100 || values[2].Value != 300 {
		t.Fatalf("expected chronological order, got %+v", values)
	}
}

func TestDetectEmpty(t *testing.T) {
	result := Detect(nil, DefaultHeuristic())
	if result.Detected || len(result.Eras) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
