// Package swap partitions a chronological reading list into eras, one
// era per physical meter, by detecting replacement discontinuities.
package swap

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row is one extracted observation with an optional free-text note.
type Row struct {
	Date  time.Time
	Value float64
	Note  string
}

// Era is a contiguous run of rows attributed to one physical device.
// The last era of a detection result is the currently active meter.
type Era struct {
	Label    string
	Rows     []Row
	SwapNote string
}

// Heuristic controls what counts as a significant drop. The threshold
// has no canonical value; these defaults are a starting point pending
// tuning against real documents.
type Heuristic struct {
	// DropRatio starts a new era when a value falls below the previous
	// value times this ratio.
	DropRatio float64 `yaml:"drop_ratio"`
	// AbsoluteDrop additionally starts a new era when the decrease
	// exceeds this amount. Zero disables the absolute check.
	AbsoluteDrop float64 `yaml:"absolute_drop"`
}

// DefaultHeuristic returns the default drop thresholds.
func DefaultHeuristic() Heuristic {
	return Heuristic{DropRatio: 0.5}
}

// Result is the outcome of a detection pass.
type Result struct {
	Detected bool
	Eras     []Era
}

// Annotations such as "Zähler getauscht" on a reading row reinforce a
// boundary even without a value discontinuity.
var replacementKeywords = []string{
	"replaced", "replacement", "exchanged", "swap",
	"getauscht", "ausgetauscht", "austausch", "zählerwechsel", "neuer zähler",
}

// Detect scans rows in chronological order and splits them into eras at
// significant downward discontinuities or explicit swap annotations.
// With no discontinuity the result is a single era holding all rows and
// Detected is false; this is the common path, not an error.
func Detect(rows []Row, h Heuristic) Result {
	if len(rows) == 0 {
		return Result{}
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var eras []Era
	current := Era{Rows: []Row{sorted[0]}}
	for _, row := range sorted[1:] {
		prev := current.Rows[len(current.Rows)-1]
		if isBoundary(prev, row, h) {
			eras = append(eras, current)
			current = Era{Rows: []Row{row}, SwapNote: swapNote(row)}
			continue
		}
		current.Rows = append(current.Rows, row)
	}
	eras = append(eras, current)

	for i := range eras {
		eras[i].Label = fmt.Sprintf("Meter %d", i+1)
	}
	return Result{Detected: len(eras) > 1, Eras: eras}
}

func isBoundary(prev, row Row, h Heuristic) bool {
	if noteSignalsSwap(row.Note) {
		return true
	}
	if row.Value >= prev.Value {
		return false
	}
	if h.DropRatio > 0 && prev.Value > 0 && row.Value < prev.Value*h.DropRatio {
		return true
	}
	if h.AbsoluteDrop > 0 && prev.Value-row.Value >= h.AbsoluteDrop {
		return true
	}
	return false
}

func noteSignalsSwap(note string) bool {
	if note == "" {
		return false
	}
	lowered := strings.ToLower(note)
	for _, keyword := range replacementKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

func swapNote(row Row) string {
	if noteSignalsSwap(row.Note) {
		return row.Note
	}
	return ""
}
