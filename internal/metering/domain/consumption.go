package metering

// ConsumptionEntry pairs a reading with the delta against the
// immediately preceding chronological reading.
type ConsumptionEntry struct {
	Reading Reading
	Delta   float64
	// HasDelta is false for the oldest reading in the series, which has
	// no prior reading to diff against.
	HasDelta bool
}

// Display reports whether a consumption badge should be shown. Negative
// or zero deltas (meter swap, data correction) are computed but hidden.
func (e ConsumptionEntry) Display() bool {
	return e.HasDelta && e.Delta > 0
}

// ConsumptionSeries computes per-reading deltas over a reading list
// ordered descending by date, as stored. Entry i carries
// value[i] - value[i+1]; the last (oldest) entry has no delta.
func ConsumptionSeries(readingsDesc []Reading) []ConsumptionEntry {
	entries := make([]ConsumptionEntry, 0, len(readingsDesc))
	for i, reading := range readingsDesc {
		entry := ConsumptionEntry{Reading: reading}
		if i+1 < len(readingsDesc) {
			entry.Delta = reading.Value - readingsDesc[i+1].Value
			entry.HasDelta = true
		}
		entries = append(entries, entry)
	}
	return entries
}

// LatestConsumption returns the most recent reading's delta for summary
// views. The second return is false when fewer than two readings exist.
func LatestConsumption(readingsDesc []Reading) (float64, bool) {
	if len(readingsDesc) < 2 {
		return 0, false
	}
	return readingsDesc[0].Value - readingsDesc[1].Value, true
}
