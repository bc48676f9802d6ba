package metering

import "context"

// maxLineageHops bounds lineage walks. Chains are expected to stay in
// the single digits; anything near the bound indicates corrupt links.
const maxLineageHops = 64

// WalkForward follows ReplacedBy references from the given meter to the
// current meter of its lineage, returning the visited meters in order
// (start first). Cycles and dangling references fail the walk.
func WalkForward(ctx context.Context, repo MeterRepository, start *Meter) ([]Meter, error) {
	if start == nil {
		return nil, ErrNilMeter
	}
	visited := map[string]struct{}{start.ID: {}}
	chain := []Meter{*start}
	current := start
	for hops := 0; current.IsRetired(); hops++ {
		if hops >= maxLineageHops {
			return nil, ErrLineageCycle
		}
		next, err := repo.Get(ctx, current.ReplacedBy)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrMeterNotFound
		}
		if _, seen := visited[next.ID]; seen {
			return nil, ErrLineageCycle
		}
		visited[next.ID] = struct{}{}
		chain = append(chain, *next)
		current = next
	}
	return chain, nil
}

// WalkLineage returns the full lineage containing the given meter,
// ordered oldest to current.
func WalkLineage(ctx context.Context, repo MeterRepository, meter *Meter) ([]Meter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	// Walk backwards to the lineage root first.
	oldest := meter
	visited := map[string]struct{}{meter.ID: {}}
	for hops := 0; ; hops++ {
		if hops >= maxLineageHops {
			return nil, ErrLineageCycle
		}
		prev, err := repo.FindPredecessor(ctx, oldest.ID)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			break
		}
		if _, seen := visited[prev.ID]; seen {
			return nil, ErrLineageCycle
		}
		visited[prev.ID] = struct{}{}
		oldest = prev
	}

	return WalkForward(ctx, repo, oldest)
}

// ConcatHistories merges per-meter reading histories (each ordered
// date-descending as stored) into one list covering the whole lineage,
// ordered date-descending with the newest era first. The slices must be
// passed oldest era first. The swap boundary is not special-cased: the
// successor's first reading diffs against the predecessor's last
// reading like any other adjacent pair.
func ConcatHistories(perMeterDesc ...[]Reading) []Reading {
	total := 0
	for _, h := range perMeterDesc {
		total += len(h)
	}
	merged := make([]Reading, 0, total)
	for i := len(perMeterDesc) - 1; i >= 0; i-- {
		merged = append(merged, perMeterDesc[i]...)
	}
	return merged
}
