package ingest

import (
	"fmt"
	"sort"
)

// IntervalBounds clamps the requested downsampling interval.
type IntervalBounds struct {
	Min float64
	Max float64
}

// DefaultIntervalBounds allows anything from no filtering up to one sample
// per hour.
var DefaultIntervalBounds = IntervalBounds{Min: 0, Max: 3600}

// FilterInterval downsamples a detail frame so consecutive kept samples
// within one step are at least intervalSeconds apart. Each step_number
// partition is filtered independently; the first and last sample of every
// partition are always retained so step boundary conditions survive, even
// when this leaves a final gap smaller than the interval.
//
// intervalSeconds == 0 is the identity operation. A negative interval is a
// hard error. Out-of-range positive values are clamped to bounds.
func FilterInterval(f *Frame, intervalSeconds float64, bounds IntervalBounds) (*Frame, error) {
	if intervalSeconds < 0 {
		return nil, fmt.Errorf("interval must be non-negative, got %v", intervalSeconds)
	}
	if intervalSeconds == 0 {
		return f, nil
	}
	if intervalSeconds < bounds.Min {
		intervalSeconds = bounds.Min
	}
	if intervalSeconds > bounds.Max {
		intervalSeconds = bounds.Max
	}
	if intervalSeconds == 0 {
		return f, nil
	}

	type sample struct {
		row  int
		time float64
	}

	// Partition rows by step_number. Rows whose step_number or
	// execution_time cannot be read are always kept; the filter only drops
	// samples it can confidently space.
	keep := make(map[int]bool, f.NumRows())
	partitions := make(map[string][]sample)
	var order []string
	for i := 0; i < f.NumRows(); i++ {
		stepKey, ok := f.Value(i, ColStepNumber)
		if !ok {
			keep[i] = true
			continue
		}
		t, err := f.Float(i, ColExecutionTime)
		if err != nil {
			keep[i] = true
			continue
		}
		if _, seen := partitions[stepKey]; !seen {
			order = append(order, stepKey)
		}
		partitions[stepKey] = append(partitions[stepKey], sample{row: i, time: t})
	}

	for _, stepKey := range order {
		samples := partitions[stepKey]
		sort.SliceStable(samples, func(i, j int) bool {
			return samples[i].time < samples[j].time
		})

		// Boundary samples are unconditional.
		keep[samples[0].row] = true
		keep[samples[len(samples)-1].row] = true

		lastKept := samples[0].time
		for _, s := range samples[1 : len(samples)-1] {
			if s.time-lastKept >= intervalSeconds {
				keep[s.row] = true
				lastKept = s.time
			}
		}
	}

	return f.Select(keep), nil
}
