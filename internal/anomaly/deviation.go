// Package anomaly holds the pure predicates compliance checks are
// built from: deviation thresholds, digit patterns, sequence gaps,
// keyword matching and calendar membership. Everything here is
// stateless and deterministic.
package anomaly

import "math"

// PercentDeviation returns the percentage change of current relative
// to baseline. ok=false when the baseline is zero: the comparison is
// skipped rather than reported.
func PercentDeviation(current, baseline float64) (float64, bool) {
	if baseline == 0 {
		return 0, false
	}
	return (current - baseline) / baseline * 100, true
}

// Exceeds reports whether the absolute deviation is strictly greater
// than the threshold. A deviation exactly at the threshold is not an
// anomaly; every check applies the same boundary.
func Exceeds(deviation, threshold float64) bool {
	return math.Abs(deviation) > threshold
}

// Mean returns the arithmetic mean of values, ok=false for an empty
// slice.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
