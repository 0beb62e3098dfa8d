package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of the non-NaN values and how many there were.
func Mean(values []float64) (float64, int) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN(), 0
	}
	return stat.Mean(present, nil), len(present)
}

// Quantile returns the p-quantile of sorted values, interpolating linearly between
// the closest ranks ((n-1)·p indexing).
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Quartiles returns Q1, median and Q3 of values, which are copied before sorting.
func Quartiles(values []float64) (q1, median, q3 float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Quantile(sorted, 0.25), Quantile(sorted, 0.5), Quantile(sorted, 0.75)
}
