package consensus

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Stats summarizes a non-empty list of scores.
type Stats struct {
	Mean   float64
	Median float64
	Std    float64
	IQR    float64
	Min    float64
	Max    float64
	N      int
}

// Calculate computes summary statistics over values.
// It returns false for an empty input; callers must treat that as "no data"
// rather than substituting a default.
//
// Mean and Std are population statistics rounded to two decimals. Quartiles use
// the nearest-rank index floor(n*0.25) / floor(n*0.75) of the sorted values with
// no interpolation; switching methods changes consensus classification at the margins.
func Calculate(values []float64) (Stats, bool) {
	n := len(values)
	if n == 0 {
		return Stats{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n))

	return Stats{
		Mean:   Round2(mean),
		Median: Median(sorted),
		Std:    Round2(std),
		IQR:    sorted[quartileIndex(n, 0.75)] - sorted[quartileIndex(n, 0.25)],
		Min:    sorted[0],
		Max:    sorted[n-1],
		N:      n,
	}, true
}

// Median returns the median of an already sorted, non-empty slice.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// MeanMedian returns the rounded mean and median of values, or false when empty.
func MeanMedian(values []float64) (float64, float64, bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Round2(sum / float64(len(sorted))), Median(sorted), true
}

func quartileIndex(n int, q float64) int {
	return int(math.Floor(float64(n) * q))
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
