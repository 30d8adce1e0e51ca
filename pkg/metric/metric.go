package metric

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean, zero for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median is the empirical median, zero for no values
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// UpDownRatio compares the average rise of up moves with the average fall of
// down moves in a series of signed moves. Without down moves it is +Inf.
func UpDownRatio(moves []float64) float64 {
	ups, downs := lo.FilterReject(moves, func(v float64, _ int) bool {
		return v >= 0
	})
	if len(downs) == 0 {
		return math.Inf(1)
	}

	avgDown := math.Abs(stat.Mean(downs, nil))
	if avgDown == 0 {
		return math.Inf(1)
	}
	return Mean(ups) / avgDown
}

// Abs maps signed moves to their magnitude
func Abs(moves []float64) []float64 {
	return lo.Map(moves, func(v float64, _ int) float64 {
		return math.Abs(v)
	})
}
