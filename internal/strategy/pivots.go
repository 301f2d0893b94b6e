package strategy

import (
	"math"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

const (
	// pivotEdgeMargin keeps candidates away from the ends of the series.
	pivotEdgeMargin = 5
	// Prominence is measured against the 10 bars before a pivot and the 9 bars after it.
	leftProminenceBars  = 10
	rightProminenceBars = 9
)

// FindPeaks returns peaks in values, oldest first.
// A peak is strictly above the `order` values on each side and rises at least
// minProminence percent above the lowest value of the 10 bars before it and of the 9 bars after it.
func FindPeaks(values []float64, order int, minProminence float64) []model.Pivot {
	return findPivots(values, order, minProminence, true)
}

// FindTroughs is the mirror of FindPeaks.
func FindTroughs(values []float64, order int, minProminence float64) []model.Pivot {
	return findPivots(values, order, minProminence, false)
}

func findPivots(values []float64, order int, minProminence float64, peaks bool) []model.Pivot {
	if order <= 0 {
		return nil
	}
	margin := pivotEdgeMargin
	if order > margin {
		margin = order
	}
	n := len(values)
	var out []model.Pivot
	for i := margin; i < n-margin; i++ {
		if !isExtremum(values, i, order, peaks) {
			continue
		}
		left, right := sideProminence(values, i, peaks)
		if left < minProminence || right < minProminence {
			continue
		}
		out = append(out, model.Pivot{Index: i, Value: values[i], Prominence: math.Min(left, right)})
	}
	return out
}

func isExtremum(values []float64, i, order int, peak bool) bool {
	leftLo, leftHi := calculator.MinMax(values[i-order : i])
	rightLo, rightHi := calculator.MinMax(values[i+1 : i+order+1])
	v := values[i]
	if peak {
		return v > leftHi && v > rightHi
	}
	return v < leftLo && v < rightLo
}

func sideProminence(values []float64, i int, peak bool) (left, right float64) {
	start := i - leftProminenceBars
	if start < 0 {
		start = 0
	}
	end := i + rightProminenceBars + 1
	if end > len(values) {
		end = len(values)
	}
	return prominence(values[start:i], values[i], peak), prominence(values[i+1:end], values[i], peak)
}

func prominence(side []float64, v float64, peak bool) float64 {
	if len(side) == 0 {
		return 0
	}
	lo, hi := calculator.MinMax(side)
	if peak {
		if lo <= 0 {
			return 0
		}
		return (v - lo) / lo * 100
	}
	if v <= 0 {
		return 0
	}
	return (hi - v) / v * 100
}
