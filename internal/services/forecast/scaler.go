package forecast

import (
	"fmt"
	"math"

	"PriceSight/internal/domain/models"
)

// MinMax is a fitted min-max scaler over a single feature.
type MinMax struct {
	Min float64
	Max float64
}

// Fit computes the value range of values. A constant segment cannot be
// normalized and is reported as a degenerate range rather than producing NaN.
func Fit(values []float64) (MinMax, error) {
	if len(values) == 0 {
		return MinMax{}, models.NewError(models.KindInsufficientHistory, "cannot fit scaler on empty segment", nil)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return MinMax{}, models.NewError(models.KindDataUnavailable, fmt.Sprintf("non-finite price at index %d", i), nil)
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return MinMax{}, models.NewError(models.KindDegenerateRange,
			fmt.Sprintf("training prices have zero range (min=max=%g)", lo), nil)
	}
	return MinMax{Min: lo, Max: hi}, nil
}

// Range returns Max - Min.
func (m MinMax) Range() float64 { return m.Max - m.Min }

// Transform maps every value to (v - min) / (max - min). Values outside the
// fitted range land outside [0, 1].
func (m MinMax) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	r := m.Range()
	for i, v := range values {
		out[i] = (v - m.Min) / r
	}
	return out
}

// Inverse maps scaled values back to prices.
func (m MinMax) Inverse(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = m.InverseOne(v)
	}
	return out
}

// InverseOne maps a single scaled value back to a price.
func (m MinMax) InverseOne(v float64) float64 {
	return v*m.Range() + m.Min
}
