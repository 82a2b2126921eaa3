package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
)

func linear(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestFitFullSeries(t *testing.T) {
	closes := linear(500, 100)

	s, err := Fit(closes)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Min)
	assert.Equal(t, 599.0, s.Max)

	scaled := s.Transform(closes)
	for i, v := range scaled {
		assert.InDelta(t, float64(i)/499, v, 1e-12)
	}
}

func TestScalerRoundTrip(t *testing.T) {
	closes := []float64{12.5, 99.1, 3.25, 47, 1024.75, 0.01}
	s, err := Fit(closes)
	require.NoError(t, err)

	back := s.Inverse(s.Transform(closes))
	for i := range closes {
		assert.InDelta(t, closes[i], back[i], 1e-9)
	}
}

func TestTransformOutsideFittedRange(t *testing.T) {
	s := MinMax{Min: 10, Max: 20}
	out := s.Transform([]float64{5, 25})
	assert.InDelta(t, -0.5, out[0], 1e-12)
	assert.InDelta(t, 1.5, out[1], 1e-12)
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(nil)
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))

	_, err = Fit([]float64{42, 42, 42})
	assert.True(t, errors.Is(err, models.ErrDegenerateRange))

	_, err = Fit([]float64{1, math.NaN(), 3})
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
}
