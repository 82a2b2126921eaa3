package forecast

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 1.235, Round(1.2345))
	assert.Equal(t, 100.0, Round(99.99951))
	assert.Equal(t, -2.5, Round(-2.50001))
}

func TestAssemble(t *testing.T) {
	res := Assemble(" aapl ", models.Forecast{
		Original:  []float64{1.11111, 2.22222},
		Predicted: []float64{1.0004, 2.0006},
		NextDay:   3.14159,
	})
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, []float64{1.11111, 2.22222}, res.OriginalPrices)
	assert.Equal(t, []float64{1.0004, 2.0006}, res.PredictedPrices)
	assert.Equal(t, 3.142, res.NextDayPrediction)
}

func TestAssemblerDigits(t *testing.T) {
	res := NewAssembler(1).Assemble("msft", models.Forecast{Original: []float64{1.25}, NextDay: 9.96})
	assert.Equal(t, []float64{1.25}, res.OriginalPrices)
	assert.Equal(t, 10.0, res.NextDayPrediction)
	assert.Empty(t, res.PredictedPrices)
}

func TestClassify(t *testing.T) {
	f := Classify(models.NewError(models.KindInvalidInput, "Ticker is required", nil))
	assert.Equal(t, http.StatusBadRequest, f.Status)
	assert.Equal(t, "Ticker is required", f.Message)

	f = Classify(models.NewError(models.KindDegenerateRange, "flat", nil).WithStage(models.StageFitting))
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Equal(t, models.StageFitting, f.Stage)

	f = Classify(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Equal(t, "boom", f.Message)
}

func TestAssembleKeepsComparisonPrecision(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + float64(i)/3
	}
	prep, err := Prepare(closes, 60, 0.7, nil)
	require.NoError(t, err)
	original := prep.Scaler.Inverse(prep.Test.Labels)

	res := NewAssembler(3).Assemble("ibm", models.Forecast{
		Original:  original,
		Predicted: original,
		NextDay:   original[len(original)-1],
	})
	assert.Equal(t, original, res.OriginalPrices)
	assert.Equal(t, original, res.PredictedPrices)
	assert.Equal(t, RoundTo(original[len(original)-1], 3), res.NextDayPrediction)
}
