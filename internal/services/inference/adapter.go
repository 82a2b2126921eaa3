package inference

import (
	"context"
	"fmt"

	"PriceSight/internal/domain/models"
	domsvc "PriceSight/internal/domain/service"
)

// ToTensor reshapes windows into a (count, window, 1) tensor.
func ToTensor(windows [][]float64) [][][]float64 {
	out := make([][][]float64, len(windows))
	for i, w := range windows {
		steps := make([][]float64, len(w))
		for j, v := range w {
			steps[j] = []float64{v}
		}
		out[i] = steps
	}
	return out
}

// Predict runs m over windows and returns one scaled prediction per window,
// in input order.
func Predict(ctx context.Context, m domsvc.Model, windows [][]float64) ([]float64, error) {
	if len(windows) == 0 {
		return nil, models.NewError(models.KindInference, "empty input batch", nil)
	}
	window, features := m.InputShape()
	if features != 1 {
		return nil, models.NewError(models.KindInference,
			fmt.Sprintf("model expects %d features per step, pipeline provides 1", features), nil)
	}
	for i, w := range windows {
		if len(w) != window {
			return nil, models.NewError(models.KindInference,
				fmt.Sprintf("input shape (%d, %d, 1) at sample %d does not match model input (%d, %d)",
					len(windows), len(w), i, window, features), nil)
		}
	}

	out, err := m.Predict(ctx, ToTensor(windows))
	if err != nil {
		if _, ok := models.KindOf(err); ok {
			return nil, err
		}
		return nil, models.NewError(models.KindInference, "model predict failed", err)
	}
	if len(out) != len(windows) {
		return nil, models.NewError(models.KindInference,
			fmt.Sprintf("model returned %d predictions for %d samples", len(out), len(windows)), nil)
	}
	preds := make([]float64, len(out))
	for i, row := range out {
		if len(row) == 0 {
			return nil, models.NewError(models.KindInference, fmt.Sprintf("empty prediction for sample %d", i), nil)
		}
		preds[i] = row[0]
	}
	return preds, nil
}
