package service

import "context"

// Model is a trained sequence model. Input is (batch, window, features),
// output is (batch, 1). Implementations must be safe for concurrent Predict calls.
type Model interface {
	Predict(ctx context.Context, input [][][]float64) ([][]float64, error)
	InputShape() (window, features int)
}

// ModelProvider hands out the shared model, loading it on first use.
type ModelProvider interface {
	Model(ctx context.Context) (Model, error)
}
