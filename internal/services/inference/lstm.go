package inference

import (
	"context"
	"fmt"
	"math"

	"PriceSight/internal/domain/models"
	domsvc "PriceSight/internal/domain/service"
)

type activation func(float64) float64

func activationFor(name, def string) (activation, error) {
	if name == "" {
		name = def
	}
	switch name {
	case "sigmoid":
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, nil
	case "hard_sigmoid":
		return func(x float64) float64 { return math.Max(0, math.Min(1, 0.2*x+0.5)) }, nil
	case "tanh":
		return math.Tanh, nil
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "linear":
		return func(x float64) float64 { return x }, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

type layer interface {
	forward(seq [][]float64) [][]float64
}

// lstmLayer uses the Keras gate layout [i | f | c | o].
type lstmLayer struct {
	units     int
	inDim     int
	kernel    [][]float64 // inDim x 4*units
	recurrent [][]float64 // units x 4*units
	bias      []float64   // 4*units
	returnSeq bool
	act       activation
	recAct    activation
}

func (l *lstmLayer) forward(seq [][]float64) [][]float64 {
	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	var out [][]float64
	if l.returnSeq {
		out = make([][]float64, 0, len(seq))
	}
	for _, x := range seq {
		copy(z, l.bias)
		for j := 0; j < l.inDim; j++ {
			xj := x[j]
			if xj == 0 {
				continue
			}
			row := l.kernel[j]
			for k := range z {
				z[k] += xj * row[k]
			}
		}
		for j := 0; j < u; j++ {
			hj := h[j]
			if hj == 0 {
				continue
			}
			row := l.recurrent[j]
			for k := range z {
				z[k] += hj * row[k]
			}
		}
		for k := 0; k < u; k++ {
			i := l.recAct(z[k])
			f := l.recAct(z[u+k])
			g := l.act(z[2*u+k])
			o := l.recAct(z[3*u+k])
			c[k] = f*c[k] + i*g
			h[k] = o * l.act(c[k])
		}
		if l.returnSeq {
			out = append(out, append([]float64(nil), h...))
		}
	}
	if !l.returnSeq {
		out = [][]float64{append([]float64(nil), h...)}
	}
	return out
}

type denseLayer struct {
	units  int
	inDim  int
	kernel [][]float64 // inDim x units
	bias   []float64
	act    activation
}

func (d *denseLayer) forward(seq [][]float64) [][]float64 {
	out := make([][]float64, len(seq))
	for t, x := range seq {
		y := make([]float64, d.units)
		copy(y, d.bias)
		for j := 0; j < d.inDim; j++ {
			xj := x[j]
			row := d.kernel[j]
			for k := range y {
				y[k] += xj * row[k]
			}
		}
		for k := range y {
			y[k] = d.act(y[k])
		}
		out[t] = y
	}
	return out
}

// Network is a stacked LSTM/Dense regressor evaluated in process.
// Weights are read-only after construction, so Predict is safe for concurrent use.
type Network struct {
	name     string
	window   int
	features int
	layers   []layer
}

// Name returns the artifact name.
func (n *Network) Name() string { return n.name }

// InputShape implements service.Model.
func (n *Network) InputShape() (int, int) { return n.window, n.features }

// Predict implements service.Model. The output for each sample is the final
// time step of the last layer.
func (n *Network) Predict(ctx context.Context, input [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(input))
	for i, sample := range input {
		if err := ctx.Err(); err != nil {
			return nil, models.NewError(models.KindInference, "prediction cancelled", err)
		}
		if len(sample) != n.window {
			return nil, models.NewError(models.KindInference,
				fmt.Sprintf("sample %d has %d steps, model expects %d", i, len(sample), n.window), nil)
		}
		for t, step := range sample {
			if len(step) != n.features {
				return nil, models.NewError(models.KindInference,
					fmt.Sprintf("sample %d step %d has %d features, model expects %d", i, t, len(step), n.features), nil)
			}
		}
		seq := sample
		for _, l := range n.layers {
			seq = l.forward(seq)
		}
		last := seq[len(seq)-1]
		out[i] = []float64{last[0]}
	}
	return out, nil
}

var _ domsvc.Model = (*Network)(nil)
