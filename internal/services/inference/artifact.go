package inference

import (
	"encoding/json"
	"fmt"
	"os"

	"PriceSight/internal/domain/models"
)

// Artifact is the on-disk JSON form of a trained network. Weight layouts follow
// the Keras conventions: kernels are [in][out], LSTM gates are ordered i, f, c, o.
type Artifact struct {
	Name       string      `json:"name"`
	InputShape []int       `json:"input_shape"`
	Layers     []LayerSpec `json:"layers"`
}

// LayerSpec describes one layer of an Artifact.
type LayerSpec struct {
	Type                string      `json:"type"`
	Units               int         `json:"units"`
	Activation          string      `json:"activation,omitempty"`
	RecurrentActivation string      `json:"recurrent_activation,omitempty"`
	ReturnSequences     bool        `json:"return_sequences,omitempty"`
	Kernel              [][]float64 `json:"kernel"`
	RecurrentKernel     [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias                []float64   `json:"bias"`
}

// LoadFile reads and validates an artifact from path.
func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewError(models.KindModelLoad, "open model artifact", err)
	}
	defer f.Close()

	var a Artifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return nil, models.NewError(models.KindModelLoad, "decode model artifact", err)
	}
	return NewNetwork(a)
}

// NewNetwork checks every layer's dimensions and builds the network.
func NewNetwork(a Artifact) (*Network, error) {
	n, err := buildNetwork(a)
	if err != nil {
		return nil, models.NewError(models.KindModelLoad, fmt.Sprintf("invalid model artifact %q", a.Name), err)
	}
	return n, nil
}

func buildNetwork(a Artifact) (*Network, error) {
	if len(a.InputShape) != 2 || a.InputShape[0] <= 0 || a.InputShape[1] <= 0 {
		return nil, fmt.Errorf("input_shape must be [window, features], got %v", a.InputShape)
	}
	if len(a.Layers) == 0 {
		return nil, fmt.Errorf("no layers")
	}

	n := &Network{name: a.Name, window: a.InputShape[0], features: a.InputShape[1]}
	inDim := n.features
	for i, spec := range a.Layers {
		if spec.Units <= 0 {
			return nil, fmt.Errorf("layer %d: units must be positive", i)
		}
		switch spec.Type {
		case "lstm":
			act, err := activationFor(spec.Activation, "tanh")
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			recAct, err := activationFor(spec.RecurrentActivation, "sigmoid")
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			gates := 4 * spec.Units
			if err := checkMatrix(spec.Kernel, inDim, gates); err != nil {
				return nil, fmt.Errorf("layer %d kernel: %w", i, err)
			}
			if err := checkMatrix(spec.RecurrentKernel, spec.Units, gates); err != nil {
				return nil, fmt.Errorf("layer %d recurrent_kernel: %w", i, err)
			}
			if len(spec.Bias) != gates {
				return nil, fmt.Errorf("layer %d bias: want %d values, got %d", i, gates, len(spec.Bias))
			}
			n.layers = append(n.layers, &lstmLayer{
				units:     spec.Units,
				inDim:     inDim,
				kernel:    spec.Kernel,
				recurrent: spec.RecurrentKernel,
				bias:      spec.Bias,
				returnSeq: spec.ReturnSequences,
				act:       act,
				recAct:    recAct,
			})
		case "dense":
			act, err := activationFor(spec.Activation, "linear")
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			if err := checkMatrix(spec.Kernel, inDim, spec.Units); err != nil {
				return nil, fmt.Errorf("layer %d kernel: %w", i, err)
			}
			if len(spec.Bias) != spec.Units {
				return nil, fmt.Errorf("layer %d bias: want %d values, got %d", i, spec.Units, len(spec.Bias))
			}
			n.layers = append(n.layers, &denseLayer{
				units:  spec.Units,
				inDim:  inDim,
				kernel: spec.Kernel,
				bias:   spec.Bias,
				act:    act,
			})
		default:
			return nil, fmt.Errorf("layer %d: unsupported type %q", i, spec.Type)
		}
		inDim = spec.Units
	}
	if inDim != 1 {
		return nil, fmt.Errorf("final layer must have 1 unit, has %d", inDim)
	}
	return n, nil
}

func checkMatrix(m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("want %d rows, got %d", rows, len(m))
	}
	for i, r := range m {
		if len(r) != cols {
			return fmt.Errorf("row %d: want %d columns, got %d", i, cols, len(r))
		}
	}
	return nil
}
