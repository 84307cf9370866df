package neuralnet

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Dataset is a normalized training set: an (n, InputSize) input tensor and one
// target per row.
type Dataset struct {
	inputs  *tensor.Dense
	targets []float64
}

func NewDataset(inputs [][]float64, targets []float64) (*Dataset, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("empty dataset: %w", ErrInvalidInput)
	}
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("%d inputs but %d targets: %w", len(inputs), len(targets), ErrInvalidInput)
	}

	backing := make([]float64, 0, len(inputs)*InputSize)
	for i, row := range inputs {
		if len(row) != InputSize {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), InputSize, ErrInvalidInput)
		}
		backing = append(backing, row...)
	}

	t := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(len(inputs), InputSize), tensor.WithBacking(backing))
	return &Dataset{
		inputs:  t,
		targets: append([]float64(nil), targets...),
	}, nil
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return d.inputs.Shape()[0]
}

// Sample returns the i-th input row and its target. The row is a view on the
// dataset storage and must not be modified. Sample panics when i is out of
// range.
func (d *Dataset) Sample(i int) ([]float64, float64) {
	row, err := d.inputs.Slice(tensor.S(i))
	if err != nil {
		panic(fmt.Sprintf("dataset sample %d of %d: %v", i, d.Len(), err))
	}
	return row.Data().([]float64), d.targets[i]
}
