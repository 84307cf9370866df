package neuralnet

import "math"

// LossFunction defines the interface for computing loss and its gradient.
type LossFunction interface {
	// Compute returns the loss value given the network output and the target.
	Compute(output []float64, target []float64) float64
	// Gradient returns the error signal propagated back from each output neuron.
	Gradient(output []float64, target []float64) []float64
}

// AbsoluteError reports |target - output| and propagates the raw difference,
// which is the descent direction of the squared error for a sigmoid output.
type AbsoluteError struct{}

// Compute returns the summed absolute error over all outputs.
func (ae AbsoluteError) Compute(output []float64, target []float64) float64 {
	var loss float64
	for i := range output {
		loss += math.Abs(target[i] - output[i])
	}
	return loss
}

// Gradient returns (target - output) for every output neuron.
func (ae AbsoluteError) Gradient(output []float64, target []float64) []float64 {
	grad := make([]float64, len(output))
	for i := range output {
		grad[i] = target[i] - output[i]
	}
	return grad
}
