package neuralnet

import "math"

// sigmoidClamp bounds the sigmoid argument so math.Exp never overflows.
const sigmoidClamp = 500.0

type ActivationFunction interface {
	Activate(x float64) float64
	// Derivative takes the activation output, not the pre-activation sum.
	Derivative(y float64) float64
}

type Sigmoid struct{}

func (s Sigmoid) Activate(x float64) float64 {
	if x > sigmoidClamp {
		x = sigmoidClamp
	} else if x < -sigmoidClamp {
		x = -sigmoidClamp
	}
	return 1 / (1 + math.Exp(-x))
}

func (s Sigmoid) Derivative(y float64) float64 {
	return y * (1 - y)
}
