package neuralnet

// LearningRate is the fixed step size used by the network's SGD optimizer.
const LearningRate = 0.1

// Optimizer applies one set of gradients to the network parameters.
type Optimizer interface {
	Apply(nn *NeuralNetwork, g *Gradients)
}

// Gradients holds the error signals of a single training sample together with the
// activations they are multiplied by. Deltas are not yet scaled by the learning rate.
type Gradients struct {
	Input       []float64
	Hidden      []float64
	OutputDelta []float64
	HiddenDelta []float64
}

// SGD implements plain stochastic gradient descent with a constant learning rate.
type SGD struct {
	Lr float64
}

// Apply moves every weight and bias along its gradient, hidden-to-output first.
func (o SGD) Apply(nn *NeuralNetwork, g *Gradients) {
	for i := 0; i < OutputSize; i++ {
		step := g.OutputDelta[i] * o.Lr
		for j := 0; j < HiddenSize; j++ {
			nn.weightsHO.Set(i, j, nn.weightsHO.At(i, j)+step*g.Hidden[j])
		}
		nn.biasO.SetVec(i, nn.biasO.AtVec(i)+step)
	}

	for i := 0; i < HiddenSize; i++ {
		step := g.HiddenDelta[i] * o.Lr
		for j := 0; j < InputSize; j++ {
			nn.weightsIH.Set(i, j, nn.weightsIH.At(i, j)+step*g.Input[j])
		}
		nn.biasH.SetVec(i, nn.biasH.AtVec(i)+step)
	}
}
