package neuralnet

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Fixed topology: temperature, day of week, direction flag and month in,
// a single crowding level out.
const (
	InputSize  = 4
	HiddenSize = 8
	OutputSize = 1
)

// Initialization bounds for weights and biases.
const (
	weightInitLimit = 0.2
	biasInitLimit   = 0.1
)

// ErrInvalidInput is returned when training data or settings cannot be used.
var ErrInvalidInput = errors.New("invalid input")

// NeuralNetwork is a fully connected input-hidden-output perceptron with sigmoid
// activations on both layers.
//
// Forward only reads the parameters and may be called from several goroutines at
// once. TrainStep mutates them in place and needs exclusive access.
type NeuralNetwork struct {
	weightsIH *mat.Dense    // HiddenSize x InputSize
	weightsHO *mat.Dense    // OutputSize x HiddenSize
	biasH     *mat.VecDense // HiddenSize
	biasO     *mat.VecDense // OutputSize

	activation ActivationFunction
	loss       LossFunction
	optimizer  Optimizer
}

// Parameters is a detached copy of the network weights.
type Parameters struct {
	WeightsInputHidden  [][]float64
	WeightsHiddenOutput [][]float64
	BiasHidden          []float64
	BiasOutput          []float64
}

func NewNeuralNetwork(rng *rand.Rand) *NeuralNetwork {
	nn := &NeuralNetwork{
		weightsIH:  randomDense(rng, HiddenSize, InputSize, weightInitLimit),
		weightsHO:  randomDense(rng, OutputSize, HiddenSize, weightInitLimit),
		biasH:      randomVec(rng, HiddenSize, biasInitLimit),
		biasO:      randomVec(rng, OutputSize, biasInitLimit),
		activation: Sigmoid{},
		loss:       AbsoluteError{},
		optimizer:  SGD{Lr: LearningRate},
	}
	return nn
}

// Forward runs the input through both layers and returns the output activations
// together with the hidden activations they were computed from.
func (nn *NeuralNetwork) Forward(input []float64) ([]float64, []float64) {
	x := mat.NewVecDense(InputSize, input)

	var hiddenSum mat.VecDense
	hiddenSum.MulVec(nn.weightsIH, x)
	hiddenSum.AddVec(nn.biasH, &hiddenSum)
	hidden := make([]float64, HiddenSize)
	for i := range hidden {
		hidden[i] = nn.activation.Activate(hiddenSum.AtVec(i))
	}

	var outputSum mat.VecDense
	outputSum.MulVec(nn.weightsHO, mat.NewVecDense(HiddenSize, hidden))
	outputSum.AddVec(nn.biasO, &outputSum)
	output := make([]float64, OutputSize)
	for i := range output {
		output[i] = nn.activation.Activate(outputSum.AtVec(i))
	}

	return output, hidden
}

// TrainStep performs one backpropagation update for a single sample and returns
// the absolute output error measured before the update.
func (nn *NeuralNetwork) TrainStep(input []float64, target []float64) float64 {
	output, hidden := nn.Forward(input)

	outputErrors := nn.loss.Gradient(output, target)
	outputDeltas := make([]float64, OutputSize)
	for i := range outputDeltas {
		outputDeltas[i] = outputErrors[i] * nn.activation.Derivative(output[i])
	}

	// hidden errors are taken from the weights as they were before this step
	hiddenDeltas := make([]float64, HiddenSize)
	for i := range hiddenDeltas {
		var hiddenError float64
		for k := 0; k < OutputSize; k++ {
			hiddenError += outputErrors[k] * nn.weightsHO.At(k, i)
		}
		hiddenDeltas[i] = hiddenError * nn.activation.Derivative(hidden[i])
	}

	nn.optimizer.Apply(nn, &Gradients{
		Input:       input,
		Hidden:      hidden,
		OutputDelta: outputDeltas,
		HiddenDelta: hiddenDeltas,
	})

	return nn.loss.Compute(output, target)
}

// Parameters returns a deep copy of the current weights and biases.
func (nn *NeuralNetwork) Parameters() Parameters {
	return Parameters{
		WeightsInputHidden:  denseRows(nn.weightsIH),
		WeightsHiddenOutput: denseRows(nn.weightsHO),
		BiasHidden:          mat.Col(nil, 0, nn.biasH),
		BiasOutput:          mat.Col(nil, 0, nn.biasO),
	}
}

// Finite reports whether every parameter is a finite number.
func (p Parameters) Finite() bool {
	check := func(vs []float64) bool {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		return true
	}
	for _, row := range p.WeightsInputHidden {
		if !check(row) {
			return false
		}
	}
	for _, row := range p.WeightsHiddenOutput {
		if !check(row) {
			return false
		}
	}
	return check(p.BiasHidden) && check(p.BiasOutput)
}

func randomDense(rng *rand.Rand, rows, cols int, limit float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = uniform(rng, limit)
	}
	return mat.NewDense(rows, cols, data)
}

func randomVec(rng *rand.Rand, n int, limit float64) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = uniform(rng, limit)
	}
	return mat.NewVecDense(n, data)
}

// uniform draws from [-limit, limit).
func uniform(rng *rand.Rand, limit float64) float64 {
	return 2*rng.Float64()*limit - limit
}

func denseRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

// Debug
func (nn *NeuralNetwork) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Input->Hidden weights:\n%v\n", mat.Formatted(nn.weightsIH, mat.Squeeze())))
	sb.WriteString(fmt.Sprintf("Hidden bias:\n%v\n", mat.Formatted(nn.biasH.T(), mat.Squeeze())))
	sb.WriteString(fmt.Sprintf("Hidden->Output weights:\n%v\n", mat.Formatted(nn.weightsHO, mat.Squeeze())))
	sb.WriteString(fmt.Sprintf("Output bias:\n%v\n", mat.Formatted(nn.biasO.T(), mat.Squeeze())))

	return sb.String()
}
