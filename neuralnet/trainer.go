package neuralnet

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// DefaultLogEvery is the epoch interval between training progress log lines.
const DefaultLogEvery = 200

// TrainingStats summarizes one Train call.
type TrainingStats struct {
	Epochs   int           `json:"epochs"`
	Duration time.Duration `json:"duration"`
	AvgError float64       `json:"avg_error"`
	MinError float64       `json:"min_error"`
	MaxError float64       `json:"max_error"`
	Samples  int           `json:"samples"`
}

// Trainer runs epochs of shuffled per-sample SGD updates over a dataset.
// It has no convergence criterion: Train always runs the requested number of epochs.
type Trainer struct {
	network  *NeuralNetwork
	rng      *rand.Rand
	logger   *logrus.Logger
	LogEvery int
}

func NewTrainer(nn *NeuralNetwork, rng *rand.Rand, logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{
		network:  nn,
		rng:      rng,
		logger:   logger,
		LogEvery: DefaultLogEvery,
	}
}

func (t *Trainer) Train(ds *Dataset, epochs int) (TrainingStats, error) {
	if ds.Len() == 0 {
		return TrainingStats{}, fmt.Errorf("no training samples: %w", ErrInvalidInput)
	}
	if epochs <= 0 {
		return TrainingStats{}, fmt.Errorf("epochs must be positive, got %d: %w", epochs, ErrInvalidInput)
	}

	n := ds.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sampleErrors := make([]float64, n)
	target := make([]float64, OutputSize)

	start := time.Now()
	var totalError float64
	minError := math.MaxFloat64
	maxError := 0.0

	for e := 0; e < epochs; e++ {
		t.rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for k, idx := range order {
			input, y := ds.Sample(idx)
			target[0] = y
			sampleErrors[k] = t.network.TrainStep(input, target)
		}

		epochError := stat.Mean(sampleErrors, nil)
		totalError += epochError
		minError = math.Min(minError, epochError)
		maxError = math.Max(maxError, epochError)

		if t.LogEvery > 0 && (e%t.LogEvery == 0 || e == epochs-1) {
			t.logger.WithFields(logrus.Fields{
				"epoch":  e + 1,
				"epochs": epochs,
				"error":  epochError,
			}).Info("training progress")
		}
	}

	stats := TrainingStats{
		Epochs:   epochs,
		Duration: time.Since(start),
		AvgError: totalError / float64(epochs),
		MinError: minError,
		MaxError: maxError,
		Samples:  n,
	}

	t.logger.WithFields(logrus.Fields{
		"duration":  stats.Duration,
		"avg_error": stats.AvgError,
		"min_error": stats.MinError,
		"max_error": stats.MaxError,
		"samples":   stats.Samples,
	}).Info("training completed")

	return stats, nil
}
