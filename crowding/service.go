package crowding

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"buscast/neuralnet"
)

// DefaultEpochs is the epoch count used when callers have no preference.
const DefaultEpochs = 1000

// PredictionService trains a network on crowding records and answers
// crowding queries with it.
//
// Predict and PredictBatch only read the network and may run concurrently
// with each other. Train must not overlap any other call.
type PredictionService struct {
	network    *neuralnet.NeuralNetwork
	trainer    *neuralnet.Trainer
	normalizer FeatureNormalizer
	history    []Record
	stats      neuralnet.TrainingStats
	trained    bool
	logger     *logrus.Logger
}

type options struct {
	rng    *rand.Rand
	logger *logrus.Logger
}

// Option configures a PredictionService.
type Option func(*options)

// WithSeed seeds weight initialization and shuffling.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func NewPredictionService(opts ...Option) *PredictionService {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}

	nn := neuralnet.NewNeuralNetwork(o.rng)
	return &PredictionService{
		network: nn,
		trainer: neuralnet.NewTrainer(nn, o.rng, o.logger),
		logger:  o.logger,
	}
}

// Train fits a fresh normalizer on records and runs epochs of training on the
// service's network. Calling Train again refits the normalizer and continues
// from the current weights.
func (s *PredictionService) Train(records []Record, epochs int) (neuralnet.TrainingStats, error) {
	if err := validateRecords(records); err != nil {
		return neuralnet.TrainingStats{}, err
	}
	if epochs <= 0 {
		return neuralnet.TrainingStats{}, fmt.Errorf("epochs must be positive, got %d: %w", epochs, ErrInvalidInput)
	}

	normalizer, err := Fit(records)
	if err != nil {
		return neuralnet.TrainingStats{}, err
	}

	inputs := make([][]float64, len(records))
	targets := make([]float64, len(records))
	for i, r := range records {
		inputs[i] = normalizer.NormalizeFeatures(r)
		targets[i] = normalizer.NormalizeTarget(r.CrowdingLevel)
	}
	ds, err := neuralnet.NewDataset(inputs, targets)
	if err != nil {
		return neuralnet.TrainingStats{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"records": len(records),
		"epochs":  epochs,
	}).Info("training crowding model")

	stats, err := s.trainer.Train(ds, epochs)
	if err != nil {
		return neuralnet.TrainingStats{}, fmt.Errorf("training network: %w", err)
	}

	s.normalizer = normalizer
	s.history = append([]Record(nil), records...)
	s.stats = stats
	s.trained = true
	return stats, nil
}

// Predict estimates the crowding level for a date, temperature and direction.
// The result also carries the statistical estimate over the training records.
func (s *PredictionService) Predict(date time.Time, temperature float64, direction Direction) (PredictionResult, error) {
	if !s.trained {
		return PredictionResult{}, ErrModelNotTrained
	}
	if err := validTemperature(temperature); err != nil {
		return PredictionResult{}, err
	}
	if direction != Outbound && direction != Return {
		return PredictionResult{}, fmt.Errorf("%v: %w", direction, ErrInvalidInput)
	}

	query := Record{Date: date, Temperature: temperature, Direction: direction}
	output, _ := s.network.Forward(s.normalizer.NormalizeFeatures(query))

	raw := s.normalizer.DenormalizeTarget(output[0])
	final := clampLevel(raw)

	return PredictionResult{
		Level:         math.Round(final*2) / 2,
		Confidence:    confidence(final),
		RawOutput:     raw,
		NetworkOutput: output[0],
		DayName:       date.Weekday().String(),
		Date:          date,
		Direction:     direction,
		Historical:    EstimateFromHistory(s.history, date, temperature, direction),
	}, nil
}

// Query is a prediction request in its textual form.
type Query struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Direction   string  `json:"direction"`
}

// PredictQuery parses q and predicts it.
func (s *PredictionService) PredictQuery(q Query) (PredictionResult, error) {
	date, err := ParseDate(q.Date)
	if err != nil {
		return PredictionResult{}, err
	}
	dir, err := ParseDirection(q.Direction)
	if err != nil {
		return PredictionResult{}, err
	}
	return s.Predict(date, q.Temperature, dir)
}

// PredictBatch predicts every query concurrently. Results keep the order of
// queries; the first failure cancels the rest.
func (s *PredictionService) PredictBatch(ctx context.Context, queries []Query) ([]PredictionResult, error) {
	if !s.trained {
		return nil, ErrModelNotTrained
	}

	results := make([]PredictionResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.PredictQuery(q)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PredictionService) Trained() bool {
	return s.trained
}

// TrainingStats returns the statistics of the last completed Train call.
func (s *PredictionService) TrainingStats() (neuralnet.TrainingStats, bool) {
	return s.stats, s.trained
}

// Normalizer returns the normalizer fitted by the last Train call.
func (s *PredictionService) Normalizer() (FeatureNormalizer, bool) {
	return s.normalizer, s.trained
}

// Network exposes the underlying network for inspection.
func (s *PredictionService) Network() *neuralnet.NeuralNetwork {
	return s.network
}
