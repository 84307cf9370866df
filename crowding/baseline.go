package crowding

import (
	"fmt"
	"math"

	"github.com/sajari/regression"
)

var featureNames = []string{"temperature", "dayOfWeek", "direction", "month"}

// Baseline is an ordinary least squares fit of the crowding level on the raw
// features, kept as a point of comparison for the network.
type Baseline struct {
	r regression.Regression
}

func rawFeatures(r Record) []float64 {
	return []float64{
		r.Temperature,
		float64(DayOfWeek(r.Date)),
		r.Direction.Flag(),
		float64(r.Date.Month()),
	}
}

// FitBaseline runs the regression over records. Degenerate data, such as a
// feature that never varies, makes the fit fail.
func FitBaseline(records []Record) (*Baseline, error) {
	if err := validateRecords(records); err != nil {
		return nil, err
	}
	if len(records) <= len(featureNames)+1 {
		return nil, fmt.Errorf("fitting baseline on %d records: %w", len(records), ErrInvalidInput)
	}

	b := &Baseline{}
	b.r.SetObserved("crowdingLevel")
	for i, name := range featureNames {
		b.r.SetVar(i, name)
	}
	for _, rec := range records {
		b.r.Train(regression.DataPoint(rec.CrowdingLevel, rawFeatures(rec)))
	}
	if err := b.r.Run(); err != nil {
		return nil, fmt.Errorf("fitting baseline: %w", err)
	}
	for _, c := range b.r.GetCoeffs() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("fitting baseline: singular feature matrix")
		}
	}
	return b, nil
}

// Predict returns the regression estimate clamped to the crowding scale.
func (b *Baseline) Predict(r Record) (float64, error) {
	v, err := b.r.Predict(rawFeatures(r))
	if err != nil {
		return 0, err
	}
	return clampLevel(v), nil
}

// R2 is the coefficient of determination of the fit.
func (b *Baseline) R2() float64 {
	return b.r.R2
}

// Formula renders the fitted equation.
func (b *Baseline) Formula() string {
	return b.r.Formula
}
